package interact

import (
	"math"
	"time"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

const (
	// DefaultIdleThresholdMs is the idle window before idleFlux fires.
	DefaultIdleThresholdMs = 8000

	// MinIdleThresholdMs floors SetIdleThreshold.
	MinIdleThresholdMs = 1000

	// idleMagnitudeWindowMs scales elapsed idle time into magnitude:
	// min(1, elapsed/window).
	idleMagnitudeWindowMs = 16000

	// idleLayer is the layer type idleFlux addresses.
	idleLayer = "background"
)

// SetIdleThreshold configures the idle window in milliseconds,
// floor-clamped to MinIdleThresholdMs. Non-finite input takes the
// floor.
func (c *Coordinator) SetIdleThreshold(ms float64) {
	if !(ms >= MinIdleThresholdMs) {
		ms = MinIdleThresholdMs
	}
	c.mu.Lock()
	c.thresholdMs = ms
	c.mu.Unlock()
}

// IdleThreshold returns the configured idle window in milliseconds.
func (c *Coordinator) IdleThreshold() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thresholdMs
}

// CheckIdle runs one idle poll. When the time since the last activity
// exceeds the threshold, it fires idleFlux on the background layer
// with magnitude min(1, elapsed/16000), resets the activity stamp so
// at most one trigger fires per window, signals idle, and reports
// true. Hosts driving their own tick call this instead of Start.
func (c *Coordinator) CheckIdle() bool {
	c.mu.Lock()
	now := c.now()
	elapsed := float64(now.Sub(c.lastActivity).Milliseconds())
	if elapsed <= c.thresholdMs {
		c.mu.Unlock()
		return false
	}
	c.lastActivity = now
	c.mu.Unlock()

	magnitude := math.Min(1, elapsed/idleMagnitudeWindowMs)
	c.sink.TriggerParameterCascade(TriggerIdleFlux, param.CascadeContext{
		LayerType: idleLayer,
		Magnitude: magnitude,
		Polarity:  1,
	})
	c.signal(SignalIdle)
	return true
}

// Start launches the internal idle-polling loop. Idempotent, and
// independent of the cascade store's lifecycle.
func (c *Coordinator) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	c.wg.Add(1)
	go c.pollLoop(stop)
	c.logger.Debug("idle polling started")
}

func (c *Coordinator) pollLoop(stop <-chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.CheckIdle()
		}
	}
}

// Stop halts the polling loop and waits for it to exit. Idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()

	close(stop)
	c.wg.Wait()
	c.logger.Debug("idle polling stopped")
}

// Running reports whether the internal polling loop is live.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
