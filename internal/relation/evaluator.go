// Package relation evaluates relationship descriptors: pure math that
// turns a signed source value into a parameter delta. Evaluation is a
// total function. It never panics and never returns a non-finite
// number, whatever the inputs.
package relation

import (
	"log/slog"
	"math"
	"reflect"
	"sync"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

// Limit bounds every evaluator input and output. Values beyond it are
// clamped, not rejected.
const Limit = 1000

// probes is the fixed input set a custom curve must survive before it
// is trusted.
var probes = [...]float64{0, 0.5, 1.0, -0.5, -1.0}

// Evaluator applies relationships. It carries the per-curve verdict
// cache, so one Evaluator should live as long as the rule tables that
// reference its curves.
//
// Thread-safety: all methods are safe for concurrent use.
type Evaluator struct {
	logger *slog.Logger

	mu       sync.Mutex
	verdicts map[uintptr]bool
}

// NewEvaluator returns an Evaluator logging through logger. A nil
// logger falls back to slog.Default().
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		logger:   logger,
		verdicts: make(map[uintptr]bool),
	}
}

// Apply converts source through rel.
//
// Sanitization happens on both sides: non-finite source or intensity
// collapses to 0, and both input and output are clamped to [-Limit,
// Limit]. Unknown kinds degrade to linear; table compilation rejects
// them long before they reach here.
func (e *Evaluator) Apply(source float64, rel param.Relationship) float64 {
	source = sanitize(source)
	intensity := sanitize(rel.Intensity)

	var out float64
	switch rel.Kind {
	case param.KindLinear:
		out = source * intensity
	case param.KindInverse:
		out = (1 - source) * intensity
	case param.KindExponential:
		out = sign(source) * source * source * intensity
	case param.KindLogarithmic:
		out = sign(source) * math.Log(math.Max(0.01, math.Abs(source))) * intensity * 0.5
	case param.KindCustom:
		out = e.applyCustom(source, intensity, rel.Curve)
	default:
		e.logger.Debug("unknown relationship kind, treating as linear",
			slog.String("kind", string(rel.Kind)))
		out = source * intensity
	}
	return sanitize(out)
}

// applyCustom runs a host-supplied curve. A nil, rejected, or
// panicking curve behaves as linear with the same intensity. A panic
// after validation rejects the curve permanently.
func (e *Evaluator) applyCustom(source, intensity float64, curve param.Curve) float64 {
	if curve == nil || !e.validate(curve) {
		return source * intensity
	}
	out, panicked := safeCall(curve, source)
	if panicked {
		e.storeVerdict(curve, false)
		e.logger.Warn("custom curve panicked after validation, falling back to linear")
		return source * intensity
	}
	return out * intensity
}

// validate probes an untrusted curve and caches the verdict.
//
// Verdicts key off the curve's code pointer: closures minted from the
// same function literal share one verdict. Hosts that need distinct
// verdicts must supply distinct functions.
func (e *Evaluator) validate(curve param.Curve) bool {
	key := curveKey(curve)

	e.mu.Lock()
	verdict, seen := e.verdicts[key]
	e.mu.Unlock()
	if seen {
		return verdict
	}

	ok := true
	for _, p := range probes {
		out, panicked := safeCall(curve, p)
		if panicked || math.IsNaN(out) || math.IsInf(out, 0) {
			ok = false
			break
		}
	}

	e.mu.Lock()
	e.verdicts[key] = ok
	e.mu.Unlock()

	if !ok {
		e.logger.Warn("custom curve rejected by probe validation, falling back to linear")
	}
	return ok
}

func (e *Evaluator) storeVerdict(curve param.Curve, ok bool) {
	key := curveKey(curve)
	e.mu.Lock()
	e.verdicts[key] = ok
	e.mu.Unlock()
}

func curveKey(curve param.Curve) uintptr {
	return reflect.ValueOf(curve).Pointer()
}

// safeCall invokes curve, converting a panic into a flag.
func safeCall(curve param.Curve, v float64) (out float64, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
		}
	}()
	return curve(v), false
}

// sanitize collapses non-finite values to 0 and clamps to [-Limit,
// Limit].
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v > Limit {
		return Limit
	}
	if v < -Limit {
		return -Limit
	}
	return v
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
