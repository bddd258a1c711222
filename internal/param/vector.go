package param

import "math"

// Name identifies one field of the parameter vector. The name strings
// are the wire contract with renderers and rule tables; they never
// change spelling.
type Name string

const (
	Hue            Name = "hue"
	Density        Name = "density"
	Morph          Name = "morph"
	Chaos          Name = "chaos"
	NoiseFrequency Name = "noiseFrequency"
	Glitch         Name = "glitch"
	Displacement   Name = "displacementAmplitude"
	ChromaShift    Name = "chromaShift"
	TimeScale      Name = "timeScale"
	BeatPhase      Name = "beatPhase"
)

// Names lists every parameter in declaration order.
//
// CRITICAL: all iteration over vector fields goes through this slice.
// Map iteration would randomize derived output and trace ordering.
var Names = [...]Name{
	Hue,
	Density,
	Morph,
	Chaos,
	NoiseFrequency,
	Glitch,
	Displacement,
	ChromaShift,
	TimeScale,
	BeatPhase,
}

// Known reports whether name belongs to the fixed parameter set.
func Known(name Name) bool {
	_, ok := ranges[name]
	return ok
}

// Range bounds one parameter field.
type Range struct {
	Min float64
	Max float64

	// Cyclic fields wrap into [Min, Max) instead of clamping.
	Cyclic bool

	// Open fields clamp at Min only; Max is advisory for hosts.
	Open bool
}

var ranges = map[Name]Range{
	Hue:            {Min: 0, Max: 1, Cyclic: true},
	Density:        {Min: 0, Max: 1},
	Morph:          {Min: 0, Max: 1},
	Chaos:          {Min: 0, Max: 1},
	NoiseFrequency: {Min: 0, Max: 4},
	Glitch:         {Min: 0, Max: 2, Open: true},
	Displacement:   {Min: 0, Max: 2},
	ChromaShift:    {Min: -1, Max: 1},
	TimeScale:      {Min: 0, Max: 4},
	BeatPhase:      {Min: 0, Max: 1, Cyclic: true},
}

// RangeOf returns the declared range for name.
func RangeOf(name Name) (Range, bool) {
	r, ok := ranges[name]
	return r, ok
}

// Conform forces value into the declared range for name.
// Non-finite input collapses to 0 before bounding. Unknown names
// return the value unchanged; callers validate names at table-compile
// time, not here.
func Conform(name Name, value float64) float64 {
	r, ok := ranges[name]
	if !ok {
		return value
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		value = 0
	}
	if r.Cyclic {
		return wrap(value, r.Min, r.Max)
	}
	if value < r.Min {
		return r.Min
	}
	if !r.Open && value > r.Max {
		return r.Max
	}
	return value
}

// wrap maps value into [min, max). Width is always positive for
// declared ranges.
func wrap(value, min, max float64) float64 {
	width := max - min
	m := math.Mod(value-min, width)
	if m < 0 {
		m += width
	}
	return min + m
}

// Clamp01 bounds value to [0, 1], collapsing non-finite input to 0.
func Clamp01(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

// Vector is one complete parameter assignment for a visual surface.
// The JSON field names match the Name constants; renderers consume
// this shape directly.
type Vector struct {
	Hue            float64 `json:"hue"`
	Density        float64 `json:"density"`
	Morph          float64 `json:"morph"`
	Chaos          float64 `json:"chaos"`
	NoiseFrequency float64 `json:"noiseFrequency"`
	Glitch         float64 `json:"glitch"`
	Displacement   float64 `json:"displacementAmplitude"`
	ChromaShift    float64 `json:"chromaShift"`
	TimeScale      float64 `json:"timeScale"`
	BeatPhase      float64 `json:"beatPhase"`
}

// DefaultHome is the seed vector used when a host supplies no home
// state of its own.
func DefaultHome() Vector {
	return Vector{
		Hue:            0.6,
		Density:        0.5,
		Morph:          0.3,
		Chaos:          0.2,
		NoiseFrequency: 1.0,
		Glitch:         0,
		Displacement:   0.5,
		ChromaShift:    0,
		TimeScale:      1.0,
		BeatPhase:      0,
	}
}

// Get returns the named field. Unknown names return 0; callers that
// accept external names must check Known first.
func (v Vector) Get(name Name) float64 {
	switch name {
	case Hue:
		return v.Hue
	case Density:
		return v.Density
	case Morph:
		return v.Morph
	case Chaos:
		return v.Chaos
	case NoiseFrequency:
		return v.NoiseFrequency
	case Glitch:
		return v.Glitch
	case Displacement:
		return v.Displacement
	case ChromaShift:
		return v.ChromaShift
	case TimeScale:
		return v.TimeScale
	case BeatPhase:
		return v.BeatPhase
	default:
		return 0
	}
}

// Set assigns the named field. Returns false for unknown names and
// leaves the vector untouched.
func (v *Vector) Set(name Name, value float64) bool {
	switch name {
	case Hue:
		v.Hue = value
	case Density:
		v.Density = value
	case Morph:
		v.Morph = value
	case Chaos:
		v.Chaos = value
	case NoiseFrequency:
		v.NoiseFrequency = value
	case Glitch:
		v.Glitch = value
	case Displacement:
		v.Displacement = value
	case ChromaShift:
		v.ChromaShift = value
	case TimeScale:
		v.TimeScale = value
	case BeatPhase:
		v.BeatPhase = value
	default:
		return false
	}
	return true
}

// Conformed returns a copy with every field forced into its declared
// range.
func (v Vector) Conformed() Vector {
	out := v
	for _, name := range Names {
		out.Set(name, Conform(name, out.Get(name)))
	}
	return out
}

// Partial is a sparse assignment applied on top of a Vector. Unknown
// names are rejected at the merge site, not silently dropped.
type Partial map[Name]float64

// Apply merges p into v, conforming each touched field. Returns the
// first unknown name encountered, or "" when every name is known.
func (p Partial) Apply(v *Vector) Name {
	for _, name := range Names {
		value, ok := p[name]
		if !ok {
			continue
		}
		v.Set(name, Conform(name, value))
	}
	for name := range p {
		if !Known(name) {
			return name
		}
	}
	return ""
}
