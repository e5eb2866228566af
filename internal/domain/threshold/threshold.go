// Package threshold turns a continuous sensor reading into a stable digital
// state using an activation/release threshold pair (a Schmitt trigger).
package threshold

import "math"

// Clamp01 limits v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Pair is an activation/release threshold pair.
type Pair struct {
	Activation float64 `json:"activation"`
	Release    float64 `json:"release"`
}

// Normalize clamps both thresholds to [0,1] and lowers Release to Activation
// when it sits above it.
func (p Pair) Normalize() Pair {
	a := Clamp01(p.Activation)
	r := Clamp01(p.Release)
	if r > a {
		r = a
	}
	return Pair{Activation: a, Release: r}
}

// State is one sensor's threshold pair plus its derived pressed state.
//
// Release <= Activation always holds. Pressed only changes inside Update.
type State struct {
	value   float64
	pair    Pair
	pressed bool
}

// New returns a released State with the given thresholds, normalized.
func New(activation, release float64) State {
	return State{pair: Pair{Activation: activation, Release: release}.Normalize()}
}

// Update records raw and re-evaluates the pressed state. A released sensor
// trips at raw >= Activation; a pressed one releases at raw < Release. Values
// in between hold the current state. It reports whether the state flipped.
func (s *State) Update(raw float64) bool {
	s.value = Clamp01(raw)
	switch {
	case !s.pressed && s.value >= s.pair.Activation:
		s.pressed = true
		return true
	case s.pressed && s.value < s.pair.Release:
		s.pressed = false
		return true
	}
	return false
}

// SetThresholds stores the normalized pair. Pressed is left as is until the
// next Update.
func (s *State) SetThresholds(activation, release float64) {
	s.pair = Pair{Activation: activation, Release: release}.Normalize()
}

// Value returns the latest clamped reading.
func (s State) Value() float64 { return s.value }

// Activation returns the activation threshold.
func (s State) Activation() float64 { return s.pair.Activation }

// Release returns the release threshold.
func (s State) Release() float64 { return s.pair.Release }

// Thresholds returns the current pair.
func (s State) Thresholds() Pair { return s.pair }

// Pressed reports the derived digital state.
func (s State) Pressed() bool { return s.pressed }
