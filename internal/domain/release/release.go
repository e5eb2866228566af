// Package release defines how release thresholds derive from activation
// thresholds under the pad-wide release mode.
package release

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/padcal/internal/domain/threshold"
)

// ErrUnknownMode is returned when parsing an unrecognised mode name.
var ErrUnknownMode = errors.New("unknown release mode")

// Mode selects the release-threshold policy.
type Mode int

const (
	// None: release equals activation, no hysteresis band.
	None Mode = iota
	// Global: release is activation scaled by one shared ratio.
	Global
	// Individual: each sensor's release is edited independently.
	Individual
)

// Modes lists every mode in declaration order.
var Modes = []Mode{None, Global, Individual}

// DefaultRatio is the global ratio used before anything else is chosen.
const DefaultRatio = 0.8

func (m Mode) String() string {
	switch m {
	case None:
		return "none"
	case Global:
		return "global"
	case Individual:
		return "individual"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool {
	return m >= None && m <= Individual
}

// Parse maps "none", "global" or "individual" (case-insensitive) to a Mode.
func Parse(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return None, nil
	case "global":
		return Global, nil
	case "individual":
		return Individual, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Names returns the textual form of every mode.
func Names() []string {
	out := make([]string, len(Modes))
	for i, m := range Modes {
		out[i] = m.String()
	}
	return out
}

// Derive returns the release threshold for activation under mode. current is
// the sensor's present release threshold and only matters for Individual,
// where it is kept (clamped to activation). The result is always in
// [0, activation].
func Derive(mode Mode, ratio, activation, current float64) float64 {
	activation = threshold.Clamp01(activation)
	var r float64
	switch mode {
	case Global:
		r = activation * threshold.Clamp01(ratio)
	case Individual:
		r = threshold.Clamp01(current)
	default:
		r = activation
	}
	if r > activation {
		r = activation
	}
	return r
}

// Apply derives a full pair under mode from activation and the sensor's
// current release.
func Apply(mode Mode, ratio, activation, current float64) threshold.Pair {
	a := threshold.Clamp01(activation)
	return threshold.Pair{Activation: a, Release: Derive(mode, ratio, a, current)}
}
