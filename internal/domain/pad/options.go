package pad

import (
	"time"

	"github.com/okian/padcal/internal/domain/release"
	"github.com/okian/padcal/internal/domain/threshold"
)

// Option configures a Pad.
type Option func(*Pad)

// WithHistorySize sets the per-sensor history capacity.
func WithHistorySize(n int) Option {
	return func(p *Pad) {
		p.historySize = n
	}
}

// WithButtonLimit bounds button indices to [0,n]. Zero means unbounded.
func WithButtonLimit(n int) Option {
	return func(p *Pad) {
		if n >= 0 {
			p.buttonLimit = n
		}
	}
}

// WithReleaseMode sets the initial release policy.
func WithReleaseMode(mode release.Mode, ratio float64) Option {
	return func(p *Pad) {
		if mode.Valid() {
			p.mode = mode
		}
		p.ratio = threshold.Clamp01(ratio)
	}
}

// WithDefaultThresholds sets the pair given to sensors that have no
// calibration yet.
func WithDefaultThresholds(activation, rel float64) Option {
	return func(p *Pad) {
		p.defaults = threshold.Pair{Activation: activation, Release: rel}.Normalize()
	}
}

// WithClock overrides the time source used for drag bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(p *Pad) {
		if now != nil {
			p.now = now
		}
	}
}
