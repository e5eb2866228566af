// Package session implements the interactive drag that edits one sensor's
// thresholds. At most one drag is in flight; while it runs only pending
// values change, the committed sensor state is left alone.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/padcal/internal/domain/threshold"
)

// Edit selects which threshold a drag adjusts.
type Edit int

const (
	EditActivation Edit = iota
	EditRelease
)

func (e Edit) String() string {
	if e == EditRelease {
		return "release"
	}
	return "activation"
}

// ParseEdit maps "activation" or "release" to an Edit. Anything else is
// reported as not ok.
func ParseEdit(s string) (Edit, bool) {
	switch s {
	case "", "activation":
		return EditActivation, true
	case "release":
		return EditRelease, true
	}
	return EditActivation, false
}

// Target identifies the sensor and threshold under edit.
type Target struct {
	Sensor int  `json:"sensor"`
	Edit   Edit `json:"-"`
}

// Extent is the vertical span a sensor occupies on screen. A pointer at Top
// means 1.0, at Top+Height means 0.0.
type Extent struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Position maps a pointer y coordinate to a threshold in [0,1]. Pointers
// outside the extent clamp instead of aborting.
func (e Extent) Position(y float64) float64 {
	h := e.Height
	if h < 1 {
		h = 1
	}
	return threshold.Clamp01(1 - (y-e.Top)/h)
}

// Session is the drag state machine. The zero value is Idle and ready to use.
type Session struct {
	id           string
	target       *Target
	pending      threshold.Pair
	startedAt    time.Time
	lastActivity time.Time
}

// Begin starts a drag on sensor from Idle, seeding the pending pair with the
// sensor's current thresholds. It returns false and changes nothing when a
// drag is already in flight.
func (s *Session) Begin(sensor int, edit Edit, current threshold.Pair, now time.Time) bool {
	if s.target != nil {
		return false
	}
	s.id = uuid.NewString()
	s.target = &Target{Sensor: sensor, Edit: edit}
	s.pending = current.Normalize()
	s.startedAt = now
	s.lastActivity = now
	return true
}

// Move updates the edited pending threshold from a pointer position. A
// release edit never exceeds the pending activation. Returns false when Idle.
func (s *Session) Move(y float64, extent Extent, now time.Time) bool {
	if s.target == nil {
		return false
	}
	v := extent.Position(y)
	switch s.target.Edit {
	case EditRelease:
		s.pending.Release = min(v, s.pending.Activation)
	default:
		s.pending.Activation = v
	}
	s.lastActivity = now
	return true
}

// End finishes the drag and returns its target and pending pair for the
// caller to commit. The session is Idle afterwards.
func (s *Session) End() (Target, threshold.Pair, bool) {
	if s.target == nil {
		return Target{}, threshold.Pair{}, false
	}
	t, p := *s.target, s.pending
	s.reset()
	return t, p, true
}

// Cancel abandons the drag without producing a commit.
func (s *Session) Cancel() (Target, bool) {
	if s.target == nil {
		return Target{}, false
	}
	t := *s.target
	s.reset()
	return t, true
}

func (s *Session) reset() {
	s.target = nil
	s.pending = threshold.Pair{}
	s.id = ""
}

// Active returns the current target, if any.
func (s *Session) Active() (Target, bool) {
	if s.target == nil {
		return Target{}, false
	}
	return *s.target, true
}

// Pending returns the working pair of the active drag.
func (s *Session) Pending() threshold.Pair {
	return s.pending
}

// ID returns the identifier of the active drag, empty when Idle.
func (s *Session) ID() string {
	return s.id
}

// Duration returns how long the active drag has been running.
func (s *Session) Duration(now time.Time) time.Duration {
	if s.target == nil {
		return 0
	}
	return now.Sub(s.startedAt)
}

// Stale reports whether an active drag saw no Begin/Move for at least timeout.
func (s *Session) Stale(now time.Time, timeout time.Duration) bool {
	return s.target != nil && timeout > 0 && now.Sub(s.lastActivity) >= timeout
}
