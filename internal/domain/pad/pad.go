// Package pad aggregates the per-sensor calibration model of one pad: threshold
// states, sample histories, the release policy, the button mapping and the
// drag session.
//
// A Pad is single-writer and not safe for concurrent use. Mutations return the
// device commands they imply; the caller decides how to deliver them.
package pad

import (
	"fmt"
	"time"

	"github.com/okian/padcal/internal/domain/history"
	"github.com/okian/padcal/internal/domain/mapping"
	"github.com/okian/padcal/internal/domain/model"
	"github.com/okian/padcal/internal/domain/profile"
	"github.com/okian/padcal/internal/domain/release"
	"github.com/okian/padcal/internal/domain/session"
	"github.com/okian/padcal/internal/domain/threshold"
	"github.com/okian/padcal/internal/domain/types"
)

// DefaultActivation is the activation threshold of an uncalibrated sensor.
const DefaultActivation = 0.5

type sensor struct {
	state   threshold.State
	history *history.History
}

// Pad is the calibration aggregate.
type Pad struct {
	sensors     []*sensor
	mode        release.Mode
	ratio       float64
	mapping     *mapping.Mapping
	session     session.Session
	historySize int
	buttonLimit int
	defaults    threshold.Pair
	now         func() time.Time
}

// New creates a pad with count uncalibrated sensors.
func New(count int, opts ...Option) *Pad {
	p := &Pad{
		mode:        release.None,
		ratio:       release.DefaultRatio,
		mapping:     mapping.New(),
		historySize: history.DefaultCapacity,
		defaults:    threshold.Pair{Activation: DefaultActivation, Release: DefaultActivation},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.Resize(count)
	return p
}

func (p *Pad) newSensor() *sensor {
	pair := release.Apply(p.mode, p.ratio, p.defaults.Activation, p.defaults.Release)
	return &sensor{
		state:   threshold.New(pair.Activation, pair.Release),
		history: history.New(p.historySize),
	}
}

// Count returns the number of sensors.
func (p *Pad) Count() int {
	return len(p.sensors)
}

// Resize changes the sensor count. Sensors that survive keep their state;
// new ones start uncalibrated. Mapping entries and a drag on removed sensors
// are dropped.
func (p *Pad) Resize(count int) {
	count = max(count, 0)
	if count < len(p.sensors) {
		p.sensors = p.sensors[:count]
	}
	for len(p.sensors) < count {
		p.sensors = append(p.sensors, p.newSensor())
	}
	p.mapping.Truncate(count)
	if t, ok := p.session.Active(); ok && t.Sensor >= count {
		p.session.Cancel()
	}
}

func (p *Pad) sensor(i int) (*sensor, error) {
	if i < 0 || i >= len(p.sensors) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSensor, i)
	}
	return p.sensors[i], nil
}

// Update feeds one poll tick of raw readings, one per sensor in index order.
// Extra readings are ignored and missing ones leave their sensor untouched.
// It returns the pressed-state flips of this tick.
func (p *Pad) Update(samples []float64) []model.Transition {
	var out []model.Transition
	for i, raw := range samples {
		if i >= len(p.sensors) {
			break
		}
		s := p.sensors[i]
		flipped := s.state.Update(raw)
		s.history.Push(s.state.Value())
		if flipped {
			out = append(out, model.Transition{
				Sensor:  i,
				Button:  p.mapping.Button(i),
				Pressed: s.state.Pressed(),
				Value:   s.state.Value(),
			})
		}
	}
	return out
}

// Thresholds returns sensor i's committed pair.
func (p *Pad) Thresholds(i int) (threshold.Pair, error) {
	s, err := p.sensor(i)
	if err != nil {
		return threshold.Pair{}, err
	}
	return s.state.Thresholds(), nil
}

// Pressed reports sensor i's derived state.
func (p *Pad) Pressed(i int) bool {
	s, err := p.sensor(i)
	return err == nil && s.state.Pressed()
}

// SetThresholds commits a pair to sensor i under the active release policy.
// rel only counts in Individual mode.
func (p *Pad) SetThresholds(i int, activation, rel float64) ([]model.Command, error) {
	s, err := p.sensor(i)
	if err != nil {
		return nil, err
	}
	pair := release.Apply(p.mode, p.ratio, activation, rel)
	s.state.SetThresholds(pair.Activation, pair.Release)
	return []model.Command{model.NewThreshold(i, pair.Activation, pair.Release)}, nil
}

// ReleaseMode returns the active policy and the global ratio.
func (p *Pad) ReleaseMode() (release.Mode, float64) {
	return p.mode, p.ratio
}

// SetReleaseMode switches policy and re-derives every sensor's release.
// Switching to Individual keeps current releases. A release drag is cancelled
// when release stops being editable.
func (p *Pad) SetReleaseMode(mode release.Mode, ratio float64) ([]model.Command, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %d", release.ErrUnknownMode, int(mode))
	}
	p.mode = mode
	p.ratio = threshold.Clamp01(ratio)
	if t, ok := p.session.Active(); ok && t.Edit == session.EditRelease && mode != release.Individual {
		p.session.Cancel()
	}
	cmds := make([]model.Command, 0, len(p.sensors)+1)
	cmds = append(cmds, model.NewReleaseMode(p.mode, p.ratio))
	for i, s := range p.sensors {
		cur := s.state.Thresholds()
		pair := release.Apply(p.mode, p.ratio, cur.Activation, cur.Release)
		s.state.SetThresholds(pair.Activation, pair.Release)
		cmds = append(cmds, model.NewThreshold(i, pair.Activation, pair.Release))
	}
	return cmds, nil
}

// Button returns the button sensor i drives.
func (p *Pad) Button(i int) int {
	return p.mapping.Button(i)
}

// SetButton maps sensor i to button b (mapping.Unmapped clears it).
func (p *Pad) SetButton(i, b int) ([]model.Command, error) {
	if _, err := p.sensor(i); err != nil {
		return nil, err
	}
	if err := p.checkButton(b); err != nil {
		return nil, err
	}
	if err := p.mapping.Set(i, b); err != nil {
		return nil, err
	}
	return []model.Command{model.NewButtonMapping(i, b)}, nil
}

// SetButtonLimit bounds button indices to [0,n]; zero means unbounded.
// Existing entries above the new limit are unmapped.
func (p *Pad) SetButtonLimit(n int) {
	p.buttonLimit = max(n, 0)
	if p.buttonLimit == 0 {
		return
	}
	for sensor, b := range p.mapping.Table() {
		if b > p.buttonLimit {
			_ = p.mapping.Set(sensor, mapping.Unmapped)
		}
	}
}

func (p *Pad) checkButton(b int) error {
	if b < 0 || (p.buttonLimit > 0 && b > p.buttonLimit) {
		return fmt.Errorf("%w: %d", mapping.ErrInvalidButton, b)
	}
	return nil
}

// Mapping returns a copy of the button mapping.
func (p *Pad) Mapping() *mapping.Mapping {
	return p.mapping.Clone()
}

// ButtonsPressed aggregates sensor states per mapped button.
func (p *Pad) ButtonsPressed() map[int]bool {
	return p.mapping.Pressed(p.Pressed)
}

// BeginDrag starts a drag on sensor i. It returns false without error when
// another drag is already in flight.
func (p *Pad) BeginDrag(i int, edit session.Edit) (bool, error) {
	s, err := p.sensor(i)
	if err != nil {
		return false, err
	}
	if edit == session.EditRelease && p.mode != release.Individual {
		return false, fmt.Errorf("%w: mode %s", ErrReleaseLocked, p.mode)
	}
	return p.session.Begin(i, edit, s.state.Thresholds(), p.now()), nil
}

// MoveDrag updates the pending value from a pointer position.
func (p *Pad) MoveDrag(y float64, extent session.Extent) bool {
	return p.session.Move(y, extent, p.now())
}

// EndDrag commits the pending value under the release policy and returns
// the resulting device command.
func (p *Pad) EndDrag() ([]model.Command, bool) {
	target, pending, ok := p.session.End()
	if !ok {
		return nil, false
	}
	s, err := p.sensor(target.Sensor)
	if err != nil {
		return nil, false
	}
	cur := s.state.Thresholds()
	var pair threshold.Pair
	if target.Edit == session.EditRelease {
		pair = release.Apply(p.mode, p.ratio, cur.Activation, pending.Release)
	} else {
		pair = release.Apply(p.mode, p.ratio, pending.Activation, cur.Release)
	}
	s.state.SetThresholds(pair.Activation, pair.Release)
	return []model.Command{model.NewThreshold(target.Sensor, pair.Activation, pair.Release)}, true
}

// CancelDrag discards the active drag.
func (p *Pad) CancelDrag() bool {
	_, ok := p.session.Cancel()
	return ok
}

// CancelStale cancels a drag idle for at least timeout.
func (p *Pad) CancelStale(timeout time.Duration) bool {
	if !p.session.Stale(p.now(), timeout) {
		return false
	}
	return p.CancelDrag()
}

// Dragging returns the active drag target, if any.
func (p *Pad) Dragging() (session.Target, bool) {
	return p.session.Active()
}

// Snapshot copies the pad for readers. Histories are included on request.
func (p *Pad) Snapshot(withHistory bool) types.Snapshot {
	snap := types.Snapshot{
		ReleaseMode: p.mode.String(),
		GlobalRatio: p.ratio,
		Sensors:     make([]types.SensorView, len(p.sensors)),
		Buttons:     []types.ButtonView{},
	}
	for i, s := range p.sensors {
		v := types.SensorView{
			Index:             i,
			Value:             s.state.Value(),
			Activation:        s.state.Activation(),
			Release:           s.state.Release(),
			ActivationPercent: types.Percent(s.state.Activation()),
			ReleasePercent:    types.Percent(s.state.Release()),
			Pressed:           s.state.Pressed(),
			Button:            p.mapping.Button(i),
		}
		if withHistory {
			v.History = s.history.Values()
		}
		snap.Sensors[i] = v
	}
	pressed := p.ButtonsPressed()
	group := p.mapping.Group()
	for _, b := range p.mapping.Buttons() {
		snap.Buttons = append(snap.Buttons, types.ButtonView{Button: b, Sensors: group[b], Pressed: pressed[b]})
	}
	if t, ok := p.session.Active(); ok {
		pending := p.session.Pending()
		snap.Session = &types.SessionView{
			ID:                p.session.ID(),
			Sensor:            t.Sensor,
			Edit:              t.Edit.String(),
			PendingActivation: pending.Activation,
			PendingRelease:    pending.Release,
		}
	}
	return snap
}

// Profile exports the live calibration. Every sensor appears in Mapping,
// unmapped ones with mapping.Unmapped.
func (p *Pad) Profile() profile.Profile {
	out := profile.Profile{
		Version:     profile.Version,
		ReleaseMode: p.mode,
		Sensors:     make(map[int]threshold.Pair, len(p.sensors)),
		Mapping:     make(map[int]int, len(p.sensors)),
	}
	if p.mode == release.Global {
		out.GlobalRatio = p.ratio
	}
	for i, s := range p.sensors {
		out.Sensors[i] = s.state.Thresholds()
		out.Mapping[i] = p.mapping.Button(i)
	}
	return out
}

// ApplyProfile loads prof all-or-nothing. Entries for sensors the pad does
// not have are ignored and sensors the profile omits keep their values. The
// release policy is applied after the thresholds. Any active drag is
// cancelled. Commands cover every live sensor.
func (p *Pad) ApplyProfile(prof profile.Profile) ([]model.Command, error) {
	if err := prof.Validate(); err != nil {
		return nil, err
	}
	ratio := p.ratio
	if prof.ReleaseMode == release.Global {
		ratio = threshold.Clamp01(prof.GlobalRatio)
	}

	pairs := make([]threshold.Pair, len(p.sensors))
	for i, s := range p.sensors {
		pair := s.state.Thresholds()
		if t, ok := prof.Sensors[i]; ok {
			pair = t
		}
		pairs[i] = release.Apply(prof.ReleaseMode, ratio, pair.Activation, pair.Release)
	}
	m := p.mapping.Clone()
	for i, b := range prof.Mapping {
		if i >= len(p.sensors) {
			continue
		}
		if err := p.checkButton(b); err != nil {
			return nil, err
		}
		if err := m.Set(i, b); err != nil {
			return nil, err
		}
	}

	p.session.Cancel()
	p.mode, p.ratio, p.mapping = prof.ReleaseMode, ratio, m
	cmds := make([]model.Command, 0, 2*len(p.sensors)+1)
	cmds = append(cmds, model.NewReleaseMode(p.mode, p.ratio))
	for i, s := range p.sensors {
		s.state.SetThresholds(pairs[i].Activation, pairs[i].Release)
		cmds = append(cmds, model.NewThreshold(i, pairs[i].Activation, pairs[i].Release))
	}
	for i := range p.sensors {
		cmds = append(cmds, model.NewButtonMapping(i, m.Button(i)))
	}
	return cmds, nil
}

// SyncSensor overwrites sensor i with configuration read back from the
// device. It emits no commands. A sensor under drag keeps its pending value.
func (p *Pad) SyncSensor(i int, pair threshold.Pair, button int) error {
	s, err := p.sensor(i)
	if err != nil {
		return err
	}
	if err := p.checkButton(button); err != nil {
		return err
	}
	s.state.SetThresholds(pair.Activation, pair.Release)
	return p.mapping.Set(i, button)
}

// SyncRelease adopts the device's release policy without re-deriving.
func (p *Pad) SyncRelease(mode release.Mode, ratio float64) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %d", release.ErrUnknownMode, int(mode))
	}
	p.mode, p.ratio = mode, threshold.Clamp01(ratio)
	return nil
}

// ClearHistory empties every sensor's history.
func (p *Pad) ClearHistory() {
	for _, s := range p.sensors {
		s.history.Clear()
	}
}
