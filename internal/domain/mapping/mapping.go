// Package mapping relates sensors to the logical buttons they drive.
package mapping

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Unmapped is the button index of a sensor that drives no button.
const Unmapped = 0

// Sentinel kinds for mapping errors.
var (
	ErrInvalidButton = errors.New("invalid button index")
	ErrInvalidSensor = errors.New("invalid sensor index")
)

// Mapping is a sensor index → button index table. Sensors absent from the
// table are Unmapped. Several sensors may share one button.
type Mapping struct {
	buttons map[int]int
}

// New returns an empty mapping.
func New() *Mapping {
	return &Mapping{buttons: make(map[int]int)}
}

// FromTable builds a mapping from a sensor→button table. Unmapped entries are
// dropped; negative indices fail.
func FromTable(table map[int]int) (*Mapping, error) {
	m := New()
	for sensor, button := range table {
		if err := m.Set(sensor, button); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Set maps sensor to button. Button Unmapped removes the entry.
func (m *Mapping) Set(sensor, button int) error {
	if sensor < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSensor, sensor)
	}
	if button < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidButton, button)
	}
	if button == Unmapped {
		delete(m.buttons, sensor)
		return nil
	}
	m.buttons[sensor] = button
	return nil
}

// Button returns the button sensor drives, or Unmapped.
func (m *Mapping) Button(sensor int) int {
	return m.buttons[sensor]
}

// Table returns a copy of the mapped entries.
func (m *Mapping) Table() map[int]int {
	return maps.Clone(m.buttons)
}

// Len returns the number of mapped sensors.
func (m *Mapping) Len() int {
	return len(m.buttons)
}

// Clone returns an independent copy.
func (m *Mapping) Clone() *Mapping {
	return &Mapping{buttons: maps.Clone(m.buttons)}
}

// Truncate drops entries for sensors at or beyond count.
func (m *Mapping) Truncate(count int) {
	for sensor := range m.buttons {
		if sensor >= count {
			delete(m.buttons, sensor)
		}
	}
}

// Group inverts the table into button → ascending sensor indices.
func (m *Mapping) Group() map[int][]int {
	out := make(map[int][]int)
	for sensor, button := range m.buttons {
		out[button] = append(out[button], sensor)
	}
	for _, sensors := range out {
		slices.Sort(sensors)
	}
	return out
}

// Buttons returns the mapped button indices in ascending order.
func (m *Mapping) Buttons() []int {
	return slices.Sorted(maps.Keys(m.Group()))
}

// Sensors returns the mapped sensors in layout order: by button, then by
// sensor index.
func (m *Mapping) Sensors() []int {
	g := m.Group()
	out := make([]int, 0, len(m.buttons))
	for _, b := range slices.Sorted(maps.Keys(g)) {
		out = append(out, g[b]...)
	}
	return out
}

// Pressed aggregates sensor states per button: a button is pressed when any
// of its sensors is.
func (m *Mapping) Pressed(sensorPressed func(sensor int) bool) map[int]bool {
	out := make(map[int]bool)
	for sensor, button := range m.buttons {
		out[button] = out[button] || sensorPressed(sensor)
	}
	return out
}

// Change describes how one button's sensor group differs between two mappings.
type Change struct {
	Button int   `json:"button"`
	Before []int `json:"before,omitempty"`
	After  []int `json:"after,omitempty"`
}

// Diff lists, in button order, every button whose sensor set differs between
// old and updated. Buttons with identical sets are left out so layouts can
// keep their widgets.
func Diff(old, updated *Mapping) []Change {
	before, after := old.Group(), updated.Group()
	keys := make(map[int]struct{})
	for b := range before {
		keys[b] = struct{}{}
	}
	for b := range after {
		keys[b] = struct{}{}
	}
	var out []Change
	for _, b := range slices.Sorted(maps.Keys(keys)) {
		if slices.Equal(before[b], after[b]) {
			continue
		}
		out = append(out, Change{Button: b, Before: before[b], After: after[b]})
	}
	return out
}
