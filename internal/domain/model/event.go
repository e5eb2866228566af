// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/padcal/internal/domain/release"
)

// CommandKind identifies the device call a Command stands for.
type CommandKind int

const (
	SetThreshold CommandKind = iota + 1
	SetReleaseMode
	SetButtonMapping
)

func (k CommandKind) String() string {
	switch k {
	case SetThreshold:
		return "set_threshold"
	case SetReleaseMode:
		return "set_release_mode"
	case SetButtonMapping:
		return "set_button_mapping"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// Command is a fire-and-forget write the pad wants pushed to the device.
// Only the fields relevant to Kind are set.
type Command struct {
	ID         string       // unique id for log correlation
	Kind       CommandKind  // device call
	Sensor     int          // SetThreshold, SetButtonMapping
	Activation float64      // SetThreshold
	Release    float64      // SetThreshold
	Mode       release.Mode // SetReleaseMode
	Ratio      float64      // SetReleaseMode
	Button     int          // SetButtonMapping
	TS         time.Time    // creation time
}

// NewThreshold builds a SetThreshold command.
func NewThreshold(sensor int, activation, rel float64) Command {
	return Command{ID: uuid.NewString(), Kind: SetThreshold, Sensor: sensor, Activation: activation, Release: rel, TS: time.Now()}
}

// NewReleaseMode builds a SetReleaseMode command.
func NewReleaseMode(mode release.Mode, ratio float64) Command {
	return Command{ID: uuid.NewString(), Kind: SetReleaseMode, Mode: mode, Ratio: ratio, TS: time.Now()}
}

// NewButtonMapping builds a SetButtonMapping command.
func NewButtonMapping(sensor, button int) Command {
	return Command{ID: uuid.NewString(), Kind: SetButtonMapping, Sensor: sensor, Button: button, TS: time.Now()}
}

// Transition is a pressed-state flip observed during a poll tick.
type Transition struct {
	Sensor  int
	Button  int // 0 when the sensor is unmapped
	Pressed bool
	Value   float64
}
