// Package types contains read-only view shapes shared by the API and publishers.
package types

import "math"

// Percent returns a threshold as the rounded whole percentage shown to users.
func Percent(v float64) int {
	return int(math.Round(v * 100))
}

// SensorView is one sensor as seen by readers.
type SensorView struct {
	Index             int       `json:"index"`
	Value             float64   `json:"value"`
	Activation        float64   `json:"activation"`
	Release           float64   `json:"release"`
	ActivationPercent int       `json:"activation_percent"`
	ReleasePercent    int       `json:"release_percent"`
	Pressed           bool      `json:"pressed"`
	Button            int       `json:"button"`
	History           []float64 `json:"history,omitempty"`
}

// ButtonView is a logical button and the sensors driving it.
type ButtonView struct {
	Button  int   `json:"button"`
	Sensors []int `json:"sensors"`
	Pressed bool  `json:"pressed"`
}

// SessionView describes the in-flight drag.
type SessionView struct {
	ID                string  `json:"id"`
	Sensor            int     `json:"sensor"`
	Edit              string  `json:"edit"`
	PendingActivation float64 `json:"pending_activation"`
	PendingRelease    float64 `json:"pending_release"`
}

// Snapshot is a consistent copy of the whole pad taken between ticks.
type Snapshot struct {
	ReleaseMode string       `json:"release_mode"`
	GlobalRatio float64      `json:"global_ratio"`
	Sensors     []SensorView `json:"sensors"`
	Buttons     []ButtonView `json:"buttons"`
	Session     *SessionView `json:"session,omitempty"`
}
