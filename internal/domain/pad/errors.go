package pad

import "errors"

var (
	// ErrUnknownSensor is returned for sensor indices outside the pad.
	ErrUnknownSensor = errors.New("unknown sensor")
	// ErrReleaseLocked is returned when a release drag is requested while the
	// release threshold is derived from activation.
	ErrReleaseLocked = errors.New("release threshold is not individually editable")
)
