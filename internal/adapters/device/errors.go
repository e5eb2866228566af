package device

import "errors"

// Sentinel kinds for device errors.
var (
	ErrNotConnected  = errors.New("device not connected")
	ErrUnknownSensor = errors.New("sensor index out of range")
	ErrUnsupported   = errors.New("operation not supported by device")
	ErrSampleLength  = errors.New("sample length does not match sensor count")
)
