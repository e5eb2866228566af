package service

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrNoDevice is returned by calibration operations while no device is
	// active. It is never fatal; the next poll retries.
	ErrNoDevice = errors.New("device unavailable")
	// ErrNoStore is returned by named profile operations when no profile
	// directory is configured.
	ErrNoStore = errors.New("profile store not configured")
)
