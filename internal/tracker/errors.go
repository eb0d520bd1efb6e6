package tracker

import "errors"

var (
	// ErrCalibrationTimeout is returned when the sample source does not
	// deliver the calibration quota before the configured timeout.
	ErrCalibrationTimeout = errors.New("calibration timed out")
	// ErrNoSamples is returned by New when the source has neither a live
	// reader nor a playback recording.
	ErrNoSamples = errors.New("no sample source")
	// ErrInvalidAlpha is returned for blend coefficients outside [0, 1].
	ErrInvalidAlpha = errors.New("alpha must be within [0, 1]")
	// ErrNotRunning is returned by Runner commands when the loop is not running.
	ErrNotRunning = errors.New("tick loop not running")
)
