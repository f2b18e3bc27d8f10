package render

import "errors"

var (
	// ErrRenderFailed is returned when a renderer process could not start or
	// exited with a non-zero status.
	ErrRenderFailed = errors.New("render failed")

	// ErrTimeout is returned when a renderer process outlives its timeout.
	ErrTimeout = errors.New("render timed out")
)
