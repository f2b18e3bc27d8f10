package encode

import "errors"

var (
	// ErrEncodeFailed is returned when an encoder step fails or produces no output.
	ErrEncodeFailed = errors.New("encode failed")

	// ErrNoFrames is returned when a job's frame directory holds no frames.
	ErrNoFrames = errors.New("no frames rendered")

	// ErrIncomplete is returned when combining a pair whose direction videos
	// are not both present.
	ErrIncomplete = errors.New("direction videos missing")

	// ErrLoopMismatch is returned when a looping video is not twice as long
	// as its forward sweep.
	ErrLoopMismatch = errors.New("loop duration mismatch")
)
