package script

import "errors"

// ErrMissingResource is returned when the user command file cannot be read.
var ErrMissingResource = errors.New("missing resource")
