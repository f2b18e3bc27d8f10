package workdir

import "errors"

// ErrFilesystem wraps failures creating, writing, removing or chmod-ing
// files managed during a run.
var ErrFilesystem = errors.New("filesystem operation failed")
