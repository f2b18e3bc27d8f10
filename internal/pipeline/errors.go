package pipeline

import (
	"errors"
	"fmt"

	"github.com/vmunix/pdbmovie/internal/job"
)

// ErrNoBackend is returned when a RunConfig has no renderer backend.
var ErrNoBackend = errors.New("no renderer backend configured")

// Stage names the pipeline step a job failed in.
type Stage string

const (
	StageScript  Stage = "script"
	StageRender  Stage = "render"
	StageEncode  Stage = "encode"
	StageCombine Stage = "combine"
)

// JobError records which stage failed for a job. Combine failures carry the
// pair's cutoff and mode with an empty direction.
type JobError struct {
	Job   job.Job
	Stage Stage
	Err   error
}

func (e *JobError) Error() string {
	if e.Stage == StageCombine {
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Job.Pair(), e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Job, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}
