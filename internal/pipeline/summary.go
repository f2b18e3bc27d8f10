package pipeline

import (
	"errors"
	"time"

	"github.com/vmunix/pdbmovie/internal/job"
)

// JobOutcome is the result of one job.
type JobOutcome struct {
	Job      job.Job
	Script   string
	Artifact string
	Size     int64
	Err      *JobError
}

// OK reports whether the job produced its video.
func (o JobOutcome) OK() bool {
	return o.Err == nil
}

// PairOutcome is the result of combining one pair. Skipped pairs had a
// failed direction and were never attempted.
type PairOutcome struct {
	Pair     job.Pair
	Artifact string
	Size     int64
	Skipped  bool
	Err      *JobError
}

// Summary describes a finished run.
type Summary struct {
	Folder     string
	Backend    string
	StartedAt  time.Time
	FinishedAt time.Time
	Jobs       []JobOutcome
	Combined   []PairOutcome
	RunID      int64 // history ledger row; 0 when not recorded
}

// Duration is the wall time of the run.
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Errors returns every job and combine failure in job order.
func (s *Summary) Errors() []*JobError {
	var errs []*JobError
	for _, o := range s.Jobs {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	for _, o := range s.Combined {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

// Failed counts failed jobs and combines.
func (s *Summary) Failed() int {
	return len(s.Errors())
}

// Err joins every failure, or returns nil when the run succeeded.
func (s *Summary) Err() error {
	errs := s.Errors()
	if len(errs) == 0 {
		return nil
	}
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return errors.Join(joined...)
}
