// Package render fans renderer processes out, one per job, and waits for all
// of them to exit.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmunix/pdbmovie/internal/job"
	"github.com/vmunix/pdbmovie/internal/proc"
	"github.com/vmunix/pdbmovie/internal/renderer"
	"github.com/vmunix/pdbmovie/internal/workdir"
	"golang.org/x/sync/errgroup"
)

// Config for the dispatcher.
type Config struct {
	Folder      string
	Binary      string
	Stereo      bool
	Timeout     time.Duration // per job; 0 disables
	MaxParallel int           // 0 runs every job at once
}

// Task is one job ready to render.
type Task struct {
	Job    job.Job
	Script string
}

// Outcome is how a task's renderer process ended.
type Outcome struct {
	Job    job.Job
	Result *proc.Result
	Err    error
}

// Dispatcher launches renderer processes.
type Dispatcher struct {
	runner  proc.Runner
	backend renderer.Backend
	scope   *workdir.Scope
	config  Config
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(runner proc.Runner, backend renderer.Backend, scope *workdir.Scope, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		runner:  runner,
		backend: backend,
		scope:   scope,
		config:  cfg,
		logger:  logger,
	}
}

// Command returns the renderer invocation for a task.
func (d *Dispatcher) Command(t Task) proc.Command {
	return d.backend.RenderCommand(d.config.Binary, t.Script, t.Job.RunDir(d.config.Folder), d.config.Stereo)
}

// Dispatch starts one renderer per task and blocks until every one of them
// has exited. Outcomes are returned in task order.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks []Task) []Outcome {
	outcomes := make([]Outcome, len(tasks))

	var g errgroup.Group
	if d.config.MaxParallel > 0 {
		g.SetLimit(d.config.MaxParallel)
	}

	for i, t := range tasks {
		outcomes[i].Job = t.Job
		frameDir := d.backend.FrameDir(d.config.Folder, t.Job)
		if d.backend.ResetsFrameDir() {
			if err := d.scope.ResetDir(frameDir); err != nil {
				outcomes[i].Err = err
				continue
			}
		} else {
			d.scope.Own(frameDir)
		}
		// Failures are recorded per job; returning nil keeps siblings running.
		g.Go(func() error {
			outcomes[i] = d.render(ctx, t)
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

func (d *Dispatcher) render(ctx context.Context, t Task) Outcome {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	log := d.logger.With("cutoff", t.Job.CutoffLabel(), "mode", t.Job.ModeLabel(), "direction", t.Job.Direction)
	cmd := d.Command(t)
	log.Info("renderer started", "command", cmd.String())

	res, err := d.runner.Run(ctx, cmd)
	switch {
	case err == nil:
		log.Info("renderer finished", "duration", res.Duration.Round(time.Millisecond))
	case errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("%w after %s: %w", ErrTimeout, d.config.Timeout, err)
		log.Error("renderer timed out", "timeout", d.config.Timeout)
	default:
		err = fmt.Errorf("%w: %w", ErrRenderFailed, err)
		log.Error("renderer failed", "error", err, "output", res.Tail(10))
	}
	return Outcome{Job: t.Job, Result: res, Err: err}
}
