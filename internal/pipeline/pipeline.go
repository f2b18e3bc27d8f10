// Package pipeline runs a whole movie batch: it builds the jobs, writes their
// scripts, renders them in parallel, encodes and combines the videos and
// records the outcome.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/vmunix/pdbmovie/internal/encode"
	"github.com/vmunix/pdbmovie/internal/history"
	"github.com/vmunix/pdbmovie/internal/job"
	"github.com/vmunix/pdbmovie/internal/proc"
	"github.com/vmunix/pdbmovie/internal/render"
	"github.com/vmunix/pdbmovie/internal/renderer"
	"github.com/vmunix/pdbmovie/internal/script"
	"github.com/vmunix/pdbmovie/internal/workdir"
	"golang.org/x/sync/errgroup"
)

// RunConfig is everything one run needs, resolved before the run starts.
type RunConfig struct {
	Folder            string // absolute
	Backend           renderer.Backend
	Resolution        *job.Resolution
	Stereo            bool
	Combine           bool
	CommandFile       string
	Cutoffs           []float64
	Modes             []int
	RendererBinary    string
	Encoder           encode.Config
	Timeout           time.Duration // per renderer process; 0 disables
	MaxParallel       int
	KeepIntermediates bool
	ParallelEncode    bool
}

// Recorder stores run outcomes.
type Recorder interface {
	Record(ctx context.Context, run *history.Run, entries []*history.Entry) error
}

// Pipeline runs batches.
type Pipeline struct {
	runner   proc.Runner
	recorder Recorder
	out      io.Writer
	logger   *slog.Logger
}

// New creates a pipeline. recorder may be nil to skip the history ledger;
// progress lines are written to out.
func New(runner proc.Runner, recorder Recorder, out io.Writer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = io.Discard
	}
	return &Pipeline{
		runner:   runner,
		recorder: recorder,
		out:      out,
		logger:   logger.With("component", "pipeline"),
	}
}

// Run executes every job of cfg. Job failures are reported in the Summary;
// the returned error is only set when the run could not start.
func (p *Pipeline) Run(ctx context.Context, cfg RunConfig) (summary *Summary, err error) {
	if cfg.Backend == nil {
		return nil, ErrNoBackend
	}

	jobs := job.Build(cfg.Cutoffs, cfg.Modes)
	summary = &Summary{
		Folder:    cfg.Folder,
		Backend:   string(cfg.Backend.Name()),
		StartedAt: time.Now(),
		Jobs:      make([]JobOutcome, len(jobs)),
	}
	p.logger.Info("run started", "folder", cfg.Folder, "backend", summary.Backend, "jobs", len(jobs))

	scope := workdir.NewScope(cfg.KeepIntermediates, p.logger)
	defer func() {
		if cerr := scope.Close(); cerr != nil {
			p.logger.Warn("cleanup failed", "error", cerr)
		}
	}()

	gen := script.NewGenerator(cfg.Backend, script.Options{
		Folder:      cfg.Folder,
		Resolution:  cfg.Resolution,
		Stereo:      cfg.Stereo,
		CommandFile: cfg.CommandFile,
	}, scope)
	disp := render.NewDispatcher(p.runner, cfg.Backend, scope, renderConfig(cfg), p.logger)
	enc := encode.NewEncoder(p.runner, cfg.Backend, scope, encodeConfig(cfg), p.logger)

	// Scripts
	var tasks []render.Task
	index := make(map[job.Job]int, len(jobs))
	for i, j := range jobs {
		index[j] = i
		outcome := &summary.Jobs[i]
		outcome.Job = j
		outcome.Artifact = enc.Artifact(j)
		fmt.Fprintln(p.out, outcome.Artifact)

		path, err := gen.Generate(j)
		if err != nil {
			outcome.Err = &JobError{Job: j, Stage: StageScript, Err: err}
			continue
		}
		outcome.Script = path
		tasks = append(tasks, render.Task{Job: j, Script: path})
	}

	// Render, then wait for every renderer to exit.
	var rendered []job.Job
	for _, o := range disp.Dispatch(ctx, tasks) {
		if o.Err != nil {
			summary.Jobs[index[o.Job]].Err = &JobError{Job: o.Job, Stage: StageRender, Err: o.Err}
			continue
		}
		rendered = append(rendered, o.Job)
	}
	fmt.Fprintln(p.out, "rendering finished.")

	// Encode
	p.encode(ctx, cfg, enc, scope, rendered, summary, index)

	// Combine
	if cfg.Combine {
		for _, pair := range job.Pairs(cfg.Cutoffs, cfg.Modes) {
			summary.Combined = append(summary.Combined, p.combine(ctx, enc, pair, summary, index))
		}
	}

	summary.FinishedAt = time.Now()
	p.record(ctx, summary)
	p.logger.Info("run finished", "jobs", len(jobs), "failed", summary.Failed(), "duration", summary.Duration().Round(time.Millisecond))
	return summary, nil
}

func (p *Pipeline) encode(ctx context.Context, cfg RunConfig, enc *encode.Encoder, scope *workdir.Scope, rendered []job.Job, summary *Summary, index map[job.Job]int) {
	encodeOne := func(j job.Job) {
		outcome := &summary.Jobs[index[j]]
		artifact, err := enc.EncodeJob(ctx, j)
		if rerr := scope.Release(cfg.Backend.FrameDir(cfg.Folder, j)); rerr != nil {
			p.logger.Warn("removing frames failed", "job", j.String(), "error", rerr)
		}
		if err != nil {
			outcome.Err = &JobError{Job: j, Stage: StageEncode, Err: err}
			return
		}
		outcome.Artifact = artifact
		outcome.Size = fileSize(artifact)
	}

	if !cfg.ParallelEncode {
		for _, j := range rendered {
			encodeOne(j)
		}
		return
	}

	// Each goroutine writes only its own outcome slot.
	var g errgroup.Group
	if cfg.MaxParallel > 0 {
		g.SetLimit(cfg.MaxParallel)
	}
	for _, j := range rendered {
		g.Go(func() error {
			encodeOne(j)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pipeline) combine(ctx context.Context, enc *encode.Encoder, pair job.Pair, summary *Summary, index map[job.Job]int) PairOutcome {
	outcome := PairOutcome{Pair: pair, Artifact: enc.CombinedArtifact(pair)}
	for _, d := range job.Directions {
		if !summary.Jobs[index[pair.Job(d)]].OK() {
			p.logger.Warn("combine skipped", "pair", pair.String(), "failed", d)
			outcome.Skipped = true
			return outcome
		}
	}

	artifact, err := enc.Combine(ctx, pair)
	if err != nil {
		outcome.Err = &JobError{Job: job.Job{Cutoff: pair.Cutoff, Mode: pair.Mode}, Stage: StageCombine, Err: err}
		return outcome
	}
	outcome.Artifact = artifact
	outcome.Size = fileSize(artifact)
	return outcome
}

func (p *Pipeline) record(ctx context.Context, s *Summary) {
	if p.recorder == nil {
		return
	}
	finished := s.FinishedAt
	run := &history.Run{
		Folder:     s.Folder,
		Backend:    s.Backend,
		Combine:    len(s.Combined) > 0,
		StartedAt:  s.StartedAt,
		FinishedAt: &finished,
		Jobs:       len(s.Jobs),
		Failed:     s.Failed(),
	}

	entries := make([]*history.Entry, 0, len(s.Jobs)+len(s.Combined))
	for _, o := range s.Jobs {
		e := &history.Entry{
			Cutoff:    o.Job.Cutoff,
			Mode:      o.Job.Mode,
			Direction: string(o.Job.Direction),
			Status:    history.StatusOK,
			Artifact:  o.Artifact,
			SizeBytes: o.Size,
		}
		if o.Err != nil {
			e.Status = history.StatusFailed
			e.Stage = string(o.Err.Stage)
			e.Error = o.Err.Err.Error()
		}
		entries = append(entries, e)
	}
	for _, o := range s.Combined {
		if o.Skipped {
			continue
		}
		e := &history.Entry{
			Cutoff:    o.Pair.Cutoff,
			Mode:      o.Pair.Mode,
			Direction: history.DirectionCombined,
			Status:    history.StatusOK,
			Artifact:  o.Artifact,
			SizeBytes: o.Size,
		}
		if o.Err != nil {
			e.Status = history.StatusFailed
			e.Stage = string(StageCombine)
			e.Error = o.Err.Err.Error()
		}
		entries = append(entries, e)
	}

	// A run canceled by the user is still worth recording.
	if err := p.recorder.Record(context.WithoutCancel(ctx), run, entries); err != nil {
		p.logger.Warn("recording history failed", "error", err)
		return
	}
	s.RunID = run.ID
}

func renderConfig(cfg RunConfig) render.Config {
	return render.Config{
		Folder:      cfg.Folder,
		Binary:      cfg.RendererBinary,
		Stereo:      cfg.Stereo,
		Timeout:     cfg.Timeout,
		MaxParallel: cfg.MaxParallel,
	}
}

func encodeConfig(cfg RunConfig) encode.Config {
	ec := cfg.Encoder
	ec.Folder = cfg.Folder
	return ec
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
