package pipeline

import (
	"github.com/vmunix/pdbmovie/internal/encode"
	"github.com/vmunix/pdbmovie/internal/job"
	"github.com/vmunix/pdbmovie/internal/proc"
	"github.com/vmunix/pdbmovie/internal/render"
)

// PlannedJob is what Run would do for one job.
type PlannedJob struct {
	Job      job.Job
	Script   string
	Artifact string
	Render   proc.Command
	Encode   []proc.Command
}

// PlannedPair is what Run would do to combine one pair.
type PlannedPair struct {
	Pair     job.Pair
	Artifact string
	Command  proc.Command
}

// Plan describes a run without executing anything.
type Plan struct {
	Jobs     []PlannedJob
	Combined []PlannedPair
}

// Plan returns the commands Run would execute for cfg.
func (p *Pipeline) Plan(cfg RunConfig) (*Plan, error) {
	if cfg.Backend == nil {
		return nil, ErrNoBackend
	}
	disp := render.NewDispatcher(p.runner, cfg.Backend, nil, renderConfig(cfg), p.logger)
	enc := encode.NewEncoder(p.runner, cfg.Backend, nil, encodeConfig(cfg), p.logger)

	plan := &Plan{}
	for _, j := range job.Build(cfg.Cutoffs, cfg.Modes) {
		scriptPath := cfg.Backend.ScriptPath(cfg.Folder, j)
		plan.Jobs = append(plan.Jobs, PlannedJob{
			Job:      j,
			Script:   scriptPath,
			Artifact: enc.Artifact(j),
			Render:   disp.Command(render.Task{Job: j, Script: scriptPath}),
			Encode:   enc.Commands(j),
		})
	}
	if cfg.Combine {
		for _, pair := range job.Pairs(cfg.Cutoffs, cfg.Modes) {
			plan.Combined = append(plan.Combined, PlannedPair{
				Pair:     pair,
				Artifact: enc.CombinedArtifact(pair),
				Command:  enc.CombineCommand(pair),
			})
		}
	}
	return plan, nil
}
