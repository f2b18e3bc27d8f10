package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/vmunix/pdbmovie/internal/pipeline"
)

func newPlanCmd(g *globals) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "plan <folder>",
		Short: "Show the scripts and commands a run would execute",
		Long: `Print every job with its script path, renderer invocation and encoder
invocations without running anything. Accepts the same flags as a render.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			runCfg, err := opts.build(cmd, cfg, args[0], false)
			if err != nil {
				return configError(err)
			}
			plan, err := pipeline.New(nil, nil, nil, logger).Plan(runCfg)
			if err != nil {
				return configError(err)
			}
			printPlan(g.stdout, plan)
			return nil
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

func printPlan(w io.Writer, plan *pipeline.Plan) {
	fmt.Fprintf(w, "Jobs (%d):\n", len(plan.Jobs))
	for _, j := range plan.Jobs {
		fmt.Fprintf(w, "\n  %s\n", j.Job)
		fmt.Fprintf(w, "    script:  %s\n", j.Script)
		fmt.Fprintf(w, "    render:  %s\n", j.Render)
		for _, c := range j.Encode {
			fmt.Fprintf(w, "    encode:  %s\n", c)
		}
		fmt.Fprintf(w, "    output:  %s\n", j.Artifact)
	}
	if len(plan.Combined) == 0 {
		return
	}
	fmt.Fprintf(w, "\nCombined (%d):\n", len(plan.Combined))
	for _, c := range plan.Combined {
		fmt.Fprintf(w, "\n  %s\n", c.Pair)
		fmt.Fprintf(w, "    combine: %s\n", c.Command)
		fmt.Fprintf(w, "    output:  %s\n", c.Artifact)
	}
}
