package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/vmunix/pdbmovie/internal/history"
	"github.com/vmunix/pdbmovie/internal/job"
)

func newHistoryCmd(g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <folder> [run-id]",
		Short: "List recorded runs and their job outcomes",
		Long: `List runs recorded in <folder>/.pdbmovie/history.db (or the history.path
set in the config), newest first. With a run ID, show only that run.

Examples:
  pdbmovie history ./lysozyme            # last 10 runs
  pdbmovie history ./lysozyme --limit 0  # every run
  pdbmovie history ./lysozyme 12         # run #12`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			folder, err := filepath.Abs(args[0])
			if err != nil {
				return configError(err)
			}
			path := historyPath(cfg, folder)
			if _, err := os.Stat(path); err != nil {
				fmt.Fprintf(g.stdout, "No history at %s\n", path)
				return nil
			}

			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 2 {
				return showRun(cmd.Context(), g.stdout, store, args[1])
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, run := range runs {
				entries, err := store.Entries(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				printRun(g.stdout, run, entries)
			}
			if len(runs) == 0 {
				fmt.Fprintln(g.stdout, "No runs recorded")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to show (0 = all)")
	return cmd
}

func showRun(ctx context.Context, w io.Writer, store *history.Store, arg string) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return configError(fmt.Errorf("invalid run ID: %s", arg))
	}
	run, err := store.GetRun(ctx, id)
	if errors.Is(err, history.ErrNotFound) {
		return configError(fmt.Errorf("run %d not found", id))
	}
	if err != nil {
		return err
	}
	entries, err := store.Entries(ctx, run.ID)
	if err != nil {
		return err
	}
	printRun(w, run, entries)
	return nil
}

func printRun(w io.Writer, run *history.Run, entries []*history.Entry) {
	took := "unfinished"
	if run.FinishedAt != nil {
		took = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
	}
	fmt.Fprintf(w, "Run %d  %s  %s  %s, %d jobs, %d failed (%s)\n",
		run.ID, humanize.Time(run.StartedAt), run.Backend, run.Folder, run.Jobs, run.Failed, took)
	for _, e := range entries {
		name := "Run-" + job.FormatCutoff(e.Cutoff) + "-mode" + job.FormatMode(e.Mode) + "-" + e.Direction
		detail := humanize.Bytes(uint64(e.SizeBytes))
		if e.Status == history.StatusFailed {
			detail = e.Stage + ": " + e.Error
		}
		fmt.Fprintf(w, "  %-26s %-6s %s\n", name, e.Status, detail)
	}
	fmt.Fprintln(w)
}
