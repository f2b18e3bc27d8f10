package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vmunix/pdbmovie/internal/config"
	"github.com/vmunix/pdbmovie/internal/history"
	"github.com/vmunix/pdbmovie/internal/pipeline"
	"github.com/vmunix/pdbmovie/internal/proc"
)

var version = "dev"

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1 // at least one job failed
	exitConfig = 2 // bad flags or configuration; nothing ran
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error {
	return &exitError{code: exitConfig, err: err}
}

// globals are the persistent flags shared by every command.
type globals struct {
	configPath string
	logLevel   string
	stdout     io.Writer
	stderr     io.Writer
}

// Execute runs the CLI and returns the process exit code.
func Execute(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(joinMultiValueFlags(args))
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(stderr, "Error:", err)

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// Anything cobra rejects before RunE (unknown flag, wrong arg count).
	return exitConfig
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{stdout: stdout, stderr: stderr}
	opts := &runOptions{}

	root := &cobra.Command{
		Use:   "pdbmovie <folder>",
		Short: "Batch-render normal mode movies of a protein",
		Long: `pdbmovie - batch movie generation for normal mode analyses

For every combination of energy cutoff, mode and direction, pdbmovie writes a
renderer script, runs PyMOL (or VMD) on all of them in parallel, and encodes
the frames into videos with ffmpeg. With --combi the positive and negative
videos of each mode are joined into one movie.

The folder must contain Runs/<cutoff>/Mode<MM>-<pos|neg>/ for every job.

--modes, --ecuts and --res take several values separated by spaces or
commas, or repeated flags: "--modes 7 8", "--modes 7,8" and
"--modes 7 --modes 8" are equivalent. --res also accepts WIDTHxHEIGHT.
Modes are non-negative integers; below 10 they are zero-padded (mode07).

Examples:
  pdbmovie ./lysozyme                          # modes 7-11, cutoffs 1.0 and 2.0
  pdbmovie ./lysozyme --modes 7 8 --ecuts 1.5  # four jobs
  pdbmovie ./lysozyme --vmd --combi --res 1280 720`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, g, opts, args[0])
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "Tool config file (default: discovered)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	addRunFlags(root, opts)

	root.Version = version
	root.SetVersionTemplate("pdbmovie {{.Version}}\n")

	root.AddCommand(
		newPlanCmd(g),
		newHistoryCmd(g),
		newInitCmd(g),
		newVersionCmd(g),
	)
	return root
}

func newVersionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(g.stdout, "pdbmovie %s\n", version)
		},
	}
}

// load resolves the tool config and builds the logger from it.
func (g *globals) load() (*config.Config, *slog.Logger, error) {
	cfg, path, err := config.Resolve(g.configPath)
	if err != nil {
		return nil, nil, configError(err)
	}
	level := cfg.LogLevel
	if g.logLevel != "" {
		level = g.logLevel
	}
	logger := slog.New(slog.NewTextHandler(g.stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	}))
	if path != "" {
		logger.Debug("config loaded", "path", path)
	}
	return cfg, logger, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runRender(cmd *cobra.Command, g *globals, opts *runOptions, folder string) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	runCfg, err := opts.build(cmd, cfg, folder, true)
	if err != nil {
		return configError(err)
	}

	var recorder pipeline.Recorder
	if !cfg.History.Disabled {
		store, err := history.Open(historyPath(cfg, runCfg.Folder))
		if err != nil {
			logger.Warn("history disabled", "error", err)
		} else {
			defer store.Close()
			recorder = store
		}
	}

	p := pipeline.New(proc.NewExecRunner(logger), recorder, g.stdout, logger)
	summary, err := p.Run(cmd.Context(), runCfg)
	if err != nil {
		return err
	}
	printSummary(g.stdout, summary)

	if err := summary.Err(); err != nil {
		return &exitError{code: exitFailed, err: fmt.Errorf("%d failures across %d jobs", summary.Failed(), len(summary.Jobs))}
	}
	return nil
}

func historyPath(cfg *config.Config, folder string) string {
	if cfg.History.Path != "" {
		return cfg.History.Path
	}
	return history.DefaultPath(folder)
}
