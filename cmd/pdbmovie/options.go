package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/vmunix/pdbmovie/internal/config"
	"github.com/vmunix/pdbmovie/internal/encode"
	"github.com/vmunix/pdbmovie/internal/job"
	"github.com/vmunix/pdbmovie/internal/pipeline"
	"github.com/vmunix/pdbmovie/internal/renderer"
)

// lookPath resolves tool binaries; replaced in tests.
var lookPath = exec.LookPath

// runOptions are the flags shared by the render and plan commands.
type runOptions struct {
	threeD            bool
	res               []string
	combine           bool
	modes             []string
	ecuts             []string
	video             string
	vmd               bool
	timeout           time.Duration
	maxParallel       int
	keepIntermediates bool
	parallelEncode    bool
}

func addRunFlags(cmd *cobra.Command, o *runOptions) {
	f := cmd.Flags()
	f.BoolVar(&o.threeD, "threed", false, "Render in stereo (3D)")
	f.StringSliceVar(&o.res, "res", nil, "Output resolution as WxH or W,H")
	f.BoolVar(&o.combine, "combi", false, "Join the positive and negative videos of each mode")
	f.StringSliceVar(&o.modes, "modes", nil, "Modes to render (default 7,8,9,10,11)")
	f.StringSliceVar(&o.ecuts, "ecuts", nil, "Energy cutoffs to render (default 1.0,2.0)")
	f.StringVar(&o.video, "video", "", "File of renderer commands inserted into every script")
	f.BoolVar(&o.vmd, "vmd", false, "Render with VMD instead of PyMOL")
	f.DurationVar(&o.timeout, "timeout", 0, "Per-job render and encode timeout (0 = none)")
	f.IntVar(&o.maxParallel, "max-parallel", 0, "Maximum renderer processes at once (0 = one per job)")
	f.BoolVar(&o.keepIntermediates, "keep-intermediates", false, "Keep generated scripts, demuxer lists and intermediate videos")
	f.BoolVar(&o.parallelEncode, "parallel-encode", false, "Encode videos concurrently")
}

// build turns flags and tool config into a run configuration. With resolve
// set, tool binaries must be found on PATH.
func (o *runOptions) build(cmd *cobra.Command, cfg *config.Config, folder string, resolve bool) (pipeline.RunConfig, error) {
	var rc pipeline.RunConfig

	abs, err := filepath.Abs(folder)
	if err != nil {
		return rc, fmt.Errorf("folder: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return rc, fmt.Errorf("folder: %w", err)
	}
	if !info.IsDir() {
		return rc, fmt.Errorf("folder: %s is not a directory", abs)
	}

	backendName := cfg.Renderer.Backend
	if o.vmd {
		backendName = string(renderer.NameVMD)
	}
	backend, err := renderer.Lookup(backendName)
	if err != nil {
		return rc, err
	}

	modes, err := job.ParseModes(o.modes)
	if err != nil {
		return rc, err
	}
	cutoffs, err := job.ParseCutoffs(o.ecuts)
	if err != nil {
		return rc, err
	}

	var resolution *job.Resolution
	if len(o.res) > 0 {
		r, err := job.ParseResolution(o.res)
		if err != nil {
			return rc, err
		}
		resolution = &r
	}

	commandFile := o.video
	if commandFile != "" {
		if commandFile, err = filepath.Abs(commandFile); err != nil {
			return rc, fmt.Errorf("video: %w", err)
		}
		if _, err := os.Stat(commandFile); err != nil {
			return rc, fmt.Errorf("video: %w", err)
		}
	}

	binaries := map[string]string{
		"renderer": cfg.RendererBinary(string(backend.Name())),
		"ffmpeg":   cfg.Encoder.FFmpeg,
	}
	if resolve {
		for tool, name := range binaries {
			path, err := lookPath(name)
			if err != nil {
				return rc, fmt.Errorf("%s: %w", tool, err)
			}
			binaries[tool] = path
		}
	}

	// ffprobe only verifies loop durations; without it the check is skipped.
	ffprobe := cfg.Encoder.FFprobe
	if resolve && ffprobe != "" {
		if path, err := lookPath(ffprobe); err == nil {
			ffprobe = path
		} else {
			ffprobe = ""
		}
	}

	timeout, encodeTimeout := cfg.Renderer.Timeout, cfg.Encoder.Timeout
	if cmd.Flags().Changed("timeout") {
		timeout, encodeTimeout = o.timeout, o.timeout
	}
	maxParallel := cfg.Renderer.MaxParallel
	if cmd.Flags().Changed("max-parallel") {
		maxParallel = o.maxParallel
	}
	if timeout < 0 {
		return rc, fmt.Errorf("timeout: must not be negative, got %s", timeout)
	}
	if maxParallel < 0 {
		return rc, fmt.Errorf("max-parallel: must not be negative, got %d", maxParallel)
	}

	return pipeline.RunConfig{
		Folder:         abs,
		Backend:        backend,
		Resolution:     resolution,
		Stereo:         o.threeD,
		Combine:        o.combine,
		CommandFile:    commandFile,
		Cutoffs:        cutoffs,
		Modes:          modes,
		RendererBinary: binaries["renderer"],
		Encoder: encode.Config{
			FFmpeg:    binaries["ffmpeg"],
			FFprobe:   ffprobe,
			FrameRate: cfg.Encoder.FrameRate,
			Threads:   cfg.Encoder.Threads,
			PadFrames: cfg.Encoder.Pad(),
			Bitrate:   cfg.Encoder.Bitrate,
			Timeout:   encodeTimeout,
		},
		Timeout:           timeout,
		MaxParallel:       maxParallel,
		KeepIntermediates: o.keepIntermediates,
		ParallelEncode:    o.parallelEncode,
	}, nil
}
