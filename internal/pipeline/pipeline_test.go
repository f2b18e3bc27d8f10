package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmunix/pdbmovie/internal/encode"
	"github.com/vmunix/pdbmovie/internal/history"
	"github.com/vmunix/pdbmovie/internal/job"
	"github.com/vmunix/pdbmovie/internal/proc"
	"github.com/vmunix/pdbmovie/internal/proc/mocks"
	"github.com/vmunix/pdbmovie/internal/render"
	"github.com/vmunix/pdbmovie/internal/renderer"
	"go.uber.org/mock/gomock"
)

// fakeTools stands in for the renderer and ffmpeg: renderer commands leave
// one frame in the job's frame directory, ffmpeg commands write their output.
type fakeTools struct {
	folder  string
	backend renderer.Backend
	fail    map[string]bool // run dirs whose renderer exits non-zero

	mu       sync.Mutex
	commands []proc.Command
}

func (f *fakeTools) run(ctx context.Context, cmd proc.Command) (*proc.Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	if cmd.Name == "ffprobe" {
		duration := "2.000000"
		if strings.HasSuffix(cmd.Args[len(cmd.Args)-1], "-rev.mp4") {
			duration = "1.000000"
		}
		return &proc.Result{Output: []byte(`{"format": {"duration": "` + duration + `"}}`)}, nil
	}
	if cmd.Name == "ffmpeg" {
		out := cmd.Args[len(cmd.Args)-1]
		if err := os.WriteFile(out, []byte("video"), 0644); err != nil {
			return nil, err
		}
		return &proc.Result{}, nil
	}

	runDir := cmd.Args[len(cmd.Args)-1]
	if f.fail[runDir] {
		return &proc.Result{ExitCode: 1, Output: []byte("Error: no such file")}, proc.ErrNonZeroExit
	}
	for _, j := range job.Build(job.DefaultCutoffs, job.DefaultModes) {
		if j.RunDir(f.folder) != runDir {
			continue
		}
		dir := f.backend.FrameDir(f.folder, j)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		frame := "frame0001.png"
		if f.backend.Name() == renderer.NameVMD {
			frame = "image.0000001.tga"
		}
		if err := os.WriteFile(filepath.Join(dir, frame), []byte("frame"), 0644); err != nil {
			return nil, err
		}
	}
	return &proc.Result{}, nil
}

func (f *fakeTools) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.commands {
		if c.Name == name {
			n++
		}
	}
	return n
}

type fakeRecorder struct {
	run     *history.Run
	entries []*history.Entry
	err     error
}

func (r *fakeRecorder) Record(ctx context.Context, run *history.Run, entries []*history.Entry) error {
	if r.err != nil {
		return r.err
	}
	run.ID = 42
	r.run, r.entries = run, entries
	return nil
}

func newRunConfig(folder string, backend renderer.Backend) RunConfig {
	binary := "pymol"
	if backend.Name() == renderer.NameVMD {
		binary = "vmd"
	}
	return RunConfig{
		Folder:         folder,
		Backend:        backend,
		Cutoffs:        []float64{1.0},
		Modes:          []int{7},
		RendererBinary: binary,
		Encoder: encode.Config{
			FFmpeg:    "ffmpeg",
			FFprobe:   "ffprobe",
			FrameRate: "30",
			Threads:   4,
			PadFrames: 2,
			Bitrate:   "6000k",
		},
	}
}

func setup(t *testing.T, backend renderer.Backend) (*fakeTools, *mocks.MockRunner, string) {
	t.Helper()
	folder := t.TempDir()
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	tools := &fakeTools{folder: folder, backend: backend, fail: map[string]bool{}}
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(tools.run).AnyTimes()
	return tools, runner, folder
}

func TestRun_SingleModeWithoutCombine(t *testing.T) {
	tools, runner, folder := setup(t, renderer.PyMOL{})
	var out bytes.Buffer

	summary, err := New(runner, nil, &out, nil).Run(context.Background(), newRunConfig(folder, renderer.PyMOL{}))
	require.NoError(t, err)
	require.NoError(t, summary.Err())

	pos := filepath.Join(folder, "Run-1.0-mode07-pos.mpg")
	neg := filepath.Join(folder, "Run-1.0-mode07-neg.mpg")
	require.Len(t, summary.Jobs, 2)
	assert.Equal(t, pos, summary.Jobs[0].Artifact)
	assert.Equal(t, neg, summary.Jobs[1].Artifact)
	assert.Empty(t, summary.Combined)
	assert.FileExists(t, pos)
	assert.FileExists(t, neg)
	assert.EqualValues(t, len("video"), summary.Jobs[0].Size)

	matches, _ := filepath.Glob(filepath.Join(folder, "*combi*"))
	assert.Empty(t, matches, "no combined artifacts without --combi")

	assert.Equal(t, pos+"\n"+neg+"\nrendering finished.\n", out.String())
	assert.Equal(t, 2, tools.count("pymol"))
	assert.Equal(t, 2, tools.count("ffmpeg"))

	// scripts and frame directories are cleaned up
	assert.NoFileExists(t, filepath.Join(folder, "pymolvideo1.007pos.py"))
	assert.NoDirExists(t, filepath.Join(folder, "Run-1.0-mode07-pos.tmp"))
}

func TestRun_Combine(t *testing.T) {
	tools, runner, folder := setup(t, renderer.PyMOL{})
	cfg := newRunConfig(folder, renderer.PyMOL{})
	cfg.Combine = true

	summary, err := New(runner, nil, nil, nil).Run(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, summary.Err())

	require.Len(t, summary.Combined, 1)
	combined := filepath.Join(folder, "Run-1.0-mode07-combi.mpg")
	assert.Equal(t, combined, summary.Combined[0].Artifact)
	assert.False(t, summary.Combined[0].Skipped)
	assert.FileExists(t, combined)
	assert.Equal(t, 3, tools.count("ffmpeg"))
}

func TestRun_RenderFailureSkipsEncodeAndCombine(t *testing.T) {
	tools, runner, folder := setup(t, renderer.PyMOL{})
	negJob := job.Job{Cutoff: 1.0, Mode: 7, Direction: job.DirectionNegative}
	tools.fail[negJob.RunDir(folder)] = true

	cfg := newRunConfig(folder, renderer.PyMOL{})
	cfg.Combine = true

	summary, err := New(runner, nil, nil, nil).Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.True(t, summary.Jobs[0].OK())
	require.NotNil(t, summary.Jobs[1].Err)
	assert.Equal(t, StageRender, summary.Jobs[1].Err.Stage)
	assert.ErrorIs(t, summary.Jobs[1].Err, render.ErrRenderFailed)
	assert.ErrorIs(t, summary.Jobs[1].Err, proc.ErrNonZeroExit)

	require.Len(t, summary.Combined, 1)
	assert.True(t, summary.Combined[0].Skipped)
	assert.Nil(t, summary.Combined[0].Err)

	assert.Equal(t, 1, tools.count("ffmpeg"), "only the positive direction is encoded")
	assert.Equal(t, 1, summary.Failed())
	assert.ErrorIs(t, summary.Err(), render.ErrRenderFailed)
	assert.NoFileExists(t, filepath.Join(folder, "Run-1.0-mode07-neg.mpg"))
}

func TestRun_NoFramesIsEncodeFailure(t *testing.T) {
	folder := t.TempDir()
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	// renderer exits cleanly without writing frames
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).Return(&proc.Result{}, nil).Times(2)

	summary, err := New(runner, nil, nil, nil).Run(context.Background(), newRunConfig(folder, renderer.PyMOL{}))
	require.NoError(t, err)

	for _, o := range summary.Jobs {
		require.NotNil(t, o.Err)
		assert.Equal(t, StageEncode, o.Err.Stage)
		assert.ErrorIs(t, o.Err, encode.ErrEncodeFailed)
		assert.ErrorIs(t, o.Err, encode.ErrNoFrames)
	}
}

func TestRun_MissingCommandFile(t *testing.T) {
	folder := t.TempDir()
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)

	cfg := newRunConfig(folder, renderer.PyMOL{})
	cfg.CommandFile = filepath.Join(folder, "missing.pml")

	summary, err := New(runner, nil, nil, nil).Run(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, summary.Jobs, 2)
	for _, o := range summary.Jobs {
		require.NotNil(t, o.Err)
		assert.Equal(t, StageScript, o.Err.Stage)
	}
}

func TestRun_VMD(t *testing.T) {
	tools, runner, folder := setup(t, renderer.VMD{})
	cfg := newRunConfig(folder, renderer.VMD{})
	cfg.Combine = true
	cfg.ParallelEncode = true

	summary, err := New(runner, nil, nil, nil).Run(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, summary.Err())

	assert.FileExists(t, filepath.Join(folder, "Run-1.0-mode07-pos.mp4"))
	assert.FileExists(t, filepath.Join(folder, "Run-1.0-mode07-neg.mp4"))
	assert.FileExists(t, filepath.Join(folder, "Run-1.0-mode07-combi.mp4"))
	assert.Equal(t, 2, tools.count("vmd"))
	assert.Equal(t, 7, tools.count("ffmpeg"), "three steps per direction plus combine")
	assert.Equal(t, 4, tools.count("ffprobe"), "sweep and loop measured per direction")

	// intermediates are removed, artifacts are not
	assert.NoFileExists(t, filepath.Join(folder, "Run-1.0-mode07-pos-rev.mp4"))
	assert.NoFileExists(t, filepath.Join(folder, "Run-1.0-mode07-pos-demuxer.txt"))
	assert.NoFileExists(t, filepath.Join(folder, "vmdvideo1.007pos.tcl"))
}

func TestRun_KeepIntermediates(t *testing.T) {
	_, runner, folder := setup(t, renderer.VMD{})
	cfg := newRunConfig(folder, renderer.VMD{})
	cfg.KeepIntermediates = true

	summary, err := New(runner, nil, nil, nil).Run(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, summary.Err())

	assert.FileExists(t, filepath.Join(folder, "vmdvideo1.007pos.tcl"))
	assert.FileExists(t, filepath.Join(folder, "Run-1.0-mode07-pos-rev.mp4"))
	assert.FileExists(t, filepath.Join(folder, "Run-1.0-mode07-pos-demuxer.txt"))
}

func TestRun_RecordsHistory(t *testing.T) {
	tools, runner, folder := setup(t, renderer.PyMOL{})
	negJob := job.Job{Cutoff: 1.0, Mode: 7, Direction: job.DirectionNegative}
	tools.fail[negJob.RunDir(folder)] = true
	recorder := &fakeRecorder{}

	summary, err := New(runner, recorder, nil, nil).Run(context.Background(), newRunConfig(folder, renderer.PyMOL{}))
	require.NoError(t, err)

	assert.EqualValues(t, 42, summary.RunID)
	require.NotNil(t, recorder.run)
	assert.Equal(t, folder, recorder.run.Folder)
	assert.Equal(t, "pymol", recorder.run.Backend)
	assert.Equal(t, 2, recorder.run.Jobs)
	assert.Equal(t, 1, recorder.run.Failed)

	require.Len(t, recorder.entries, 2)
	assert.Equal(t, history.StatusOK, recorder.entries[0].Status)
	assert.Equal(t, "pos", recorder.entries[0].Direction)
	assert.Equal(t, history.StatusFailed, recorder.entries[1].Status)
	assert.Equal(t, "render", recorder.entries[1].Stage)
	assert.Contains(t, recorder.entries[1].Error, "render failed")
}

func TestRun_HistoryFailureIsNotFatal(t *testing.T) {
	_, runner, folder := setup(t, renderer.PyMOL{})
	recorder := &fakeRecorder{err: errors.New("disk full")}

	summary, err := New(runner, recorder, nil, nil).Run(context.Background(), newRunConfig(folder, renderer.PyMOL{}))
	require.NoError(t, err)
	assert.NoError(t, summary.Err())
	assert.Zero(t, summary.RunID)
}

func TestRun_SQLiteHistory(t *testing.T) {
	_, runner, folder := setup(t, renderer.PyMOL{})
	store, err := history.Open(history.DefaultPath(folder))
	require.NoError(t, err)
	defer store.Close()

	cfg := newRunConfig(folder, renderer.PyMOL{})
	cfg.Combine = true
	summary, err := New(runner, store, nil, nil).Run(context.Background(), cfg)
	require.NoError(t, err)

	entries, err := store.Entries(context.Background(), summary.RunID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, history.DirectionCombined, entries[2].Direction)
}

func TestRun_NoBackend(t *testing.T) {
	_, err := New(nil, nil, nil, nil).Run(context.Background(), RunConfig{})
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestPlan(t *testing.T) {
	cfg := newRunConfig("/data", renderer.VMD{})
	cfg.Modes = []int{7, 8}
	cfg.Combine = true

	plan, err := New(nil, nil, nil, nil).Plan(cfg)
	require.NoError(t, err)

	require.Len(t, plan.Jobs, 4)
	first := plan.Jobs[0]
	assert.Equal(t, "/data/vmdvideo1.007pos.tcl", first.Script)
	assert.Equal(t, "/data/Run-1.0-mode07-pos.mp4", first.Artifact)
	assert.Equal(t, "vmd -e /data/vmdvideo1.007pos.tcl -dispdev openglpbuffer -args /data/Runs/1.0/Mode07-pos", first.Render.String())
	require.Len(t, first.Encode, 3)
	assert.True(t, strings.HasSuffix(first.Encode[2].String(), "-y /data/Run-1.0-mode07-pos.mp4"))

	require.Len(t, plan.Combined, 2)
	assert.Equal(t, "/data/Run-1.0-mode08-combi.mp4", plan.Combined[1].Artifact)
	assert.Equal(t, "ffmpeg -f concat -safe 0 -i /data/Run-1.0-mode08-demuxer-combi.txt -c copy -y /data/Run-1.0-mode08-combi.mp4", plan.Combined[1].Command.String())
}

func TestJobError(t *testing.T) {
	j := job.Job{Cutoff: 2.0, Mode: 9, Direction: job.DirectionPositive}
	cause := fmt.Errorf("%w: boom", render.ErrTimeout)

	err := &JobError{Job: j, Stage: StageRender, Err: cause}
	assert.ErrorIs(t, err, render.ErrTimeout)
	assert.Contains(t, err.Error(), "render")
	assert.Contains(t, err.Error(), j.String())

	combine := &JobError{Job: job.Job{Cutoff: 2.0, Mode: 9}, Stage: StageCombine, Err: cause}
	assert.Contains(t, combine.Error(), j.Pair().String())
}
