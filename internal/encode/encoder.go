// Package encode turns rendered frames into videos with ffmpeg and joins
// direction videos into combined movies.
package encode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vmunix/pdbmovie/internal/job"
	"github.com/vmunix/pdbmovie/internal/proc"
	"github.com/vmunix/pdbmovie/internal/renderer"
	"github.com/vmunix/pdbmovie/internal/workdir"
)

// ArtifactMode is applied to every published video.
const ArtifactMode = 0744

// Config for the encoder.
type Config struct {
	Folder    string
	FFmpeg    string
	FFprobe   string // empty skips the loop duration check
	FrameRate string
	Threads   int
	PadFrames int    // copies of the first and last frame added for looping backends
	Bitrate   string // MPEG-2 video bitrate
	Timeout   time.Duration
}

// Encoder assembles videos from frames.
type Encoder struct {
	runner  proc.Runner
	backend renderer.Backend
	scope   *workdir.Scope
	config  Config
	logger  *slog.Logger
}

// NewEncoder creates an encoder.
func NewEncoder(runner proc.Runner, backend renderer.Backend, scope *workdir.Scope, cfg Config, logger *slog.Logger) *Encoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Encoder{
		runner:  runner,
		backend: backend,
		scope:   scope,
		config:  cfg,
		logger:  logger,
	}
}

// Artifact is the path of the video EncodeJob produces for j.
func (e *Encoder) Artifact(j job.Job) string {
	return j.Artifact(e.config.Folder, e.backend.ArtifactExt())
}

// CombinedArtifact is the path of the video Combine produces for p.
func (e *Encoder) CombinedArtifact(p job.Pair) string {
	return p.Combined(e.config.Folder, e.backend.ArtifactExt())
}

// Commands returns the encoder invocations for j, in execution order.
func (e *Encoder) Commands(j job.Job) []proc.Command {
	frames := filepath.Join(e.backend.FrameDir(e.config.Folder, j), e.backend.FramePattern())
	if !e.backend.Oscillates() {
		return []proc.Command{e.mpeg2(frames, e.Artifact(j))}
	}
	rev, fst, list := e.intermediates(j)
	return []proc.Command{
		e.h264(frames, rev),
		e.ffmpeg("-i", rev, "-vf", "reverse", "-threads", e.threads(), "-y", fst),
		e.concat(list, e.Artifact(j)),
	}
}

// CombineCommand returns the invocation that joins p's direction videos.
func (e *Encoder) CombineCommand(p job.Pair) proc.Command {
	return e.concat(e.combineList(p), e.CombinedArtifact(p))
}

// EncodeJob encodes j's frames into its per-direction video and returns the
// video's path. On failure no video is left at that path.
func (e *Encoder) EncodeJob(ctx context.Context, j job.Job) (artifact string, err error) {
	log := e.logger.With("cutoff", j.CutoffLabel(), "mode", j.ModeLabel(), "direction", j.Direction)
	frameDir := e.backend.FrameDir(e.config.Folder, j)

	artifact = e.Artifact(j)
	if err := discard(artifact); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrEncodeFailed, j, err)
	}
	defer func() {
		if err != nil {
			if rerr := discard(artifact); rerr != nil {
				log.Warn("removing partial video failed", "error", rerr)
			}
			artifact = ""
		}
	}()

	if e.backend.Oscillates() {
		if err := e.prepareLoop(frameDir); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrEncodeFailed, j, err)
		}
		rev, fst, list := e.intermediates(j)
		e.scope.Track(rev)
		e.scope.Track(fst)
		if err := e.scope.WriteFile(list, []byte(demuxerList(fst, rev))); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrEncodeFailed, j, err)
		}
	} else {
		frames, err := e.frames(frameDir)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrEncodeFailed, j, err)
		}
		log.Debug("frames found", "count", len(frames))
	}

	for _, cmd := range e.Commands(j) {
		if err := e.run(ctx, log, cmd); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrEncodeFailed, j, err)
		}
	}
	if e.backend.Oscillates() {
		if err := e.checkLoop(ctx, log, j); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrEncodeFailed, j, err)
		}
	}

	if err := publish(artifact); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrEncodeFailed, j, err)
	}
	log.Info("video encoded", "path", artifact)
	return artifact, nil
}

// Combine concatenates p's positive and negative videos into one movie,
// replacing any previous combined video. On failure no combined video is left.
func (e *Encoder) Combine(ctx context.Context, p job.Pair) (combined string, err error) {
	log := e.logger.With("cutoff", job.FormatCutoff(p.Cutoff), "mode", job.FormatMode(p.Mode))

	combined = e.CombinedArtifact(p)
	if err := discard(combined); err != nil {
		return "", fmt.Errorf("combine %s: %w", p, err)
	}
	defer func() {
		if err != nil {
			if rerr := discard(combined); rerr != nil {
				log.Warn("removing partial video failed", "error", rerr)
			}
			combined = ""
		}
	}()

	pos := e.Artifact(p.Job(job.DirectionPositive))
	neg := e.Artifact(p.Job(job.DirectionNegative))
	for _, path := range []string{pos, neg} {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("combine %s: %w: %v", p, ErrIncomplete, err)
		}
	}

	list := e.combineList(p)
	if err := e.scope.WriteFile(list, []byte(demuxerList(pos, neg))); err != nil {
		return "", fmt.Errorf("combine %s: %w", p, err)
	}
	if err := e.run(ctx, log, e.CombineCommand(p)); err != nil {
		return "", fmt.Errorf("%w: combine %s: %w", ErrEncodeFailed, p, err)
	}

	if err := publish(combined); err != nil {
		return "", fmt.Errorf("%w: combine %s: %w", ErrEncodeFailed, p, err)
	}
	log.Info("combined video written", "path", combined)
	return combined, nil
}

func (e *Encoder) run(ctx context.Context, log *slog.Logger, cmd proc.Command) error {
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}
	log.Debug("encoder started", "command", cmd.String())
	res, err := e.runner.Run(ctx, cmd)
	if err != nil {
		log.Error("encoder failed", "error", err, "output", res.Tail(10))
		return err
	}
	return nil
}

// frames lists frame files in dir, sorted by name.
func (e *Encoder) frames(dir string) ([]string, error) {
	frames, err := filepath.Glob(filepath.Join(dir, e.backend.FramePattern()))
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoFrames)
	}
	sort.Strings(frames)
	return frames, nil
}

// prepareLoop drops the warm-up frame and pads the first and last frames so
// the forward/backward movie rests briefly at each end.
func (e *Encoder) prepareLoop(dir string) error {
	if err := os.Remove(filepath.Join(dir, renderer.WarmupFrame)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", workdir.ErrFilesystem, err)
	}
	frames, err := e.frames(dir)
	if err != nil {
		return err
	}
	first, last := frames[0], frames[len(frames)-1]
	for i := 1; i <= e.config.PadFrames; i++ {
		suffix := "-" + strconv.Itoa(i) + filepath.Ext(first)
		if err := copyFile(first, first+suffix); err != nil {
			return err
		}
		if err := copyFile(last, last+suffix); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) intermediates(j job.Job) (rev, fst, list string) {
	base := filepath.Join(e.config.Folder, j.Stem())
	return base + "-rev.mp4", base + "-fst.mp4", base + "-demuxer.txt"
}

func (e *Encoder) combineList(p job.Pair) string {
	return filepath.Join(e.config.Folder, p.Stem()+"-demuxer-combi.txt")
}

func (e *Encoder) ffmpeg(args ...string) proc.Command {
	return proc.Command{Name: e.config.FFmpeg, Args: args}
}

func (e *Encoder) threads() string {
	return strconv.Itoa(e.config.Threads)
}

func (e *Encoder) h264(frames, out string) proc.Command {
	return e.ffmpeg(
		"-framerate", e.config.FrameRate,
		"-pattern_type", "glob",
		"-i", frames,
		"-vcodec", "libx264",
		"-pix_fmt", "yuv420p",
		"-threads", e.threads(),
		"-r", e.config.FrameRate,
		"-y", out,
	)
}

func (e *Encoder) mpeg2(frames, out string) proc.Command {
	return e.ffmpeg(
		"-framerate", e.config.FrameRate,
		"-pattern_type", "glob",
		"-i", frames,
		"-c:v", "mpeg2video",
		"-pix_fmt", "yuv420p",
		"-threads", e.threads(),
		"-r", e.config.FrameRate,
		"-g", "45",
		"-bf", "2",
		"-trellis", "2",
		"-b:v", e.config.Bitrate,
		"-y", out,
	)
}

func (e *Encoder) concat(list, out string) proc.Command {
	return e.ffmpeg("-f", "concat", "-safe", "0", "-i", list, "-c", "copy", "-y", out)
}

// demuxerList renders an ffmpeg concat list. Entries are file names relative
// to the list, which always lives in the same folder as the videos.
func demuxerList(paths ...string) string {
	var b strings.Builder
	for _, p := range paths {
		name := strings.ReplaceAll(filepath.Base(p), `'`, `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", name)
	}
	return b.String()
}

// discard removes a stale or partial video.
func discard(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove %s: %v", workdir.ErrFilesystem, path, err)
	}
	return nil
}

func publish(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("no video written: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("empty video %s", path)
	}
	return workdir.SetMode(path, ArtifactMode)
}
