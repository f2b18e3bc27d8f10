package encode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/vmunix/pdbmovie/internal/job"
	"github.com/vmunix/pdbmovie/internal/proc"
)

// Duration reports a video's container duration using ffprobe.
func (e *Encoder) Duration(ctx context.Context, path string) (time.Duration, error) {
	res, err := e.runner.Run(ctx, proc.Command{
		Name: e.config.FFprobe,
		Args: []string{"-v", "quiet", "-print_format", "json", "-show_format", path},
	})
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseDuration(res.Output)
}

func parseDuration(output []byte) (time.Duration, error) {
	var info struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &info); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if info.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe reported no duration")
	}
	secs, err := strconv.ParseFloat(info.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", info.Format.Duration, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// checkLoop verifies that a looping video lasts twice its forward sweep,
// within one frame. Without ffprobe, or when ffprobe fails, the check is
// skipped.
func (e *Encoder) checkLoop(ctx context.Context, log *slog.Logger, j job.Job) error {
	if e.config.FFprobe == "" {
		log.Debug("loop check skipped", "reason", "no ffprobe")
		return nil
	}
	rev, _, _ := e.intermediates(j)
	sweep, err := e.Duration(ctx, rev)
	if err != nil {
		log.Warn("loop check skipped", "error", err)
		return nil
	}
	total, err := e.Duration(ctx, e.Artifact(j))
	if err != nil {
		log.Warn("loop check skipped", "error", err)
		return nil
	}

	tolerance := e.frameInterval()
	if diff := total - 2*sweep; diff > tolerance || diff < -tolerance {
		return fmt.Errorf("%w: video is %s, sweep is %s", ErrLoopMismatch, total, sweep)
	}
	log.Debug("loop checked", "sweep", sweep, "total", total)
	return nil
}

// frameInterval is the duration of one frame at the configured rate.
func (e *Encoder) frameInterval() time.Duration {
	rate, err := strconv.ParseFloat(e.config.FrameRate, 64)
	if err != nil || rate <= 0 {
		rate = 30
	}
	return time.Duration(float64(time.Second) / rate)
}
