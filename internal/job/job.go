// Package job enumerates the (cutoff, mode, direction) units of work and
// owns the file naming conventions shared by rendering and encoding.
package job

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Direction is the sense in which a movement mode is followed.
type Direction string

const (
	DirectionPositive Direction = "pos"
	DirectionNegative Direction = "neg"
)

// Directions lists both directions in the order jobs are built.
var Directions = []Direction{DirectionPositive, DirectionNegative}

// Job is one (cutoff, mode, direction) unit of rendering and encoding work.
type Job struct {
	Cutoff    float64
	Mode      int
	Direction Direction
}

// CutoffLabel returns the cutoff as it appears in folder and file names.
func (j Job) CutoffLabel() string {
	return FormatCutoff(j.Cutoff)
}

// ModeLabel returns the mode zero-padded to two digits.
func (j Job) ModeLabel() string {
	return FormatMode(j.Mode)
}

// Pair returns the (cutoff, mode) pair the job belongs to.
func (j Job) Pair() Pair {
	return Pair{Cutoff: j.Cutoff, Mode: j.Mode}
}

// Stem is the base name used for the job's artifacts, e.g. "Run-1.0-mode07-pos".
func (j Job) Stem() string {
	return j.Pair().Stem() + "-" + string(j.Direction)
}

// Key is a compact identifier used in generated script names, e.g. "1.007pos".
func (j Job) Key() string {
	return j.CutoffLabel() + j.ModeLabel() + string(j.Direction)
}

func (j Job) String() string {
	return j.Stem()
}

// RunDir is the directory holding the job's conformation files:
// <folder>/Runs/<cutoff>/Mode<MM>-<direction>.
func (j Job) RunDir(folder string) string {
	return filepath.Join(folder, "Runs", j.CutoffLabel(), "Mode"+j.ModeLabel()+"-"+string(j.Direction))
}

// Artifact is the path of the job's per-direction video.
func (j Job) Artifact(folder, ext string) string {
	return filepath.Join(folder, j.Stem()+ext)
}

// Pair identifies the two direction jobs sharing a cutoff and mode.
type Pair struct {
	Cutoff float64
	Mode   int
}

// Stem is the base name shared by both directions, e.g. "Run-1.0-mode07".
func (p Pair) Stem() string {
	return "Run-" + FormatCutoff(p.Cutoff) + "-mode" + FormatMode(p.Mode)
}

// Job returns the pair's job for the given direction.
func (p Pair) Job(d Direction) Job {
	return Job{Cutoff: p.Cutoff, Mode: p.Mode, Direction: d}
}

// Combined is the path of the pair's combined positive+negative video.
func (p Pair) Combined(folder, ext string) string {
	return filepath.Join(folder, p.Stem()+"-combi"+ext)
}

func (p Pair) String() string {
	return p.Stem()
}

// FormatCutoff renders a cutoff the way the run folders are named: the
// shortest form with a fractional part ("1.0", "2.5"), switching to
// exponent form below 1e-4 and from 1e16 on ("1e-05", "1e+16").
func FormatCutoff(c float64) string {
	e := strconv.FormatFloat(c, 'e', -1, 64)
	if i := strings.IndexByte(e, 'e'); i >= 0 {
		if exp, err := strconv.Atoi(e[i+1:]); err == nil && (exp < -4 || exp >= 16) {
			return e
		}
	}
	s := strconv.FormatFloat(c, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatMode zero-pads a mode to two digits.
func FormatMode(m int) string {
	return fmt.Sprintf("%02d", m)
}
