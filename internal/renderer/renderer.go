// Package renderer describes the two molecular renderers movies can be made
// with: their scripting dialects, invocation syntax and where they leave frames.
package renderer

import (
	"embed"
	"fmt"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/vmunix/pdbmovie/internal/job"
	"github.com/vmunix/pdbmovie/internal/proc"
)

//go:embed fragments
var fragments embed.FS

// Name identifies a renderer backend.
type Name string

const (
	NamePyMOL Name = "pymol"
	NameVMD   Name = "vmd"
)

// Names lists the supported backends.
var Names = []Name{NamePyMOL, NameVMD}

// Dialect produces the script fragments a per-job script is assembled from.
// Every returned fragment ends with a newline.
type Dialect interface {
	Preamble() string
	Postamble() string
	Viewport(res job.Resolution) string
	Stereo() []string
	Filename(path string) string
}

// Backend is a renderer variant.
type Backend interface {
	Dialect

	Name() Name
	// ScriptPath is where the job's generated script is written.
	ScriptPath(folder string, j job.Job) string
	// RenderCommand is the argv that renders the job's frames.
	RenderCommand(binary, script, runDir string, stereo bool) proc.Command
	// FrameDir is the directory the renderer writes the job's frames to.
	FrameDir(folder string, j job.Job) string
	// FramePattern matches frame files inside FrameDir.
	FramePattern() string
	// ArtifactExt is the extension of encoded videos, including the dot.
	ArtifactExt() string
	// ResetsFrameDir reports whether FrameDir must be emptied before rendering.
	ResetsFrameDir() bool
	// Oscillates reports whether videos are assembled as a forward sweep
	// followed by its reverse.
	Oscillates() bool
}

// Lookup returns the backend with the given name.
func Lookup(name string) (Backend, error) {
	switch Name(strings.ToLower(strings.TrimSpace(name))) {
	case NamePyMOL:
		return PyMOL{}, nil
	case NameVMD:
		return VMD{}, nil
	}
	if s := Suggest(name); s != "" {
		return nil, fmt.Errorf("unknown renderer %q (did you mean %q?)", name, s)
	}
	return nil, fmt.Errorf("unknown renderer %q: must be one of %s", name, joinNames())
}

// Suggest returns the backend name closest to name, or "" when nothing is
// reasonably close.
func Suggest(name string) string {
	const minSimilarity = 0.7
	best, bestScore := "", float32(0)
	for _, n := range Names {
		score := edlib.JaroWinklerSimilarity(strings.ToLower(name), string(n))
		if score > bestScore {
			best, bestScore = string(n), score
		}
	}
	if bestScore < minSimilarity {
		return ""
	}
	return best
}

func joinNames() string {
	names := make([]string, len(Names))
	for i, n := range Names {
		names[i] = string(n)
	}
	return strings.Join(names, ", ")
}

func mustFragment(name string) string {
	data, err := fragments.ReadFile("fragments/" + name)
	if err != nil {
		panic(fmt.Sprintf("renderer: missing embedded fragment %s: %v", name, err))
	}
	return string(data)
}
