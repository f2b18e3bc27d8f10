// Package script assembles the per-job renderer scripts.
package script

import (
	"fmt"
	"os"
	"strings"

	"github.com/vmunix/pdbmovie/internal/job"
	"github.com/vmunix/pdbmovie/internal/renderer"
	"github.com/vmunix/pdbmovie/internal/workdir"
)

// Options are the run-wide settings that shape every script.
type Options struct {
	Folder      string
	Resolution  *job.Resolution
	Stereo      bool
	CommandFile string // renderer commands spliced in before the postamble
}

// Generator writes one script per job.
type Generator struct {
	backend renderer.Backend
	opts    Options
	scope   *workdir.Scope
}

// NewGenerator creates a generator. Written scripts are tracked by scope.
func NewGenerator(backend renderer.Backend, opts Options, scope *workdir.Scope) *Generator {
	return &Generator{backend: backend, opts: opts, scope: scope}
}

// Content assembles the script for j. Fragments appear in this order:
// preamble, viewport, stereo, filename, user commands, postamble.
func (g *Generator) Content(j job.Job) (string, error) {
	var b strings.Builder
	b.WriteString(g.backend.Preamble())
	if g.opts.Resolution != nil {
		b.WriteString(g.backend.Viewport(*g.opts.Resolution))
	}
	if g.opts.Stereo {
		for _, d := range g.backend.Stereo() {
			b.WriteString(d)
		}
	}
	b.WriteString(g.backend.Filename(j.Artifact(g.opts.Folder, g.backend.ArtifactExt())))
	if g.opts.CommandFile != "" {
		data, err := os.ReadFile(g.opts.CommandFile)
		if err != nil {
			return "", fmt.Errorf("%w: command file: %v", ErrMissingResource, err)
		}
		b.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			b.WriteByte('\n')
		}
	}
	b.WriteString(g.backend.Postamble())
	return b.String(), nil
}

// Generate writes the script for j and returns its path.
func (g *Generator) Generate(j job.Job) (string, error) {
	content, err := g.Content(j)
	if err != nil {
		return "", fmt.Errorf("script for %s: %w", j, err)
	}
	path := g.backend.ScriptPath(g.opts.Folder, j)
	if err := g.scope.WriteFile(path, []byte(content)); err != nil {
		return "", fmt.Errorf("script for %s: %w", j, err)
	}
	return path, nil
}
