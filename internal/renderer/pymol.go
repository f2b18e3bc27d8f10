package renderer

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/vmunix/pdbmovie/internal/job"
	"github.com/vmunix/pdbmovie/internal/proc"
)

var (
	pymolPreamble  = mustFragment("pymol_preamble.py")
	pymolPostamble = mustFragment("pymol_postamble.py")
)

// PyMOL renders PNG frames with PyMOL and encodes them straight to MPEG-2.
type PyMOL struct{}

func (PyMOL) Name() Name { return NamePyMOL }

func (PyMOL) Preamble() string  { return pymolPreamble }
func (PyMOL) Postamble() string { return pymolPostamble }

func (PyMOL) Viewport(res job.Resolution) string {
	return fmt.Sprintf("cmd.viewport(%d,%d)\n", res.Width, res.Height)
}

func (PyMOL) Stereo() []string {
	return []string{
		"cmd.set(\"stereo_mode\",10)\n",
		"cmd.stereo(\"on\")\n",
	}
}

func (PyMOL) Filename(path string) string {
	return "filename=" + strconv.Quote(path) + "\n"
}

func (PyMOL) ScriptPath(folder string, j job.Job) string {
	return filepath.Join(folder, "pymolvideo"+j.Key()+".py")
}

// RenderCommand runs PyMOL quietly. Without stereo it runs headless (-c);
// stereo needs an OpenGL window.
func (PyMOL) RenderCommand(binary, script, runDir string, stereo bool) proc.Command {
	flags := "-cq"
	if stereo {
		flags = "-q"
	}
	return proc.Command{Name: binary, Args: []string{flags, script, "--", runDir}}
}

// FrameDir mirrors the postamble: the target movie path with its extension
// replaced by ".tmp".
func (PyMOL) FrameDir(folder string, j job.Job) string {
	return filepath.Join(folder, j.Stem()+".tmp")
}

func (PyMOL) FramePattern() string { return "*.png" }
func (PyMOL) ArtifactExt() string  { return ".mpg" }
func (PyMOL) ResetsFrameDir() bool { return false }
func (PyMOL) Oscillates() bool     { return false }

var _ Backend = PyMOL{}
