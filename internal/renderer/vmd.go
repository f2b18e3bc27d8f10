package renderer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vmunix/pdbmovie/internal/job"
	"github.com/vmunix/pdbmovie/internal/proc"
)

var (
	vmdPreamble  = mustFragment("vmd_preamble.tcl")
	vmdPostamble = mustFragment("vmd_postamble.tcl")
)

// WarmupFrame is the first image the VMD postamble renders before stepping
// through the trajectory. It is discarded before encoding.
const WarmupFrame = "image.0000000.tga"

// VMD renders targa frames offscreen with VMD. Its movies cannot loop, so
// they are assembled as a forward sweep followed by the reversed sweep.
type VMD struct{}

func (VMD) Name() Name { return NameVMD }

func (VMD) Preamble() string  { return vmdPreamble }
func (VMD) Postamble() string { return vmdPostamble }

func (VMD) Viewport(res job.Resolution) string {
	return fmt.Sprintf("display resize %d %d\n", res.Width, res.Height)
}

func (VMD) Stereo() []string {
	return []string{
		"display stereo Anaglyph\n",
		"display stereoswap off\n",
	}
}

func (VMD) Filename(path string) string {
	return "set filename " + tclQuote(path) + "\n"
}

func (VMD) ScriptPath(folder string, j job.Job) string {
	return filepath.Join(folder, "vmdvideo"+j.Key()+".tcl")
}

func (VMD) RenderCommand(binary, script, runDir string, _ bool) proc.Command {
	return proc.Command{
		Name: binary,
		Args: []string{"-e", script, "-dispdev", "openglpbuffer", "-args", runDir},
	}
}

func (VMD) FrameDir(folder string, j job.Job) string {
	return filepath.Join(j.RunDir(folder), "outputs")
}

func (VMD) FramePattern() string { return "image.*.tga" }
func (VMD) ArtifactExt() string  { return ".mp4" }
func (VMD) ResetsFrameDir() bool { return true }
func (VMD) Oscillates() bool     { return true }

var tclEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, `[`, `\[`, `]`, `\]`)

func tclQuote(s string) string {
	return `"` + tclEscaper.Replace(s) + `"`
}

var _ Backend = VMD{}
