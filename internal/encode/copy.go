package encode

import (
	"fmt"
	"io"
	"os"

	"github.com/vmunix/pdbmovie/internal/workdir"
)

// copyFile copies src to dst, replacing dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", workdir.ErrFilesystem, src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", workdir.ErrFilesystem, dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("%w: copy %s: %v", workdir.ErrFilesystem, src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", workdir.ErrFilesystem, dst, err)
	}
	return nil
}
