package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vmunix/pdbmovie/internal/pipeline"
)

func printSummary(w io.Writer, s *pipeline.Summary) {
	fmt.Fprintf(w, "\nVideos (%d):\n", len(s.Jobs)+len(s.Combined))
	for _, o := range s.Jobs {
		if o.Err != nil {
			fmt.Fprintf(w, "  %-32s FAILED  %s: %v\n", filepath.Base(o.Artifact), o.Err.Stage, o.Err.Err)
			continue
		}
		fmt.Fprintf(w, "  %-32s ok      %s\n", filepath.Base(o.Artifact), humanize.Bytes(uint64(o.Size)))
	}
	for _, o := range s.Combined {
		switch {
		case o.Skipped:
			fmt.Fprintf(w, "  %-32s skipped\n", filepath.Base(o.Artifact))
		case o.Err != nil:
			fmt.Fprintf(w, "  %-32s FAILED  %s: %v\n", filepath.Base(o.Artifact), o.Err.Stage, o.Err.Err)
		default:
			fmt.Fprintf(w, "  %-32s ok      %s\n", filepath.Base(o.Artifact), humanize.Bytes(uint64(o.Size)))
		}
	}

	fmt.Fprintf(w, "\n%d jobs, %d failures, took %s\n", len(s.Jobs), s.Failed(), s.Duration().Round(time.Second))
	if s.RunID != 0 {
		fmt.Fprintf(w, "Recorded as run %d\n", s.RunID)
	}
}
