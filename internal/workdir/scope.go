// Package workdir manages the transient files and directories a run creates
// in the working folder.
package workdir

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
)

type entry struct {
	path      string
	transient bool // removed on Close unless the scope keeps intermediates
}

// Scope tracks paths created during a run and removes them on Close.
// Frame directories are always removed; transient files (scripts, demuxer
// lists, intermediate encodes) survive when keep is set.
// A Scope is safe for concurrent use.
type Scope struct {
	mu      sync.Mutex
	entries []entry
	keep    bool
	logger  *slog.Logger
}

// NewScope creates an empty scope.
func NewScope(keep bool, logger *slog.Logger) *Scope {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scope{keep: keep, logger: logger}
}

// Track registers a transient file for removal on Close.
func (s *Scope) Track(path string) string {
	s.add(entry{path: path, transient: true})
	return path
}

// Own registers a directory that is removed on Close regardless of keep.
func (s *Scope) Own(path string) string {
	s.add(entry{path: path})
	return path
}

func (s *Scope) add(e entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.entries {
		if existing.path == e.path {
			return
		}
	}
	s.entries = append(s.entries, e)
}

// WriteFile writes a transient file and tracks it.
func (s *Scope) WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrFilesystem, path, err)
	}
	s.Track(path)
	return nil
}

// ResetDir removes dir and everything in it, recreates it empty and owns it.
func (s *Scope) ResetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: clear %s: %v", ErrFilesystem, dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrFilesystem, dir, err)
	}
	s.Own(dir)
	return nil
}

// Release removes a tracked path now and stops tracking it.
func (s *Scope) Release(path string) error {
	s.mu.Lock()
	for i, e := range s.entries {
		if e.path == path {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return remove(path)
}

// Close removes every tracked path, newest first, and returns the joined
// removal errors.
func (s *Scope) Close() error {
	s.mu.Lock()
	entries := s.entries
	s.entries = nil
	s.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.transient && s.keep {
			s.logger.Debug("keeping intermediate", "path", e.path)
			continue
		}
		if err := remove(e.path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func remove(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrFilesystem, path, err)
	}
	return nil
}

// SetMode changes the permissions of a published artifact.
func SetMode(path string, mode fs.FileMode) error {
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("%w: chmod %s: %v", ErrFilesystem, path, err)
	}
	return nil
}
