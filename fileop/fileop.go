package fileop

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ModePublic is used for images and manifests.
	ModePublic fs.FileMode = 0o644
	// ModePrivate is used for keys and custody shares.
	ModePrivate fs.FileMode = 0o600
)

var ErrExists = errors.New("fileop: destination file already exists")

// CheckDest fails if dest exists and overwrite is not set, or if it exists
// and is not a regular file.
func CheckDest(dest string, overwrite bool) error {
	destFileInfo, err := os.Stat(dest)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("cannot stat destination file %q: %w", dest, err)
		}
		return nil
	}

	if !destFileInfo.Mode().IsRegular() {
		return fmt.Errorf("cannot replace non-regular file %q: %s", dest, destFileInfo.Mode().String())
	}
	if !overwrite {
		return fmt.Errorf("%w: %q", ErrExists, dest)
	}
	return nil
}

// Staged is a fully written temporary file next to its destination, waiting
// for Commit or Discard.
type Staged struct {
	dest      string
	tmp       string
	overwrite bool
}

// Stage streams write into a temporary file next to dest, flushes it and
// sets its mode to perm. Nothing at dest changes until Commit.
func Stage(dest string, overwrite bool, perm fs.FileMode, write func(io.Writer) error) (s *Staged, err error) {
	if err = CheckDest(dest, overwrite); err != nil {
		return nil, err
	}

	destDir, destName := filepath.Split(dest)
	if destDir == "" {
		destDir = "."
	}

	outFile, err := os.CreateTemp(destDir, "."+destName+".*")
	if err != nil {
		return nil, fmt.Errorf("could not create temporary destination for %q: %w", dest, err)
	}
	defer func() {
		if defErr := outFile.Sync(); defErr != nil && err == nil {
			err = fmt.Errorf("could not flush temporary destination %q: %w", outFile.Name(), defErr)
		}
		if defErr := outFile.Close(); defErr != nil && err == nil {
			err = fmt.Errorf("could not close temporary destination %q: %w", outFile.Name(), defErr)
		}
		if err != nil {
			removeTemp(outFile.Name())
			s = nil
		}
	}()

	if err = write(outFile); err != nil {
		return nil, err
	}
	if err = outFile.Chmod(perm); err != nil {
		return nil, fmt.Errorf("could not set mode of temporary destination %q: %w", outFile.Name(), err)
	}

	return &Staged{dest: dest, tmp: outFile.Name(), overwrite: overwrite}, nil
}

func (s *Staged) Dest() string {
	return s.dest
}

// Commit moves the staged file to its destination. Without overwrite an
// existing destination is never replaced, even one created after Stage.
func (s *Staged) Commit() error {
	if s.tmp == "" {
		return fmt.Errorf("staged file for %q already committed or discarded", s.dest)
	}
	defer s.Discard()

	if s.overwrite {
		if err := os.Rename(s.tmp, s.dest); err != nil {
			return fmt.Errorf("could not rename destination file %q: %w", s.dest, err)
		}
		s.tmp = ""
		return nil
	}

	err := os.Link(s.tmp, s.dest)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %q", ErrExists, s.dest)
	}

	// no hard links on this filesystem
	slog.Debug("could not link destination file, renaming", "name", s.dest, "error", err)
	if err := CheckDest(s.dest, false); err != nil {
		return err
	}
	if err := os.Rename(s.tmp, s.dest); err != nil {
		return fmt.Errorf("could not rename destination file %q: %w", s.dest, err)
	}
	s.tmp = ""
	return nil
}

// Discard removes the staged file. It is a no-op after Commit.
func (s *Staged) Discard() {
	if s == nil || s.tmp == "" {
		return
	}
	removeTemp(s.tmp)
	s.tmp = ""
}

// WriteAtomic stages write next to dest and commits it in one go.
func WriteAtomic(dest string, overwrite bool, perm fs.FileMode, write func(io.Writer) error) error {
	s, err := Stage(dest, overwrite, perm, write)
	if err != nil {
		return err
	}
	return s.Commit()
}

func removeTemp(name string) {
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("could not remove temporary file", "name", name, "error", err)
	}
}
