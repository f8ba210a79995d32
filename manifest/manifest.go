// Package manifest describes a set of share images written to disk.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"picveil/fileop"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const FileName = "shares.yaml"

var ErrInvalid = errors.New("manifest: invalid manifest")

type Manifest struct {
	ID        string   `yaml:"id"`
	Width     int      `yaml:"width"`
	Height    int      `yaml:"height"`
	Shares    int      `yaml:"shares"`
	Threshold int      `yaml:"threshold"`
	Format    string   `yaml:"format"`
	Files     []string `yaml:"files"`
}

// New describes a fresh share set. Files are named share_1.<format>,
// share_2.<format> and so on.
func New(width, height, shares, threshold int, format string) *Manifest {
	m := &Manifest{
		ID:        uuid.NewString(),
		Width:     width,
		Height:    height,
		Shares:    shares,
		Threshold: threshold,
		Format:    format,
		Files:     make([]string, shares),
	}
	for i := range m.Files {
		m.Files[i] = fmt.Sprintf("share_%d.%s", i+1, format)
	}
	return m
}

func (m *Manifest) Validate() error {
	if _, err := uuid.Parse(m.ID); err != nil {
		return fmt.Errorf("%w: id %q: %v", ErrInvalid, m.ID, err)
	}

	switch {
	case m.Width <= 0 || m.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalid, m.Width, m.Height)
	case m.Shares < 1:
		return fmt.Errorf("%w: share count %d", ErrInvalid, m.Shares)
	case m.Threshold < 1 || m.Threshold > m.Shares:
		return fmt.Errorf("%w: threshold %d for %d shares", ErrInvalid, m.Threshold, m.Shares)
	case len(m.Files) != m.Shares:
		return fmt.Errorf("%w: %d files for %d shares", ErrInvalid, len(m.Files), m.Shares)
	}

	for i, f := range m.Files {
		if f == "" || filepath.IsAbs(f) || f != filepath.Base(f) {
			return fmt.Errorf("%w: file %d %q must be a plain file name", ErrInvalid, i, f)
		}
	}
	return nil
}

// Paths returns the share file paths relative to dir.
func (m *Manifest) Paths(dir string) []string {
	paths := make([]string, len(m.Files))
	for i, f := range m.Files {
		paths[i] = filepath.Join(dir, f)
	}
	return paths
}

func Load(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read manifest %q: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: could not parse %q: %v", ErrInvalid, path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) Save(path string, overwrite bool) error {
	if err := m.Validate(); err != nil {
		return err
	}

	return fileop.WriteAtomic(path, overwrite, fileop.ModePublic, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("could not encode manifest: %w", err)
		}
		return enc.Close()
	})
}
