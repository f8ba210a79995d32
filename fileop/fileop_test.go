package fileop

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomic(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.bin")

	err := WriteAtomic(dest, false, ModePublic, func(w io.Writer) error {
		_, err := w.Write([]byte("hello"))
		return err
	})
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestWriteAtomic_RefusesOverwrite(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o644))

	err := WriteAtomic(dest, false, ModePublic, func(w io.Writer) error {
		_, err := w.Write([]byte("new"))
		return err
	})
	assert.ErrorIs(t, err, ErrExists)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))

	err = WriteAtomic(dest, true, ModePublic, func(w io.Writer) error {
		_, err := w.Write([]byte("new"))
		return err
	})
	require.NoError(t, err)

	got, err = os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestWriteAtomic_FailedWriteLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	boom := errors.New("boom")

	err := WriteAtomic(dest, false, ModePublic, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCheckDest_Directory(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, CheckDest(dir, true))
	assert.NoError(t, CheckDest(filepath.Join(dir, "missing"), false))
}

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func TestWriteAtomic_Mode(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		perm fs.FileMode
	}{
		{"public", ModePublic},
		{"private", ModePrivate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := filepath.Join(dir, tt.name)
			require.NoError(t, WriteAtomic(dest, false, tt.perm, writeString("data")))

			info, err := os.Stat(dest)
			require.NoError(t, err)
			assert.Equal(t, tt.perm, info.Mode().Perm())
		})
	}
}

func TestStage_DestinationCreatedBeforeCommit(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	s, err := Stage(dest, false, ModePublic, writeString("new"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(dest, []byte("other"), 0o644))
	assert.ErrorIs(t, s.Commit(), ErrExists)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "other", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStage_Discard(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	s, err := Stage(dest, false, ModePublic, writeString("new"))
	require.NoError(t, err)
	assert.Equal(t, dest, s.Dest())
	assert.NoFileExists(t, dest)

	s.Discard()
	s.Discard()
	assert.Error(t, s.Commit())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStage_CommitOverwrite(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o644))

	s, err := Stage(dest, true, ModePrivate, writeString("new"))
	require.NoError(t, err)
	require.NoError(t, s.Commit())
	s.Discard()

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
