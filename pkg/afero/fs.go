// Package afero wraps spf13's afero with the atomic write helpers the agents
// use for checkpoints, reports and downloads.
package afero

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/garr-ai/garr/pkg/logging"
)

type Fs = afero.Fs

type File = afero.File

func NewOsFs() Fs {
	return afero.NewOsFs()
}

func NewMemMapFs() Fs {
	return afero.NewMemMapFs()
}

func ReadFile(fs Fs, filename string) ([]byte, error) {
	return afero.ReadFile(fs, filename)
}

func WriteFile(fs Fs, filename string, data []byte, perm os.FileMode) error {
	return afero.WriteFile(fs, filename, data, perm)
}

func ReadDir(fs Fs, dirname string) ([]os.FileInfo, error) {
	return afero.ReadDir(fs, dirname)
}

func Walk(fs Fs, root string, walkFn filepath.WalkFunc) error {
	return afero.Walk(fs, root, walkFn)
}

// Exists returns true and nil error if the given path for a file or directory
// exists.
func Exists(fs Fs, path string) (bool, error) {
	return afero.Exists(fs, path)
}

// AtomicFileUpdate replaces destDir/destFile with data through a temp file
// and rename. Nothing is written when the current contents already match.
func AtomicFileUpdate(
	fs Fs,
	destDir string,
	destFile string,
	data []byte,
	fileMode os.FileMode,
	log logging.Interface,
) error {
	destPath := filepath.Join(destDir, destFile)
	oldContents, err := afero.ReadFile(fs, destPath)
	if err == nil && bytes.Equal(oldContents, data) {
		return fs.Chmod(destPath, fileMode)
	}

	log.WithField("destPath", destPath).Debug("Writing file")

	_, err = AtomicWriteFrom(fs, destPath, bytes.NewReader(data), fileMode)
	return err
}

// AtomicWriteFrom streams r into destPath. Readers of destPath observe either
// the previous file or the complete new one. The parent directory is created
// when missing.
func AtomicWriteFrom(fs Fs, destPath string, r io.Reader, fileMode os.FileMode) (int64, error) {
	destDir, destFile := filepath.Split(destPath)
	if destDir == "" {
		destDir = "."
	}
	if err := fs.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating directory %s: %w", destDir, err)
	}

	tmp, err := afero.TempFile(fs, destDir, "."+destFile+"~")
	if err != nil {
		return 0, fmt.Errorf("creating tmp file for atomic write: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = fs.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return n, fmt.Errorf("writing into a temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("closing temp file: %w", err)
	}
	if err := fs.Chmod(tmpName, fileMode); err != nil {
		_ = fs.Remove(tmpName)
		committed = true
		return n, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := fs.Rename(tmpName, destPath); err != nil {
		_ = fs.Remove(tmpName)
		committed = true
		return n, fmt.Errorf("renaming temp file: %w", err)
	}
	committed = true
	return n, nil
}
