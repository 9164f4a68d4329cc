package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"docchat/internal/domain"
)

// Stager writes uploaded bytes into the upload area.
type Stager struct {
	dir string
}

func NewStager(dir string) *Stager {
	return &Stager{dir: dir}
}

func (s *Stager) Dir() string {
	return s.dir
}

// Stage stores the content under the base name of name, replacing any file of
// that name. Directory components, including Windows ones, are discarded.
// The returned path is absolute.
func (s *Stager) Stage(name string, r io.Reader) (string, error) {
	base, err := baseName(name)
	if err != nil {
		return "", err
	}

	dir, err := filepath.Abs(s.dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", base, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	dest := filepath.Join(dir, base)
	if err := os.Rename(tmpName, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// StageFile copies a local file into the upload area.
func (s *Stager) StageFile(src string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.Stage(filepath.Base(src), f)
}

// Remove deletes a staged file by name.
func (s *Stager) Remove(name string) error {
	base, err := baseName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, base)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", base, domain.ErrNotFound)
		}
		return err
	}
	return nil
}

func baseName(name string) (string, error) {
	base := name[strings.LastIndexAny(name, `/\`)+1:]
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == ".." {
		return "", fmt.Errorf("upload name %q: %w", name, domain.ErrInvalidInput)
	}
	return base, nil
}
