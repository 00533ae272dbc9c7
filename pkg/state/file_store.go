package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileStore keeps documents on an afero filesystem.
type FileStore struct {
	fs   afero.Fs
	perm os.FileMode
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithFileMode sets the permission bits of written documents (default 0o644).
func WithFileMode(perm os.FileMode) FileStoreOption {
	return func(s *FileStore) {
		s.perm = perm
	}
}

// NewFileStore returns a store over fsys; nil means the OS filesystem.
func NewFileStore(fsys afero.Fs, opts ...FileStoreOption) *FileStore {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	s := &FileStore{fs: fsys, perm: 0o644}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Fs exposes the underlying filesystem.
func (s *FileStore) Fs() afero.Fs { return s.fs }

func (s *FileStore) Load(ctx context.Context, path string) ([]byte, Meta, bool, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, Meta{}, false, err
	}
	path, err := cleanPath(path)
	if err != nil {
		return nil, Meta{}, false, err
	}
	info, err := s.fs.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Meta{}, false, nil
	}
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, Meta{}, false, fmt.Errorf("state: %s is a directory", path)
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: read %s: %w", path, err)
	}
	return data, Meta{Path: path, Size: info.Size(), ModTime: info.ModTime()}, true, nil
}

// Save writes data to a temporary file next to path and renames it over the
// target. On failure the previous document is left untouched.
func (s *FileStore) Save(ctx context.Context, path string, data []byte) (Meta, error) {
	if err := ctxErr(ctx); err != nil {
		return Meta{}, err
	}
	path, err := cleanPath(path)
	if err != nil {
		return Meta{}, err
	}
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return Meta{}, fmt.Errorf("state: create %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return Meta{}, fmt.Errorf("state: temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func(cause error) (Meta, error) {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return Meta{}, cause
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("state: write %s: %w", path, err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("state: sync %s: %w", path, err))
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return Meta{}, fmt.Errorf("state: close %s: %w", path, err)
	}
	if err := s.fs.Chmod(tmpName, s.perm); err != nil {
		_ = s.fs.Remove(tmpName)
		return Meta{}, fmt.Errorf("state: chmod %s: %w", path, err)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		_ = s.fs.Remove(tmpName)
		return Meta{}, fmt.Errorf("state: replace %s: %w", path, err)
	}
	meta := Meta{Path: path, Size: int64(len(data))}
	if info, err := s.fs.Stat(path); err == nil {
		meta.ModTime = info.ModTime()
	}
	return meta, nil
}

func (s *FileStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	path, err := cleanPath(path)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, path)
}
