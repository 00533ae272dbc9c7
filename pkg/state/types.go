package state

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrEmptyPath is returned for blank storage paths.
var ErrEmptyPath = errors.New("state: path must not be empty")

// Meta describes a stored document.
type Meta struct {
	Path     string
	Size     int64
	ModTime  time.Time
	Revision int
}

// Store persists whole documents by path.
type Store interface {
	// Load returns the stored bytes. ok is false, with a nil error, when
	// nothing is stored at path.
	Load(ctx context.Context, path string) (data []byte, meta Meta, ok bool, err error)
	// Save replaces the document at path, creating parents as needed.
	Save(ctx context.Context, path string, data []byte) (Meta, error)
	Exists(ctx context.Context, path string) (bool, error)
}

func cleanPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", ErrEmptyPath
	}
	return path, nil
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
