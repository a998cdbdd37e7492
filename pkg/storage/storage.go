// Package storage archives uploaded export files so an import can be audited or
// replayed later.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("archived file not found")

// Entry describes one archived export.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Owner     uuid.UUID `json:"owner"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	SHA256    string    `json:"sha256"`
	Path      string    `json:"path"` // relative to the owner directory
	CreatedAt time.Time `json:"created_at"`
}

// Archive stores raw export files per owner.
type Archive interface {
	// Save stores data under filename. Saving identical content twice returns the
	// existing entry.
	Save(ctx context.Context, owner uuid.UUID, filename string, data []byte) (*Entry, error)
	Open(ctx context.Context, owner, id uuid.UUID) (io.ReadCloser, *Entry, error)
	List(ctx context.Context, owner uuid.UUID) ([]*Entry, error)
	Delete(ctx context.Context, owner, id uuid.UUID) error
}

// Config holds storage configuration.
type Config struct {
	LocalPath string
}

// New creates the archive described by cfg. An empty path disables archiving and
// returns a nil Archive.
func New(cfg Config) (Archive, error) {
	if cfg.LocalPath == "" {
		return nil, nil
	}
	return NewLocalArchive(cfg.LocalPath)
}
