package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const metaDir = ".meta"

// LocalArchive implements Archive on the local filesystem. Files live under
// <base>/<owner>/ with a JSON sidecar per entry in <base>/<owner>/.meta/.
type LocalArchive struct {
	basePath string
	now      func() time.Time
}

var _ Archive = (*LocalArchive)(nil)

// NewLocalArchive creates the base directory if needed.
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath, now: time.Now}, nil
}

func (a *LocalArchive) Save(ctx context.Context, owner uuid.UUID, filename string, data []byte) (*Entry, error) {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	existing, err := a.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if e.SHA256 == digest {
			return e, nil
		}
	}

	ownerDir := a.ownerDir(owner)
	if err := os.MkdirAll(filepath.Join(ownerDir, metaDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create owner directory: %w", err)
	}

	id := uuid.New()
	stored := fmt.Sprintf("%s_%s", id.String()[:8], sanitizeFilename(filename))
	path := filepath.Join(ownerDir, stored)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	entry := &Entry{
		ID:        id,
		Owner:     owner,
		Name:      filename,
		Size:      int64(len(data)),
		SHA256:    digest,
		Path:      stored,
		CreatedAt: a.now().UTC(),
	}
	if err := a.saveMeta(entry); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return entry, nil
}

func (a *LocalArchive) Open(_ context.Context, owner, id uuid.UUID) (io.ReadCloser, *Entry, error) {
	entry, err := a.loadMeta(owner, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(a.ownerDir(owner), entry.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archived file: %w", err)
	}
	return f, entry, nil
}

// List returns the owner's entries, oldest first.
func (a *LocalArchive) List(_ context.Context, owner uuid.UUID) ([]*Entry, error) {
	entries, err := os.ReadDir(filepath.Join(a.ownerDir(owner), metaDir))
	if errors.Is(err, os.ErrNotExist) {
		return []*Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}

	out := make([]*Entry, 0, len(entries))
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(de.Name(), ".json"))
		if err != nil {
			continue
		}
		entry, err := a.loadMeta(owner, id)
		if err != nil {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (a *LocalArchive) Delete(_ context.Context, owner, id uuid.UUID) error {
	entry, err := a.loadMeta(owner, id)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(a.ownerDir(owner), entry.Path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete archived file: %w", err)
	}
	if err := os.Remove(a.metaPath(owner, id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete archive metadata: %w", err)
	}
	return nil
}

func (a *LocalArchive) ownerDir(owner uuid.UUID) string {
	return filepath.Join(a.basePath, owner.String())
}

func (a *LocalArchive) metaPath(owner, id uuid.UUID) string {
	return filepath.Join(a.ownerDir(owner), metaDir, id.String()+".json")
}

func (a *LocalArchive) saveMeta(e *Entry) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(a.metaPath(e.Owner, e.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func (a *LocalArchive) loadMeta(owner, id uuid.UUID) (*Entry, error) {
	data, err := os.ReadFile(a.metaPath(owner, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var e Entry
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &e, nil
}

// sanitizeFilename replaces path separators and characters unsafe on common
// filesystems.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	replacer := strings.NewReplacer(
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	name = replacer.Replace(name)
	if name == "" || name == "." || name == "/" {
		return "export"
	}
	return name
}
