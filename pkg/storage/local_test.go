package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArchive(t *testing.T) *LocalArchive {
	t.Helper()
	a, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)
	return a
}

func TestLocalArchive_SaveOpen(t *testing.T) {
	ctx := context.Background()
	a := newArchive(t)
	owner := uuid.New()
	data := []byte("Date,Money In,Money Out,Payment Method,Description\n")

	entry, err := a.Save(ctx, owner, "wpt export.csv", data)
	require.NoError(t, err)
	assert.Equal(t, owner, entry.Owner)
	assert.Equal(t, "wpt export.csv", entry.Name)
	assert.Equal(t, int64(len(data)), entry.Size)
	assert.Len(t, entry.SHA256, 64)

	rc, got, err := a.Open(ctx, owner, entry.ID)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, body)
	assert.Equal(t, entry.SHA256, got.SHA256)
}

func TestLocalArchive_SaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	a := newArchive(t)
	owner := uuid.New()

	first, err := a.Save(ctx, owner, "a.csv", []byte("same"))
	require.NoError(t, err)
	second, err := a.Save(ctx, owner, "b.csv", []byte("same"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	entries, err := a.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	other, err := a.Save(ctx, uuid.New(), "a.csv", []byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestLocalArchive_ListOrder(t *testing.T) {
	ctx := context.Background()
	a := newArchive(t)
	owner := uuid.New()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	for _, body := range []string{"one", "two", "three"} {
		_, err := a.Save(ctx, owner, body+".csv", []byte(body))
		require.NoError(t, err)
	}

	entries, err := a.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "one.csv", entries[0].Name)
	assert.Equal(t, "three.csv", entries[2].Name)

	empty, err := a.List(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLocalArchive_Delete(t *testing.T) {
	ctx := context.Background()
	a := newArchive(t)
	owner := uuid.New()

	entry, err := a.Save(ctx, owner, "a.csv", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, a.Delete(ctx, owner, entry.ID))

	_, _, err = a.Open(ctx, owner, entry.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, a.Delete(ctx, owner, entry.ID), ErrNotFound)

	_, err = os.Stat(filepath.Join(a.ownerDir(owner), entry.Path))
	assert.True(t, os.IsNotExist(err))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"export.csv", "export.csv"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\audit.html`, "audit.html"},
		{"what?.csv", "what_.csv"},
		{"", "export"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), tt.in)
	}
}

func TestNew(t *testing.T) {
	a, err := New(Config{})
	require.NoError(t, err)
	assert.Nil(t, a)

	a, err = New(Config{LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.NotNil(t, a)
}
