// Package repository provides data access for imported ledger records.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/FACorreiaa/poker-ledger/internal/domain/ledger"
)

var (
	// ErrUnavailable means the store could not be reached. Callers abort instead of
	// retrying at a smaller granularity.
	ErrUnavailable = errors.New("record store unavailable")
	ErrNotFound    = errors.New("record not found")
	// ErrDuplicateKey is returned when an insert collides with an existing dedup key
	// of the same owner.
	ErrDuplicateKey = errors.New("duplicate dedup key")
)

// Filter narrows FindByFilter. Zero fields do not filter.
type Filter struct {
	Category      *ledger.Category
	MovementTypes []ledger.MovementType
	GameType      *ledger.GameType
	UntieredOnly  bool
}

// Patch lists the fields the reclassifier may change. Nil fields are left as they
// are.
type Patch struct {
	BuyinTier *ledger.BuyinTier
	GameType  *ledger.GameType
}

func (p Patch) Empty() bool {
	return p.BuyinTier == nil && p.GameType == nil
}

// Store is the record store the import pipeline and the reclassifier work against.
type Store interface {
	// Insert writes records as one unit and returns how many were written.
	Insert(ctx context.Context, records []*ledger.Record) (int64, error)
	ExistingKeys(ctx context.Context, owner uuid.UUID) ([]string, error)
	Exists(ctx context.Context, owner uuid.UUID, key string) (bool, error)
	FindByFilter(ctx context.Context, owner uuid.UUID, f Filter) ([]*ledger.Record, error)
	Update(ctx context.Context, id uuid.UUID, p Patch) error
	// DeleteBy removes the owner's records, only those of room when room is set.
	DeleteBy(ctx context.Context, owner uuid.UUID, room *string) (int64, error)
	ListOwners(ctx context.Context) ([]uuid.UUID, error)
}
