// Package dedup derives the duplicate-detection fingerprint of a ledger record and
// decides whether an import candidate was already seen, either against a key set
// loaded up front or by asking the store one key at a time.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/poker-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/poker-ledger/pkg/money"
)

// Mode selects how candidates are checked against stored history.
type Mode string

const (
	// ModeBulk loads every stored key of the owner once before the first row.
	ModeBulk Mode = "bulk"
	// ModeStored asks the store about each candidate key.
	ModeStored Mode = "stored"
)

var ErrUnknownMode = errors.New("unknown dedup mode")

// ParseMode maps a configuration value to a Mode. Empty means bulk.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeBulk:
		return ModeBulk, nil
	case ModeStored:
		return ModeStored, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Tuple holds the fields the fingerprint is computed from.
type Tuple struct {
	Date         time.Time
	Time         *time.Time
	Description  string
	AmountCents  int64
	Room         string
	MovementType ledger.MovementType
	Category     ledger.Category
}

// TupleOf extracts the fingerprint fields of r.
func TupleOf(r *ledger.Record) Tuple {
	return Tuple{
		Date:         r.Date,
		Time:         r.Time,
		Description:  r.Description,
		AmountCents:  r.AmountCents,
		Room:         r.Room,
		MovementType: r.MovementType,
		Category:     r.Category,
	}
}

const fieldSep = "\x1f"

// Canonical renders the tuple in the exact form that is hashed. The amount always
// has two decimals.
func (t Tuple) Canonical() string {
	tod := ""
	if t.Time != nil {
		tod = t.Time.Format("15:04:05")
	}
	return strings.Join([]string{
		t.Date.Format("2006-01-02"),
		tod,
		strings.TrimSpace(t.Description),
		money.FormatCents(t.AmountCents),
		t.Room,
		string(t.MovementType),
		string(t.Category),
	}, fieldSep)
}

// Key returns the hex SHA-256 of the canonical tuple.
func (t Tuple) Key() string {
	sum := sha256.Sum256([]byte(t.Canonical()))
	return hex.EncodeToString(sum[:])
}

// KeyOf is shorthand for TupleOf(r).Key().
func KeyOf(r *ledger.Record) string {
	return TupleOf(r).Key()
}

// Checker reports whether a candidate key is a duplicate. A key that is not a
// duplicate is remembered, so a repeat of it later in the same file is one.
type Checker interface {
	Duplicate(ctx context.Context, key string) (bool, error)
}

// KeySet is an in-memory set of fingerprints.
type KeySet struct {
	keys map[string]struct{}
}

func NewKeySet(keys []string) *KeySet {
	s := &KeySet{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

func (s *KeySet) Contains(key string) bool {
	_, ok := s.keys[key]
	return ok
}

func (s *KeySet) Add(key string) {
	s.keys[key] = struct{}{}
}

func (s *KeySet) Len() int {
	return len(s.keys)
}

func (s *KeySet) Duplicate(_ context.Context, key string) (bool, error) {
	if s.Contains(key) {
		return true, nil
	}
	s.Add(key)
	return false, nil
}

// KeyLoader returns every stored key of an owner.
type KeyLoader interface {
	ExistingKeys(ctx context.Context, owner uuid.UUID) ([]string, error)
}

// KeyLookup checks a single stored key.
type KeyLookup interface {
	Exists(ctx context.Context, owner uuid.UUID, key string) (bool, error)
}

// Store is what NewChecker needs from the record store.
type Store interface {
	KeyLoader
	KeyLookup
}

// StoredChecker asks the store about every key it has not already seen in the
// current file.
type StoredChecker struct {
	owner  uuid.UUID
	lookup KeyLookup
	seen   *KeySet
}

func NewStoredChecker(owner uuid.UUID, lookup KeyLookup) *StoredChecker {
	return &StoredChecker{owner: owner, lookup: lookup, seen: NewKeySet(nil)}
}

func (c *StoredChecker) Duplicate(ctx context.Context, key string) (bool, error) {
	if c.seen.Contains(key) {
		return true, nil
	}
	exists, err := c.lookup.Exists(ctx, c.owner, key)
	if err != nil {
		return false, fmt.Errorf("failed to check dedup key: %w", err)
	}
	c.seen.Add(key)
	return exists, nil
}

// NewChecker builds the checker for mode. Bulk mode loads the owner's keys here.
func NewChecker(ctx context.Context, mode Mode, owner uuid.UUID, store Store) (Checker, error) {
	switch mode {
	case ModeStored:
		return NewStoredChecker(owner, store), nil
	case ModeBulk, "":
		keys, err := store.ExistingKeys(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing keys: %w", err)
		}
		return NewKeySet(keys), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}
