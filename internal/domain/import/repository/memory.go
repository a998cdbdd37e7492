package repository

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/FACorreiaa/poker-ledger/internal/domain/ledger"
)

// MemoryStore is a Store held in process memory. It enforces the same
// (owner, dedup key) uniqueness as the PostgreSQL schema and is used for dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*ledger.Record
	keys    map[uuid.UUID]map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[uuid.UUID]map[string]struct{})}
}

// Insert stores all records or none.
func (m *MemoryStore) Insert(_ context.Context, records []*ledger.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := make(map[uuid.UUID]map[string]struct{})
	for _, r := range records {
		if _, ok := m.keys[r.OwnerID][r.DedupKey]; ok {
			return 0, ErrDuplicateKey
		}
		if _, ok := batch[r.OwnerID][r.DedupKey]; ok {
			return 0, ErrDuplicateKey
		}
		if batch[r.OwnerID] == nil {
			batch[r.OwnerID] = make(map[string]struct{})
		}
		batch[r.OwnerID][r.DedupKey] = struct{}{}
	}

	for _, r := range records {
		if m.keys[r.OwnerID] == nil {
			m.keys[r.OwnerID] = make(map[string]struct{})
		}
		m.keys[r.OwnerID][r.DedupKey] = struct{}{}
		m.records = append(m.records, clone(r))
	}
	return int64(len(records)), nil
}

func (m *MemoryStore) ExistingKeys(_ context.Context, owner uuid.UUID) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.keys[owner]))
	for k := range m.keys[owner] {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *MemoryStore) Exists(_ context.Context, owner uuid.UUID, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[owner][key]
	return ok, nil
}

// FindByFilter returns copies ordered like the SQL store: date, time (missing
// first), id.
func (m *MemoryStore) FindByFilter(_ context.Context, owner uuid.UUID, f Filter) ([]*ledger.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*ledger.Record
	for _, r := range m.records {
		if r.OwnerID != owner || !matches(r, f) {
			continue
		}
		out = append(out, clone(r))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		switch {
		case a.Time == nil && b.Time != nil:
			return true
		case a.Time != nil && b.Time == nil:
			return false
		case a.Time != nil && !a.Time.Equal(*b.Time):
			return a.Time.Before(*b.Time)
		}
		return a.ID.String() < b.ID.String()
	})
	return out, nil
}

func matches(r *ledger.Record, f Filter) bool {
	if f.Category != nil && r.Category != *f.Category {
		return false
	}
	if len(f.MovementTypes) > 0 && !slices.Contains(f.MovementTypes, r.MovementType) {
		return false
	}
	if f.GameType != nil && r.GameType != *f.GameType {
		return false
	}
	if f.UntieredOnly && r.BuyinTier != nil {
		return false
	}
	return true
}

func (m *MemoryStore) Update(_ context.Context, id uuid.UUID, p Patch) error {
	if p.Empty() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.ID != id {
			continue
		}
		if p.BuyinTier != nil {
			t := *p.BuyinTier
			r.BuyinTier = &t
		}
		if p.GameType != nil {
			r.GameType = *p.GameType
		}
		return nil
	}
	return ErrNotFound
}

func (m *MemoryStore) DeleteBy(_ context.Context, owner uuid.UUID, room *string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var n int64
	for _, r := range m.records {
		if r.OwnerID == owner && (room == nil || r.Room == *room) {
			delete(m.keys[owner], r.DedupKey)
			n++
			continue
		}
		kept = append(kept, r)
	}
	clear(m.records[len(kept):])
	m.records = kept
	return n, nil
}

func (m *MemoryStore) ListOwners(_ context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owners := make([]uuid.UUID, 0, len(m.keys))
	for owner, keys := range m.keys {
		if len(keys) > 0 {
			owners = append(owners, owner)
		}
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].String() < owners[j].String() })
	return owners, nil
}

// Records returns a copy of every stored record in insertion order.
func (m *MemoryStore) Records() []*ledger.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*ledger.Record, len(m.records))
	for i, r := range m.records {
		out[i] = clone(r)
	}
	return out
}

func clone(r *ledger.Record) *ledger.Record {
	cp := *r
	if r.Time != nil {
		t := *r.Time
		cp.Time = &t
	}
	if r.BuyinTier != nil {
		t := *r.BuyinTier
		cp.BuyinTier = &t
	}
	return &cp
}
