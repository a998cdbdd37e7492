package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/poker-ledger/internal/domain/ledger"
)

func memRecord(owner uuid.UUID, key string, day int, movement ledger.MovementType) *ledger.Record {
	return &ledger.Record{
		ID:           uuid.New(),
		OwnerID:      owner,
		Date:         time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Description:  "12345 $10 NLH",
		AmountCents:  -1000,
		Category:     ledger.CategoryTournament,
		MovementType: movement,
		GameType:     ledger.GameTournament,
		Room:         ledger.RoomPokerStars,
		DedupKey:     key,
	}
}

func TestMemoryStore_InsertIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	owner := uuid.New()

	n, err := s.Insert(ctx, []*ledger.Record{memRecord(owner, "a", 1, ledger.MovementBuyIn)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Insert(ctx, []*ledger.Record{
		memRecord(owner, "b", 2, ledger.MovementBuyIn),
		memRecord(owner, "a", 3, ledger.MovementBuyIn),
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Len(t, s.Records(), 1)

	_, err = s.Insert(ctx, []*ledger.Record{
		memRecord(owner, "c", 2, ledger.MovementBuyIn),
		memRecord(owner, "c", 3, ledger.MovementBuyIn),
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	// same key, other owner
	_, err = s.Insert(ctx, []*ledger.Record{memRecord(uuid.New(), "a", 1, ledger.MovementBuyIn)})
	assert.NoError(t, err)
}

func TestMemoryStore_Keys(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	owner := uuid.New()
	_, err := s.Insert(ctx, []*ledger.Record{
		memRecord(owner, "a", 1, ledger.MovementBuyIn),
		memRecord(owner, "b", 1, ledger.MovementWinnings),
	})
	require.NoError(t, err)

	keys, err := s.ExistingKeys(ctx, owner)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	ok, err := s.Exists(ctx, owner, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = s.Exists(ctx, uuid.New(), "b")
	assert.False(t, ok)
}

func TestMemoryStore_FindByFilterAndUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	owner := uuid.New()

	later := memRecord(owner, "k2", 5, ledger.MovementBounty)
	earlier := memRecord(owner, "k1", 2, ledger.MovementWinnings)
	buyIn := memRecord(owner, "k0", 1, ledger.MovementBuyIn)
	tier := ledger.TierLow
	buyIn.BuyinTier = &tier
	_, err := s.Insert(ctx, []*ledger.Record{later, earlier, buyIn})
	require.NoError(t, err)

	got, err := s.FindByFilter(ctx, owner, Filter{
		MovementTypes: []ledger.MovementType{ledger.MovementBounty, ledger.MovementWinnings},
		UntieredOnly:  true,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, earlier.ID, got[0].ID)
	assert.Equal(t, later.ID, got[1].ID)

	// results are copies
	got[0].Description = "changed"
	again, _ := s.FindByFilter(ctx, owner, Filter{})
	for _, r := range again {
		assert.NotEqual(t, "changed", r.Description)
	}

	plo := ledger.GamePLO
	require.NoError(t, s.Update(ctx, later.ID, Patch{BuyinTier: &tier, GameType: &plo}))
	got, _ = s.FindByFilter(ctx, owner, Filter{GameType: &plo})
	require.Len(t, got, 1)
	require.NotNil(t, got[0].BuyinTier)
	assert.Equal(t, ledger.TierLow, *got[0].BuyinTier)

	assert.ErrorIs(t, s.Update(ctx, uuid.New(), Patch{GameType: &plo}), ErrNotFound)
	assert.NoError(t, s.Update(ctx, uuid.New(), Patch{}))
}

func TestMemoryStore_DeleteBy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	owner, other := uuid.New(), uuid.New()

	wpt := memRecord(owner, "w", 1, ledger.MovementBuyIn)
	wpt.Room = ledger.RoomWPTGlobal
	_, err := s.Insert(ctx, []*ledger.Record{
		wpt,
		memRecord(owner, "p", 1, ledger.MovementBuyIn),
		memRecord(other, "p", 1, ledger.MovementBuyIn),
	})
	require.NoError(t, err)

	room := ledger.RoomWPTGlobal
	n, err := s.DeleteBy(ctx, owner, &room)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// the deleted key can be imported again
	_, err = s.Insert(ctx, []*ledger.Record{wpt})
	require.NoError(t, err)

	n, err = s.DeleteBy(ctx, owner, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	owners, err := s.ListOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{other}, owners)
}
