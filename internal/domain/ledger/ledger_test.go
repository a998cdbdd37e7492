package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignedCents(t *testing.T) {
	tests := []struct {
		name     string
		movement MovementType
		cents    int64
		want     int64
	}{
		{"buy in is negative", MovementBuyIn, 1000, -1000},
		{"already negative buy in stays negative", MovementBuyIn, -1000, -1000},
		{"fee is negative", MovementFee, 100, -100},
		{"payout is negative", MovementPayout, 5000, -5000},
		{"winnings is positive", MovementWinnings, 2500, 2500},
		{"bounty flips to positive", MovementBounty, -300, 300},
		{"unregister refund is positive", MovementUnregisterBuyIn, 1000, 1000},
		{"unknown label is positive", MovementType("Mystery"), 42, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SignedCents(tt.movement, tt.cents))
		})
	}
}

func TestMovementSets(t *testing.T) {
	assert.True(t, MovementTournamentRebuy.In(RelatedMovements))
	assert.False(t, MovementTournamentRebuy.In(TournamentMovements))
	assert.False(t, MovementBuyIn.In(RelatedMovements))
	assert.True(t, MovementMoneyAdded.In(CashMovements))
}

func TestGameType_IsGeneric(t *testing.T) {
	assert.True(t, GameTournament.IsGeneric())
	assert.True(t, GameCash.IsGeneric())
	assert.True(t, GameType("").IsGeneric())
	assert.False(t, GameNLH.IsGeneric())
	assert.False(t, GameSitAndGo.IsGeneric())
}
