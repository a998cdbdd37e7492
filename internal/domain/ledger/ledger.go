// Package ledger holds the canonical vocabulary shared by the import pipeline:
// categories, movement types, game types, buy-in tiers and the stored record shape.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Category is the coarse transaction bucket.
type Category string

const (
	CategoryTournament Category = "Tournament"
	CategoryCash       Category = "Cash"
	CategoryBonus      Category = "Bonus"
	CategoryPoints     Category = "Points"
	CategoryDeposit    Category = "Deposit"
	CategoryTransfer   Category = "Transfer"
	CategoryWithdrawal Category = "Withdrawal"
	CategoryOther      Category = "Other"
)

// Categories lists the closed category set.
var Categories = []Category{
	CategoryTournament, CategoryCash, CategoryBonus, CategoryPoints,
	CategoryDeposit, CategoryTransfer, CategoryWithdrawal, CategoryOther,
}

// MovementType is the fine-grained transaction label. Unmapped source labels are
// carried verbatim, so the type is open.
type MovementType string

const (
	MovementBuyIn           MovementType = "Buy In"
	MovementReentryBuyIn    MovementType = "Reentry Buy In"
	MovementUnregisterBuyIn MovementType = "Unregister Buy In"
	MovementFee             MovementType = "Fee"
	MovementReentryFee      MovementType = "Reentry Fee"
	MovementUnregisterFee   MovementType = "Unregister Fee"
	MovementBounty          MovementType = "Bounty"
	MovementWinnings        MovementType = "Winnings"
	MovementSitCrushJackpot MovementType = "Sit & Crush Jackpot"
	MovementTournamentRebuy MovementType = "Tournament Rebuy"
	MovementDeposit         MovementType = "Deposit"
	MovementWithdrawal      MovementType = "Withdrawal"
	MovementTransfer        MovementType = "Transfer"
	MovementMoneyIn         MovementType = "Money In"
	MovementMoneyOut        MovementType = "Money Out"
	MovementMoneyAdded      MovementType = "Money Added"
	MovementPayout          MovementType = "Payout"
	MovementBonus           MovementType = "Bonus"
	MovementOther           MovementType = "Other"
)

// GameType is the game variant derived from the description.
type GameType string

const (
	GameNLH              GameType = "NLH"
	GamePLO              GameType = "PLO"
	GamePLO8             GameType = "PLO8"
	GamePLOHiLo          GameType = "PLO Hi/Lo"
	Game5CPLO8           GameType = "5C PLO8"
	GameStud             GameType = "Stud"
	GameStudHiLo         GameType = "Stud Hi/Lo"
	GameNLO8             GameType = "NLO8"
	GamePLCourchevelHiLo GameType = "PL Courchevel Hi/Lo"
	GameSitAndGo         GameType = "Sit & Go"
	GameTournament       GameType = "Tournament"
	GameCash             GameType = "Cash"
)

// IsGeneric reports whether g is one of the placeholder game types that carry no
// variant information.
func (g GameType) IsGeneric() bool {
	return g == GameTournament || g == GameCash || g == ""
}

// BuyinTier is the ordinal bucket of a tournament entry cost.
type BuyinTier string

const (
	TierMicro    BuyinTier = "Micro"
	TierLow      BuyinTier = "Low"
	TierMedium   BuyinTier = "Medium"
	TierHigh     BuyinTier = "High"
	TierVeryHigh BuyinTier = "Very High"
)

// Supported rooms.
const (
	RoomWPTGlobal  = "WPT Global"
	RoomPokerStars = "PokerStars"
)

// Record is one canonical ledger entry.
type Record struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	Date         time.Time  // calendar date, UTC midnight
	Time         *time.Time // time of day on 0000-01-01 UTC, nil when the source has none
	Description  string
	AmountCents  int64 // positive = inflow, negative = outflow
	Category     Category
	MovementType MovementType
	GameType     GameType
	BuyinTier    *BuyinTier
	Room         string
	DedupKey     string
	ImportedAt   time.Time
}

// Tiered reports whether the record already carries a buy-in tier.
func (r *Record) Tiered() bool {
	return r.BuyinTier != nil && *r.BuyinTier != ""
}
