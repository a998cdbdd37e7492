package ledger

// TournamentMovements are the movement types that count as tournament activity when
// the description carries a tournament indicator.
var TournamentMovements = []MovementType{
	MovementBuyIn,
	MovementWinnings,
	MovementBounty,
	MovementFee,
	MovementReentryFee,
	MovementReentryBuyIn,
	MovementUnregisterBuyIn,
	MovementUnregisterFee,
	MovementSitCrushJackpot,
}

// RelatedMovements are the movement types that inherit tier and game type from the
// Buy In record of the same tournament.
var RelatedMovements = []MovementType{
	MovementBounty,
	MovementWinnings,
	MovementSitCrushJackpot,
	MovementFee,
	MovementReentryFee,
	MovementReentryBuyIn,
	MovementUnregisterBuyIn,
	MovementUnregisterFee,
	MovementTournamentRebuy,
}

// CashMovements force the Cash category.
var CashMovements = []MovementType{MovementMoneyAdded, MovementMoneyOut, MovementMoneyIn}

var outflows = map[MovementType]bool{
	MovementBuyIn:           true,
	MovementReentryBuyIn:    true,
	MovementFee:             true,
	MovementReentryFee:      true,
	MovementTournamentRebuy: true,
	MovementWithdrawal:      true,
	MovementPayout:          true,
	MovementMoneyOut:        true,
}

var inflows = map[MovementType]bool{
	MovementWinnings:        true,
	MovementBounty:          true,
	MovementSitCrushJackpot: true,
	MovementDeposit:         true,
	MovementUnregisterBuyIn: true,
	MovementUnregisterFee:   true,
	MovementMoneyIn:         true,
	MovementMoneyAdded:      true,
}

// IsOutflow reports whether money leaves the account for this movement type.
func (m MovementType) IsOutflow() bool { return outflows[m] }

// IsInflow reports whether money enters the account for this movement type.
func (m MovementType) IsInflow() bool { return inflows[m] }

// In reports whether m is one of set.
func (m MovementType) In(set []MovementType) bool {
	for _, s := range set {
		if m == s {
			return true
		}
	}
	return false
}

// SignedCents applies the sign convention to an amount whose source carried no
// sign: outflows become negative, everything else is treated as an inflow.
func SignedCents(m MovementType, cents int64) int64 {
	if cents < 0 {
		cents = -cents
	}
	if m.IsOutflow() {
		return -cents
	}
	return cents
}
