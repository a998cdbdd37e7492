package categorization

import (
	"errors"
	"fmt"
	"strings"

	"github.com/FACorreiaa/poker-ledger/internal/domain/ledger"
)

// ErrUnknownTierScheme is returned by ParseTierScheme for unsupported names.
var ErrUnknownTierScheme = errors.New("unknown tier scheme")

type tierBound struct {
	limitCents int64
	inclusive  bool
	tier       ledger.BuyinTier
}

// TierScheme buckets an absolute buy-in amount into an ordinal tier. One scheme is
// used per deployment.
type TierScheme struct {
	name   string
	bounds []tierBound
	top    ledger.BuyinTier
}

// StandardTiers: <5 Micro, <25 Low, <100 Medium, else High.
var StandardTiers = TierScheme{
	name: "standard",
	bounds: []tierBound{
		{limitCents: 500, tier: ledger.TierMicro},
		{limitCents: 2500, tier: ledger.TierLow},
		{limitCents: 10000, tier: ledger.TierMedium},
	},
	top: ledger.TierHigh,
}

// ExtendedTiers: ≤5 Micro, ≤20 Low, ≤100 Medium, ≤500 High, else Very High.
var ExtendedTiers = TierScheme{
	name: "extended",
	bounds: []tierBound{
		{limitCents: 500, inclusive: true, tier: ledger.TierMicro},
		{limitCents: 2000, inclusive: true, tier: ledger.TierLow},
		{limitCents: 10000, inclusive: true, tier: ledger.TierMedium},
		{limitCents: 50000, inclusive: true, tier: ledger.TierHigh},
	},
	top: ledger.TierVeryHigh,
}

// ParseTierScheme resolves a scheme by name. An empty name selects the standard
// scheme.
func ParseTierScheme(name string) (TierScheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StandardTiers.name:
		return StandardTiers, nil
	case ExtendedTiers.name:
		return ExtendedTiers, nil
	default:
		return TierScheme{}, fmt.Errorf("%w: %q", ErrUnknownTierScheme, name)
	}
}

// Name returns the configuration name of the scheme.
func (s TierScheme) Name() string { return s.name }

// Tier classifies the absolute value of amountCents.
func (s TierScheme) Tier(amountCents int64) ledger.BuyinTier {
	if amountCents < 0 {
		amountCents = -amountCents
	}
	for _, b := range s.bounds {
		if amountCents < b.limitCents || (b.inclusive && amountCents == b.limitCents) {
			return b.tier
		}
	}
	return s.top
}
