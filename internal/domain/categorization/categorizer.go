// Package categorization derives category, movement type, game type and buy-in tier
// for imported transactions from ordered, data-driven rule lists.
package categorization

import (
	"strings"

	"github.com/FACorreiaa/poker-ledger/internal/domain/ledger"
)

// Input is what the categorizer sees of one parsed row.
type Input struct {
	Label         string // payment method or action label
	CategoryLabel string // optional, when the source carries its own category column
	Description   string
	AmountCents   int64
}

// Classification is the categorizer output.
type Classification struct {
	Category     ledger.Category
	MovementType ledger.MovementType
	GameType     ledger.GameType
	BuyinTier    *ledger.BuyinTier
}

// Categorizer is safe for concurrent use once built.
type Categorizer struct {
	movements   map[string]string
	categories  map[string]string
	actions     *Engine
	indicators  *Engine
	games       *Engine
	defaultGame ledger.GameType
	tiers       TierScheme
}

// New compiles rs. A zero TierScheme selects StandardTiers.
func New(rs *RuleSet, tiers TierScheme) (*Categorizer, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	if tiers.name == "" {
		tiers = StandardTiers
	}

	actions := make([]Rule, len(rs.Actions))
	for i, r := range rs.Actions {
		actions[i] = Rule{Value: r.Value, Any: normalizeAll(r.Any), All: normalizeAll(r.All)}
	}

	defaultGame := ledger.GameCash
	if rs.DefaultGameType != "" {
		defaultGame = ledger.GameType(rs.DefaultGameType)
	}

	return &Categorizer{
		movements:   labelTable(rs.Movements),
		categories:  labelTable(rs.Categories),
		actions:     NewEngine(actions),
		indicators:  NewEngine([]Rule{{Value: "tournament", Any: rs.TournamentIndicators}}),
		games:       NewEngine(rs.GameTypes),
		defaultGame: defaultGame,
		tiers:       tiers,
	}, nil
}

// NewDefault builds a categorizer from the embedded rules.
func NewDefault(tiers TierScheme) (*Categorizer, error) {
	rs, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	return New(rs, tiers)
}

func normalizeAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		out = append(out, NormalizeLabel(kw))
	}
	return out
}

// Classify applies the precedence chain. Later steps override earlier ones:
//
//  1. label to movement type (exact table, then action keywords, else raw label)
//  2. category label to category (falls back to the movement label), default Other
//  3. cash movements force Cash
//  4. Payout forces Withdrawal
//  5. tournament movements with a tournament indicator in the description force Tournament
//  6. game type from the description, independent of the category
//
// The tier is set only for Tournament Buy In rows.
func (c *Categorizer) Classify(in Input) Classification {
	var out Classification

	out.MovementType = c.Movement(in.Label)

	categoryLabel := in.CategoryLabel
	if strings.TrimSpace(categoryLabel) == "" {
		categoryLabel = in.Label
	}
	out.Category = c.category(categoryLabel)

	switch {
	case out.MovementType.In(ledger.CashMovements):
		out.Category = ledger.CategoryCash
	case out.MovementType == ledger.MovementPayout:
		out.Category = ledger.CategoryWithdrawal
	}

	if out.MovementType.In(ledger.TournamentMovements) && c.indicators.Contains(in.Description) {
		out.Category = ledger.CategoryTournament
	}

	out.GameType = c.GameType(in.Description)

	if out.Category == ledger.CategoryTournament && out.MovementType == ledger.MovementBuyIn {
		tier := c.tiers.Tier(in.AmountCents)
		out.BuyinTier = &tier
	}
	return out
}

// Movement maps a raw payment-method or action label to a movement type. Unmapped
// labels pass through trimmed; empty labels become Other.
func (c *Categorizer) Movement(label string) ledger.MovementType {
	key := NormalizeLabel(label)
	if key == "" {
		return ledger.MovementOther
	}
	if m, ok := c.movements[key]; ok {
		return ledger.MovementType(m)
	}
	if m, ok := c.actions.MatchValue(key); ok {
		return ledger.MovementType(m)
	}
	return ledger.MovementType(strings.TrimSpace(label))
}

func (c *Categorizer) category(label string) ledger.Category {
	if cat, ok := c.categories[NormalizeLabel(label)]; ok {
		return ledger.Category(cat)
	}
	return ledger.CategoryOther
}

// GameType derives the game variant from a description.
func (c *Categorizer) GameType(description string) ledger.GameType {
	if g, ok := c.games.MatchValue(description); ok {
		return ledger.GameType(g)
	}
	return c.defaultGame
}

// Tier classifies amountCents with the configured scheme.
func (c *Categorizer) Tier(amountCents int64) ledger.BuyinTier {
	return c.tiers.Tier(amountCents)
}

// TierScheme returns the configured scheme.
func (c *Categorizer) TierScheme() TierScheme { return c.tiers }
