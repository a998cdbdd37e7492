package categorization

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/FACorreiaa/poker-ledger/internal/domain/ledger"
)

//go:embed rules.yaml
var defaultRules []byte

// ErrInvalidRules is returned when a rule set references values outside the ledger
// vocabulary or misses a required section.
var ErrInvalidRules = errors.New("invalid categorization rules")

// LabelGroup maps a set of source labels to one canonical value.
type LabelGroup struct {
	Value  string   `yaml:"value"`
	Labels []string `yaml:"labels"`
}

// RuleSet is the immutable classification data loaded at startup.
type RuleSet struct {
	Movements            []LabelGroup `yaml:"movements"`
	Actions              []Rule       `yaml:"actions"`
	Categories           []LabelGroup `yaml:"categories"`
	TournamentIndicators []string     `yaml:"tournament_indicators"`
	GameTypes            []Rule       `yaml:"game_types"`
	DefaultGameType      string       `yaml:"default_game_type"`
}

// DefaultRules returns the embedded rule set.
func DefaultRules() (*RuleSet, error) {
	return ParseRules(defaultRules)
}

// LoadRules reads a rule set from path, or the embedded one when path is empty.
func LoadRules(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule set.
func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Validate checks that every category and game type named by the rule set belongs
// to the closed ledger vocabulary.
func (rs *RuleSet) Validate() error {
	if len(rs.GameTypes) == 0 {
		return fmt.Errorf("%w: no game_types", ErrInvalidRules)
	}
	if len(rs.Movements) == 0 {
		return fmt.Errorf("%w: no movements", ErrInvalidRules)
	}
	for _, g := range rs.Categories {
		if !validCategory(ledger.Category(g.Value)) {
			return fmt.Errorf("%w: unknown category %q", ErrInvalidRules, g.Value)
		}
	}
	for _, r := range rs.GameTypes {
		if !validGameType(ledger.GameType(r.Value)) {
			return fmt.Errorf("%w: unknown game type %q", ErrInvalidRules, r.Value)
		}
		if len(r.Any) == 0 && len(r.All) == 0 {
			return fmt.Errorf("%w: game type %q has no keywords", ErrInvalidRules, r.Value)
		}
	}
	if rs.DefaultGameType != "" && !validGameType(ledger.GameType(rs.DefaultGameType)) {
		return fmt.Errorf("%w: unknown default game type %q", ErrInvalidRules, rs.DefaultGameType)
	}
	for _, g := range rs.Movements {
		if strings.TrimSpace(g.Value) == "" {
			return fmt.Errorf("%w: empty movement value", ErrInvalidRules)
		}
	}
	return nil
}

func validCategory(c ledger.Category) bool {
	for _, known := range ledger.Categories {
		if c == known {
			return true
		}
	}
	return false
}

func validGameType(g ledger.GameType) bool {
	switch g {
	case ledger.GameNLH, ledger.GamePLO, ledger.GamePLO8, ledger.GamePLOHiLo, ledger.Game5CPLO8,
		ledger.GameStud, ledger.GameStudHiLo, ledger.GameNLO8, ledger.GamePLCourchevelHiLo,
		ledger.GameSitAndGo, ledger.GameTournament, ledger.GameCash:
		return true
	}
	return false
}

var labelReplacer = strings.NewReplacer("-", " ", "_", " ")

// NormalizeLabel folds a source label for table lookups: lower case, accents
// removed, hyphens and underscores as spaces, whitespace collapsed.
func NormalizeLabel(label string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, label)
	if err != nil {
		folded = label
	}
	folded = labelReplacer.Replace(strings.ToLower(folded))
	return strings.Join(strings.Fields(folded), " ")
}

func labelTable(groups []LabelGroup) map[string]string {
	table := make(map[string]string)
	for _, g := range groups {
		table[NormalizeLabel(g.Value)] = g.Value
		for _, l := range g.Labels {
			table[NormalizeLabel(l)] = g.Value
		}
	}
	return table
}
