package categorization

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/poker-ledger/internal/domain/ledger"
)

func TestDefaultRules(t *testing.T) {
	rs, err := DefaultRules()
	require.NoError(t, err)

	assert.NotEmpty(t, rs.Movements)
	assert.NotEmpty(t, rs.Actions)
	assert.Contains(t, rs.TournamentIndicators, "gtd")
	assert.Equal(t, string(ledger.GameStudHiLo), rs.GameTypes[0].Value)
	assert.Equal(t, string(ledger.GameTournament), rs.GameTypes[len(rs.GameTypes)-1].Value)
	assert.Equal(t, string(ledger.GameCash), rs.DefaultGameType)
}

func TestParseRules_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown category": `
movements: [{value: Buy In, labels: [buy in]}]
categories: [{value: Poker, labels: [poker]}]
game_types: [{value: NLH, any: [nlh]}]
`,
		"unknown game type": `
movements: [{value: Buy In, labels: [buy in]}]
game_types: [{value: Razz, any: [razz]}]
`,
		"game type without keywords": `
movements: [{value: Buy In, labels: [buy in]}]
game_types: [{value: NLH}]
`,
		"no game types": `
movements: [{value: Buy In, labels: [buy in]}]
`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidRules)
		})
	}

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := ParseRules([]byte("movements: [unclosed"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidRules)
	})
}

func TestLoadRules_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := `
movements:
  - value: Buy In
    labels: [entry]
game_types:
  - value: PLO
    any: [omaha]
default_game_type: Tournament
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	rs, err := LoadRules(path)
	require.NoError(t, err)

	c, err := New(rs, TierScheme{})
	require.NoError(t, err)
	assert.Equal(t, ledger.MovementBuyIn, c.Movement("ENTRY"))
	assert.Equal(t, ledger.GamePLO, c.GameType("Omaha Sunday"))
	assert.Equal(t, ledger.GameTournament, c.GameType("Sunday"))
	assert.Equal(t, "standard", c.TierScheme().Name())

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
