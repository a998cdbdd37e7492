package categorization

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Match(t *testing.T) {
	engine := NewEngine([]Rule{
		{Value: "PLO8", Any: []string{"plo8", "omaha 8"}},
		{Value: "PLO", Any: []string{"plo"}},
		{Value: "Sit & Go", All: []string{"sit", "go"}},
	})

	t.Run("first rule wins when several apply", func(t *testing.T) {
		v, ok := engine.MatchValue("$5 PLO8 Turbo")
		require.True(t, ok)
		assert.Equal(t, "PLO8", v)
	})

	t.Run("later rule when earlier ones miss", func(t *testing.T) {
		v, ok := engine.MatchValue("Big PLO Freezeout")
		require.True(t, ok)
		assert.Equal(t, "PLO", v)
	})

	t.Run("all keywords required", func(t *testing.T) {
		_, ok := engine.MatchValue("sit out")
		assert.False(t, ok)

		v, ok := engine.MatchValue("Sit & Go 6-max")
		require.True(t, ok)
		assert.Equal(t, "Sit & Go", v)
	})

	t.Run("case insensitive matching", func(t *testing.T) {
		assert.Equal(t, 1, engine.Match("plo"))
		assert.Equal(t, 1, engine.Match("PlO"))
	})

	t.Run("returns -1 for no match", func(t *testing.T) {
		assert.Equal(t, -1, engine.Match("random text"))
		assert.False(t, engine.Contains(""))
	})
}

func TestEngine_SharedKeywords(t *testing.T) {
	engine := NewEngine([]Rule{
		{Value: "a", All: []string{"fee", "unregist"}},
		{Value: "b", Any: []string{"fee"}},
	})

	assert.Equal(t, engine.rules[0].all[0], engine.rules[1].any[0])
	v, _ := engine.MatchValue("unregistered fee")
	assert.Equal(t, "a", v)
	v, _ = engine.MatchValue("tournament fee")
	assert.Equal(t, "b", v)
}

func TestEngine_Empty(t *testing.T) {
	for name, rules := range map[string][]Rule{
		"no rules":       nil,
		"empty keywords": {{Value: "x", Any: []string{""}, All: []string{""}}},
	} {
		t.Run(name, func(t *testing.T) {
			engine := NewEngine(rules)
			assert.Nil(t, engine.matcher)
			assert.Equal(t, -1, engine.Match("anything"))
			assert.False(t, engine.Contains(""))
		})
	}
}

func BenchmarkEngine_Match(b *testing.B) {
	rs, err := DefaultRules()
	require.NoError(b, err)
	engine := NewEngine(rs.GameTypes)
	descriptions := make([]string, 100)
	for i := range descriptions {
		descriptions[i] = fmt.Sprintf("%d $%d PLO Hi/Lo Turbo Bounty", 100000+i, i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Match(descriptions[i%len(descriptions)])
	}
}
