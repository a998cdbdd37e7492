package categorization

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// Rule is one entry of an ordered keyword list. It is satisfied when any keyword in
// Any occurs in the text, or when every keyword in All occurs.
type Rule struct {
	Value string   `yaml:"value"`
	Any   []string `yaml:"any"`
	All   []string `yaml:"all"`
}

type compiledRule struct {
	value string
	any   []int // pattern indexes
	all   []int
}

// Engine matches a text against an ordered rule list in a single pass using the
// Aho-Corasick algorithm. The first satisfied rule wins, so earlier rules must be
// the more specific ones.
type Engine struct {
	matcher *ahocorasick.Matcher // nil when no keyword was given
	rules   []compiledRule
	mu      sync.Mutex // the matcher keeps per-call scratch state
}

// NewEngine compiles rules. Keywords are matched case-insensitively; empty keywords
// are ignored.
func NewEngine(rules []Rule) *Engine {
	patternToIndex := make(map[string]int)
	var patterns [][]byte

	indexOf := func(keyword string) (int, bool) {
		p := strings.ToLower(keyword)
		if p == "" {
			return 0, false
		}
		if idx, ok := patternToIndex[p]; ok {
			return idx, true
		}
		patternToIndex[p] = len(patterns)
		patterns = append(patterns, []byte(p))
		return len(patterns) - 1, true
	}

	e := &Engine{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		cr := compiledRule{value: r.Value}
		for _, kw := range r.Any {
			if idx, ok := indexOf(kw); ok {
				cr.any = append(cr.any, idx)
			}
		}
		seen := make(map[int]bool)
		for _, kw := range r.All {
			if idx, ok := indexOf(kw); ok && !seen[idx] {
				seen[idx] = true
				cr.all = append(cr.all, idx)
			}
		}
		e.rules = append(e.rules, cr)
	}

	if len(patterns) > 0 {
		e.matcher = ahocorasick.NewMatcher(patterns)
	}
	return e
}

// Match returns the index of the first satisfied rule, or -1 when none is.
func (e *Engine) Match(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.match(text)
}

func (e *Engine) match(text string) int {
	if e.matcher == nil {
		return -1
	}

	found := e.matcher.Match([]byte(strings.ToLower(text)))
	if len(found) == 0 {
		return -1
	}
	hit := make(map[int]bool, len(found))
	for _, idx := range found {
		hit[idx] = true
	}

	for i, r := range e.rules {
		for _, idx := range r.any {
			if hit[idx] {
				return i
			}
		}
		if len(r.all) == 0 {
			continue
		}
		satisfied := true
		for _, idx := range r.all {
			if !hit[idx] {
				satisfied = false
				break
			}
		}
		if satisfied {
			return i
		}
	}
	return -1
}

// MatchValue returns the value of the first satisfied rule.
func (e *Engine) MatchValue(text string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.match(text)
	if i < 0 {
		return "", false
	}
	return e.rules[i].value, true
}

// Contains reports whether any rule is satisfied by text.
func (e *Engine) Contains(text string) bool {
	return e.Match(text) >= 0
}
