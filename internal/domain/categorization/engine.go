package categorization

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// Input is the transaction view the engine categorizes.
type Input struct {
	Name         string
	MerchantName *string
}

// Engine evaluates the rule tier and the similarity tier. Substring rules
// are additionally indexed in an Aho-Corasick matcher so one pass over the
// description finds every substring candidate regardless of rule count;
// winner selection still follows rule order, so first-match-wins semantics
// are unchanged.
type Engine struct {
	mu sync.RWMutex

	// rules sorted by priority descending, declaration order on ties
	rules []CategoryRule

	// substring index per match field
	nameMatcher     *ahocorasick.Matcher
	nameRuleIdx     [][]int // matcher pattern position -> rule indices
	merchantMatcher *ahocorasick.Matcher
	merchantRuleIdx [][]int
}

// NewEngine creates an engine from the given rule set.
func NewEngine(rules []CategoryRule) *Engine {
	e := &Engine{}
	e.Build(rules)
	return e
}

// Build replaces the engine's rule set. Disabled rules are dropped here so
// the match path never re-checks the flag. Safe to call while Categorize
// runs on other goroutines.
func (e *Engine) Build(rules []CategoryRule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	enabled := make([]CategoryRule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled && r.MatchPattern != "" {
			r.MatchPattern = strings.ToLower(r.MatchPattern)
			enabled = append(enabled, r)
		}
	}

	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority > enabled[j].Priority
	})
	e.rules = enabled

	e.nameMatcher, e.nameRuleIdx = buildSubstringIndex(enabled, FieldName)
	e.merchantMatcher, e.merchantRuleIdx = buildSubstringIndex(enabled, FieldMerchantName)
}

// buildSubstringIndex groups duplicate patterns so each matcher position
// maps to every rule sharing that pattern.
func buildSubstringIndex(rules []CategoryRule, field MatchField) (*ahocorasick.Matcher, [][]int) {
	patternToPos := make(map[string]int)
	var patterns [][]byte
	var ruleIdx [][]int

	for i, r := range rules {
		if r.MatchType != MatchSubstring || r.MatchField != field {
			continue
		}
		if pos, ok := patternToPos[r.MatchPattern]; ok {
			ruleIdx[pos] = append(ruleIdx[pos], i)
			continue
		}
		patternToPos[r.MatchPattern] = len(patterns)
		patterns = append(patterns, []byte(r.MatchPattern))
		ruleIdx = append(ruleIdx, []int{i})
	}

	if len(patterns) == 0 {
		return nil, nil
	}
	return ahocorasick.NewMatcher(patterns), ruleIdx
}

// RuleCount returns the number of enabled rules loaded.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Categorize runs the tiers in order and always returns a result; the
// manual tier terminates every path.
func (e *Engine) Categorize(in Input, history []HistoryEntry) Result {
	if res, ok := e.matchRule(in); ok {
		return res
	}
	if res, ok := similarityVote(in.Name, history); ok {
		return res
	}
	return Result{
		CategoryID:  nil,
		Confidence:  0,
		Source:      SourceManual,
		Explanation: []string{"no rule matched and similarity voting was inconclusive"},
	}
}

// matchRule evaluates the rule tier: first rule to match, in priority
// order, wins with confidence 1.0.
func (e *Engine) matchRule(in Input) (Result, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.rules) == 0 {
		return Result{}, false
	}

	nameCandidates := substringCandidates(e.nameMatcher, e.nameRuleIdx, in.Name)
	var merchantCandidates map[int]struct{}
	if in.MerchantName != nil {
		merchantCandidates = substringCandidates(e.merchantMatcher, e.merchantRuleIdx, *in.MerchantName)
	}

	for i, r := range e.rules {
		var matched bool
		switch r.MatchType {
		case MatchSubstring:
			if r.MatchField == FieldName {
				_, matched = nameCandidates[i]
			} else {
				_, matched = merchantCandidates[i]
			}
		default:
			value, ok := fieldValue(in, r.MatchField)
			matched = ok && r.MatchType.Matches(value, r.MatchPattern)
		}
		if !matched {
			continue
		}

		categoryID := r.CategoryID
		return Result{
			CategoryID: &categoryID,
			Confidence: 1.0,
			Source:     SourceRule,
			Explanation: []string{fmt.Sprintf("rule %s: %s %s %q (priority %d)",
				r.ID, r.MatchField, r.MatchType, r.MatchPattern, r.Priority)},
		}, true
	}

	return Result{}, false
}

func substringCandidates(matcher *ahocorasick.Matcher, ruleIdx [][]int, value string) map[int]struct{} {
	if matcher == nil || value == "" {
		return nil
	}

	hits := matcher.Match([]byte(strings.ToLower(value)))
	if len(hits) == 0 {
		return nil
	}

	candidates := make(map[int]struct{}, len(hits))
	for _, pos := range hits {
		if pos < 0 || pos >= len(ruleIdx) {
			continue
		}
		for _, i := range ruleIdx[pos] {
			candidates[i] = struct{}{}
		}
	}
	return candidates
}

func fieldValue(in Input, field MatchField) (string, bool) {
	if field == FieldMerchantName {
		if in.MerchantName == nil {
			return "", false
		}
		return *in.MerchantName, true
	}
	return in.Name, true
}
