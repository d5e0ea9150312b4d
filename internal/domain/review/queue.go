// Package review holds transactions the pipeline could not import or
// categorize safely, plus the lookup tools an operator uses to resolve
// them.
package review

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/statement-importer/internal/domain/categorization"
)

// Item is one entry awaiting operator review.
type Item struct {
	Document string
	Line     string
	Reason   string
	AddedAt  time.Time
}

// RuleHint points the operator at an existing rule pattern that nearly
// matches the line under review, usually a typo or merchant variation away.
type RuleHint struct {
	Pattern  string
	Distance int // Levenshtein distance, lower is closer
}

// Queue is the in-memory needs-review set for one import run.
type Queue struct {
	mu    sync.Mutex
	items []Item
}

// NewQueue creates an empty review queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Add appends an item to the queue.
func (q *Queue) Add(document, line, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, Item{
		Document: document,
		Line:     line,
		Reason:   reason,
		AddedAt:  time.Now(),
	})
}

// Items returns a copy of the queued items.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// maxHintDistance bounds how far a pattern may be from the description and
// still count as a near miss.
const maxHintDistance = 5

// RuleHints ranks existing rule patterns by fuzzy closeness to the given
// description. Only substring and prefix patterns are useful hints; exact
// patterns either matched already or never will.
func RuleHints(description string, rules []categorization.CategoryRule, limit int) []RuleHint {
	if limit <= 0 {
		limit = 5
	}

	desc := strings.ToLower(description)
	var hints []RuleHint
	seen := make(map[string]struct{})

	for _, r := range rules {
		if r.MatchType == categorization.MatchExact {
			continue
		}
		pattern := strings.ToLower(r.MatchPattern)
		if _, dup := seen[pattern]; dup {
			continue
		}
		seen[pattern] = struct{}{}

		// A pattern already contained in the description would have
		// matched in the rule tier; anything here is by definition a miss.
		distance := fuzzy.LevenshteinDistance(pattern, desc)
		for _, word := range strings.Fields(desc) {
			if d := fuzzy.LevenshteinDistance(pattern, word); d < distance {
				distance = d
			}
		}
		if distance > maxHintDistance {
			continue
		}
		hints = append(hints, RuleHint{Pattern: pattern, Distance: distance})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return hints[i].Distance < hints[j].Distance
	})
	if len(hints) > limit {
		hints = hints[:limit]
	}
	return hints
}
