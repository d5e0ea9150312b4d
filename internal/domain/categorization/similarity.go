package categorization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	// similarityTopN caps how many history entries vote.
	similarityTopN = 10
	// similarityMinCandidates is the minimum candidate pool for a vote to
	// be meaningful.
	similarityMinCandidates = 3
	// similarityMinVotes is the minimum lead a category needs.
	similarityMinVotes = 2
	// similarityMaxConfidence caps the tier below rule-tier certainty.
	similarityMaxConfidence = 0.95
	// minTokenLen drops short stopword-like tokens ("at", "of", numbers).
	minTokenLen = 3
)

type scoredEntry struct {
	entry HistoryEntry
	score int
}

// similarityVote scores ledger history by shared description tokens and
// lets the top candidates vote on a category. Falls through (ok=false)
// when the candidate pool is too small or no category leads clearly.
func similarityVote(name string, history []HistoryEntry) (Result, bool) {
	tokens := tokenize(name)
	if len(tokens) == 0 || len(history) == 0 {
		return Result{}, false
	}

	var candidates []scoredEntry
	for _, h := range history {
		if h.CategoryID == nil {
			continue
		}
		// Identical descriptions are self-matches from a prior import of
		// the same statement; they would let a transaction vote for itself.
		if strings.EqualFold(h.Name, name) {
			continue
		}
		score := sharedTokens(tokens, h.Name)
		if score == 0 {
			continue
		}
		candidates = append(candidates, scoredEntry{entry: h, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > similarityTopN {
		candidates = candidates[:similarityTopN]
	}
	if len(candidates) < similarityMinCandidates {
		return Result{}, false
	}

	votes := make(map[uuid.UUID]int)
	for _, c := range candidates {
		votes[*c.entry.CategoryID]++
	}

	// Candidates are ordered by score, so scanning them (not the vote map)
	// breaks ties toward the category backed by the strongest candidate and
	// keeps the outcome stable across runs.
	var leader uuid.UUID
	leaderVotes := 0
	for _, c := range candidates {
		id := *c.entry.CategoryID
		if votes[id] > leaderVotes {
			leader = id
			leaderVotes = votes[id]
		}
	}
	if leaderVotes < similarityMinVotes {
		return Result{}, false
	}

	confidence := 0.6 + 0.1*float64(leaderVotes)
	if confidence > similarityMaxConfidence {
		confidence = similarityMaxConfidence
	}

	categoryID := leader
	return Result{
		CategoryID: &categoryID,
		Confidence: confidence,
		Source:     SourceSimilarity,
		Explanation: []string{fmt.Sprintf("%d of %d similar prior transactions share this category",
			leaderVotes, len(candidates))},
	}, true
}

// tokenize lowercases and splits a description, keeping word tokens longer
// than two characters.
func tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len(w) >= minTokenLen {
			tokens[w] = struct{}{}
		}
	}
	return tokens
}

func sharedTokens(tokens map[string]struct{}, other string) int {
	n := 0
	for w := range tokenize(other) {
		if _, ok := tokens[w]; ok {
			n++
		}
	}
	return n
}
