// Package categorization assigns categories to parsed transactions through
// three ordered tiers: operator-defined rules, similarity voting over
// ledger history, and a manual fallback.
package categorization

import (
	"strings"

	"github.com/google/uuid"
)

// MatchField selects which transaction field a rule inspects.
type MatchField int

const (
	FieldName MatchField = iota
	FieldMerchantName
)

func (f MatchField) String() string {
	if f == FieldMerchantName {
		return "merchant_name"
	}
	return "name"
}

// ParseMatchField maps a stored field tag to its variant.
func ParseMatchField(s string) (MatchField, bool) {
	switch s {
	case "name":
		return FieldName, true
	case "merchant_name", "merchantName":
		return FieldMerchantName, true
	default:
		return FieldName, false
	}
}

// MatchType selects how a rule's pattern is compared.
type MatchType int

const (
	MatchExact MatchType = iota
	MatchPrefix
	MatchSubstring
)

func (t MatchType) String() string {
	switch t {
	case MatchPrefix:
		return "prefix"
	case MatchSubstring:
		return "substring"
	default:
		return "exact"
	}
}

// ParseMatchType maps a stored type tag to its variant.
func ParseMatchType(s string) (MatchType, bool) {
	switch s {
	case "exact":
		return MatchExact, true
	case "prefix":
		return MatchPrefix, true
	case "substring":
		return MatchSubstring, true
	default:
		return MatchExact, false
	}
}

// Matches applies the comparison for this variant. Pattern storage is
// lowercase by convention; the value is lowered here so callers never have
// to care.
func (t MatchType) Matches(value, pattern string) bool {
	value = strings.ToLower(value)
	switch t {
	case MatchExact:
		return value == pattern
	case MatchPrefix:
		return strings.HasPrefix(value, pattern)
	case MatchSubstring:
		return strings.Contains(value, pattern)
	default:
		return false
	}
}

// CategoryRule is an operator-defined categorization rule. Rules are owned
// by category administration and read-only here.
type CategoryRule struct {
	ID           uuid.UUID
	CategoryID   uuid.UUID
	MatchField   MatchField
	MatchType    MatchType
	MatchPattern string
	Priority     int
	Enabled      bool
}

// HistoryEntry is a prior ledger transaction feeding the similarity tier.
// AmountCents is signed as stored in the ledger.
type HistoryEntry struct {
	ID           uuid.UUID
	Name         string
	MerchantName *string
	AmountCents  int64
	CategoryID   *uuid.UUID
}

// Source identifies which tier produced a result.
type Source int

const (
	SourceRule Source = iota
	SourceSimilarity
	SourceManual
)

func (s Source) String() string {
	switch s {
	case SourceRule:
		return "rule"
	case SourceSimilarity:
		return "similarity"
	default:
		return "manual"
	}
}

// Result is the outcome of categorizing one transaction. A nil CategoryID
// with SourceManual is the expected "needs a human" outcome, not an error.
type Result struct {
	CategoryID  *uuid.UUID
	Confidence  float64
	Source      Source
	Explanation []string
}
