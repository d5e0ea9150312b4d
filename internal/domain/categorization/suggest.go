package categorization

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrUnknownCategory is returned when a suggestion names a category that
// does not exist.
var ErrUnknownCategory = errors.New("suggested category is not known")

// Suggestion is the output of an external category suggestion service.
type Suggestion struct {
	CategoryID   uuid.UUID
	MatchPattern string
	Recurring    bool
}

// Suggester is an optional last-resort collaborator, consulted only when
// both the rule and similarity tiers fall through and configuration allows
// it. Implementations live outside this repo.
type Suggester interface {
	Suggest(ctx context.Context, in Input) (*Suggestion, error)
}

// ValidateSuggestion checks an external suggestion against the known
// category set before it is trusted. A suggestion naming a nonexistent
// category or an empty pattern is rejected.
func ValidateSuggestion(s *Suggestion, knownCategories map[uuid.UUID]struct{}) error {
	if s == nil {
		return errors.New("nil suggestion")
	}
	if _, ok := knownCategories[s.CategoryID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, s.CategoryID)
	}
	if strings.TrimSpace(s.MatchPattern) == "" {
		return errors.New("suggestion has an empty match pattern")
	}
	return nil
}
