// Package category manages the category tree transactions are classified
// into.
package category

import (
	"errors"

	"github.com/google/uuid"
)

// ErrCycle is returned when a parent change would make a category its own
// ancestor.
var ErrCycle = errors.New("parent change would create a cycle")

// ErrUnknownParent is returned when a parent id does not exist.
var ErrUnknownParent = errors.New("parent category does not exist")

// Category is one node of the category tree.
type Category struct {
	ID       uuid.UUID
	Name     string
	ParentID *uuid.UUID
}

// DefaultNames are the root categories every installation gets. Seeding is
// explicit and idempotent, see Repository.EnsureDefaults.
var DefaultNames = []string{
	"Income",
	"Dining",
	"Groceries",
	"Transport",
	"Housing",
	"Utilities",
	"Entertainment",
	"Health",
	"Travel",
	"Fees",
	"Transfers",
	"Miscellaneous",
}

// ValidateParent checks that attaching child under newParent keeps the
// tree acyclic. categories must contain the full current tree. A nil
// newParent (detach to root) is always valid.
func ValidateParent(categories []Category, child uuid.UUID, newParent *uuid.UUID) error {
	if newParent == nil {
		return nil
	}
	if *newParent == child {
		return ErrCycle
	}

	parents := make(map[uuid.UUID]*uuid.UUID, len(categories))
	for _, c := range categories {
		parents[c.ID] = c.ParentID
	}
	if _, ok := parents[*newParent]; !ok {
		return ErrUnknownParent
	}

	// Walk up from the proposed parent; hitting the child means the child
	// is an ancestor of its own new parent. The visited set guards against
	// pre-existing cycles in stored data.
	visited := make(map[uuid.UUID]struct{})
	cur := newParent
	for cur != nil {
		if *cur == child {
			return ErrCycle
		}
		if _, seen := visited[*cur]; seen {
			return ErrCycle
		}
		visited[*cur] = struct{}{}
		cur = parents[*cur]
	}
	return nil
}
