package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrReferenced = errors.New("still referenced")
	ErrValidation = errors.New("invalid catalog")
)

// Problem is one validation failure, located by collection, entity id and field.
type Problem struct {
	Collection string
	ID         string
	Field      string
	Message    string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s[%s].%s: %s", p.Collection, p.ID, p.Field, p.Message)
}

// ValidationError lists every problem found. It matches ErrValidation.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.String()
	}
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(msgs, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validate checks what an editor must reject before a catalog reaches the
// synchronizer: blank ids or names, duplicate ids, blank ingredient ids and
// quantities below one. Dangling material references are allowed.
func Validate(c Catalog) error {
	if probs := problems(c); len(probs) > 0 {
		return &ValidationError{Problems: probs}
	}
	return nil
}

// ValidateAgainst validates edited against the catalog it was derived from.
// Problems already present in base are returned as inherited and do not fail
// the check; only problems the edit introduced are reported in err.
func ValidateAgainst(base, edited Catalog) (inherited []Problem, err error) {
	known := make(map[Problem]bool)
	for _, p := range problems(base) {
		known[p] = true
	}
	var introduced []Problem
	for _, p := range problems(edited) {
		if known[p] {
			inherited = append(inherited, p)
		} else {
			introduced = append(introduced, p)
		}
	}
	if len(introduced) > 0 {
		return inherited, &ValidationError{Problems: introduced}
	}
	return inherited, nil
}

func problems(c Catalog) []Problem {
	var probs []Problem
	add := func(coll, id, field, msg string) {
		probs = append(probs, Problem{Collection: coll, ID: id, Field: field, Message: msg})
	}
	items := func(coll, id, field string, list []RecipeItem) {
		for i, it := range list {
			f := fmt.Sprintf("%s[%d]", field, i)
			if strings.TrimSpace(it.MaterialID) == "" {
				add(coll, id, f, "material_id required")
			}
			if it.Quantity < 1 {
				add(coll, id, f, "quantity must be at least 1")
			}
		}
	}

	seen := make(map[string]bool, len(c.Materials))
	for _, m := range c.Materials {
		if strings.TrimSpace(m.ID) == "" {
			add("materials", m.ID, "id", "id required")
		} else if seen[m.ID] {
			add("materials", m.ID, "id", "duplicate id")
		}
		seen[m.ID] = true
		if strings.TrimSpace(m.Name) == "" {
			add("materials", m.ID, "name", "name required")
		}
		items("materials", m.ID, "recipe", m.Recipe)
	}

	seen = make(map[string]bool, len(c.Quests))
	for _, q := range c.Quests {
		if strings.TrimSpace(q.ID) == "" {
			add("quests", q.ID, "id", "id required")
		} else if seen[q.ID] {
			add("quests", q.ID, "id", "duplicate id")
		}
		seen[q.ID] = true
		if strings.TrimSpace(q.Name) == "" {
			add("quests", q.ID, "name", "name required")
		}
		items("quests", q.ID, "requirements", q.Requirements)
	}
	return probs
}

// Normalize trims ids, names and ingredient ids in place.
func Normalize(c *Catalog) {
	for i := range c.Materials {
		m := &c.Materials[i]
		m.ID = strings.TrimSpace(m.ID)
		m.Name = strings.TrimSpace(m.Name)
		for j := range m.Recipe {
			m.Recipe[j].MaterialID = strings.TrimSpace(m.Recipe[j].MaterialID)
		}
	}
	for i := range c.Quests {
		q := &c.Quests[i]
		q.ID = strings.TrimSpace(q.ID)
		q.Name = strings.TrimSpace(q.Name)
		for j := range q.Requirements {
			q.Requirements[j].MaterialID = strings.TrimSpace(q.Requirements[j].MaterialID)
		}
	}
}
