// Package catalog defines the shared materials/quests data model and the two
// collaborators that hold it: a JSON file store and an HTTP client for the
// collection API.
package catalog

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// ---------- Data model ----------

// RecipeItem is one ingredient of a recipe or one requirement of a quest.
type RecipeItem struct {
	MaterialID      string `json:"material_id"`
	Quantity        int    `json:"quantity"`
	ReserveRequired bool   `json:"reserve_required,omitempty"`
}

// Material is a base material when Recipe is empty.
type Material struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Recipe []RecipeItem `json:"recipe"`
}

type Quest struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Requirements []RecipeItem `json:"requirements"`
}

// Key returns the material id.
func (m Material) Key() string { return m.ID }

// Key returns the quest id.
func (q Quest) Key() string { return q.ID }

// IsBase reports whether the material cannot be decomposed further.
func (m Material) IsBase() bool { return len(m.Recipe) == 0 }

// Clone returns a copy that shares no slices with m. A nil Recipe stays nil.
func (m Material) Clone() Material {
	m.Recipe = slices.Clone(m.Recipe)
	return m
}

// Clone returns a copy that shares no slices with q.
func (q Quest) Clone() Quest {
	q.Requirements = slices.Clone(q.Requirements)
	return q
}

// Entity is a catalog record addressed by a unique key within its collection.
type Entity interface {
	Material | Quest
	Key() string
}

// Clone deep-copies any entity.
func Clone[T Entity](v T) T {
	switch e := any(v).(type) {
	case Material:
		return any(e.Clone()).(T)
	case Quest:
		return any(e.Clone()).(T)
	}
	return v
}

// Catalog is the pair of collections served by the remote data source.
type Catalog struct {
	Materials []Material `json:"materials"`
	Quests    []Quest    `json:"quests"`
}

// SortByKey returns a deep copy of items ordered by key. Editing the result
// never changes items.
func SortByKey[T Entity](items []T) []T {
	out := make([]T, len(items))
	for i, v := range items {
		out[i] = Clone(v)
	}
	slices.SortStableFunc(out, func(a, b T) int { return cmp.Compare(a.Key(), b.Key()) })
	return out
}

// Sorted returns a copy of c with both collections ordered by id.
func (c Catalog) Sorted() Catalog {
	return Catalog{
		Materials: SortByKey(c.Materials),
		Quests:    SortByKey(c.Quests),
	}
}

// Quest looks up a quest by id.
func (c Catalog) Quest(id string) (Quest, bool) {
	for _, q := range c.Quests {
		if q.ID == id {
			return q, true
		}
	}
	return Quest{}, false
}

// ---------- Listing helpers ----------

// Refs counts how often a material id is referenced.
type Refs struct {
	Recipes int `json:"recipes"`
	Quests  int `json:"quests"`
}

// Total is the number of references of any kind.
func (r Refs) Total() int { return r.Recipes + r.Quests }

// References counts, per material id, the recipe ingredients and quest
// requirements that point at it. Ids not present in the catalog are counted too.
func References(c Catalog) map[string]Refs {
	refs := make(map[string]Refs)
	for _, m := range c.Materials {
		for _, ing := range m.Recipe {
			r := refs[ing.MaterialID]
			r.Recipes++
			refs[ing.MaterialID] = r
		}
	}
	for _, q := range c.Quests {
		for _, req := range q.Requirements {
			r := refs[req.MaterialID]
			r.Quests++
			refs[req.MaterialID] = r
		}
	}
	return refs
}

// RemoveMaterial returns the catalog without material id. A material still
// referenced by any recipe or quest is not removed; the error wraps ErrReferenced.
func RemoveMaterial(c Catalog, id string) (Catalog, error) {
	if r := References(c)[id]; r.Total() > 0 {
		return c, fmt.Errorf("material %s: %w (recipes: %d, quests: %d)", id, ErrReferenced, r.Recipes, r.Quests)
	}
	idx := slices.IndexFunc(c.Materials, func(m Material) bool { return m.ID == id })
	if idx < 0 {
		return c, fmt.Errorf("material %s: %w", id, ErrNotFound)
	}
	out := Catalog{
		Materials: slices.Delete(slices.Clone(c.Materials), idx, idx+1),
		Quests:    c.Quests,
	}
	return out, nil
}

// RemoveQuest returns the catalog without quest id.
func RemoveQuest(c Catalog, id string) (Catalog, error) {
	idx := slices.IndexFunc(c.Quests, func(q Quest) bool { return q.ID == id })
	if idx < 0 {
		return c, fmt.Errorf("quest %s: %w", id, ErrNotFound)
	}
	out := Catalog{
		Materials: c.Materials,
		Quests:    slices.Delete(slices.Clone(c.Quests), idx, idx+1),
	}
	return out, nil
}

// Filter keeps the items whose id or name contains keyword, case-insensitively.
// A blank keyword keeps everything.
func Filter[T Entity](items []T, keyword string, name func(T) string) []T {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return items
	}
	var out []T
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Key()), kw) || strings.Contains(strings.ToLower(name(it)), kw) {
			out = append(out, it)
		}
	}
	return out
}

func FilterMaterials(items []Material, keyword string) []Material {
	return Filter(items, keyword, func(m Material) string { return m.Name })
}

func FilterQuests(items []Quest, keyword string) []Quest {
	return Filter(items, keyword, func(q Quest) string { return q.Name })
}

// Names indexes material names by id.
func Names(materials []Material) map[string]string {
	out := make(map[string]string, len(materials))
	for _, m := range materials {
		out[m.ID] = m.Name
	}
	return out
}

// Summary renders items as "Name xN, ...". Unknown ids are shown raw.
func Summary(items []RecipeItem, names map[string]string) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		label, ok := names[it.MaterialID]
		if !ok {
			label = it.MaterialID
		}
		part := fmt.Sprintf("%s x%d", label, it.Quantity)
		if it.ReserveRequired {
			part += " (+reserve)"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

// RecipeSummary is a one-line description of a material's recipe.
func RecipeSummary(m Material, names map[string]string) string {
	if m.IsBase() {
		return "base material"
	}
	return Summary(m.Recipe, names)
}
