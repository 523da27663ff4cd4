// Package overlay keeps a user's local edits as a structural diff against a
// shared base catalog, so the edits survive without write access to the base
// and can be re-applied when the base is fetched again.
package overlay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/poku-e/craftbom/internal/catalog"
)

// EntityOverlay is the diff of one collection. Added ids are absent from the
// base; Updated and Deleted ids are present in it.
type EntityOverlay[T catalog.Entity] struct {
	Added   []T          `json:"added"`
	Updated map[string]T `json:"updated"`
	Deleted []string     `json:"deleted"`
}

func newEntityOverlay[T catalog.Entity]() EntityOverlay[T] {
	return EntityOverlay[T]{Added: []T{}, Updated: map[string]T{}, Deleted: []string{}}
}

// Empty reports whether the collection has no changes.
func (o EntityOverlay[T]) Empty() bool {
	return len(o.Added) == 0 && len(o.Updated) == 0 && len(o.Deleted) == 0
}

// UserOverlay is the persisted blob. BaseSignature is the Fingerprint of the
// base the diff was computed against.
type UserOverlay struct {
	BaseSignature string                          `json:"baseSignature"`
	SavedAt       time.Time                       `json:"savedAt"`
	Materials     EntityOverlay[catalog.Material] `json:"materials"`
	Quests        EntityOverlay[catalog.Quest]    `json:"quests"`
}

// Empty reports whether the overlay changes nothing.
func (o *UserOverlay) Empty() bool {
	return o == nil || (o.Materials.Empty() && o.Quests.Empty())
}

// Fingerprint hashes the catalog with both collections sorted by id, so
// element order never affects the result. FNV-1a 32 is enough for drift
// detection; it is not an integrity check.
func Fingerprint(c catalog.Catalog) string {
	data, err := json.Marshal(c.Sorted())
	if err != nil {
		// Catalog holds only strings, ints, bools and slices.
		panic(fmt.Sprintf("overlay: marshal catalog: %v", err))
	}
	h := fnv.New32a()
	_, _ = h.Write(data)
	return fmt.Sprintf("%08x", h.Sum32())
}

func content[T catalog.Entity](v T) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("overlay: marshal entity: %v", err))
	}
	return b
}

// diffEntities classifies each id in one pass. Duplicate ids in effective are
// not expected; the last occurrence wins.
func diffEntities[T catalog.Entity](base, effective []T) EntityOverlay[T] {
	out := newEntityOverlay[T]()
	baseContent := make(map[string][]byte, len(base))
	for _, b := range base {
		baseContent[b.Key()] = content(b)
	}
	present := make(map[string]bool, len(effective))
	addedAt := map[string]int{}
	for _, e := range effective {
		id := e.Key()
		present[id] = true
		prev, inBase := baseContent[id]
		switch {
		case !inBase:
			if i, dup := addedAt[id]; dup {
				out.Added[i] = e
				continue
			}
			addedAt[id] = len(out.Added)
			out.Added = append(out.Added, e)
		case !bytes.Equal(prev, content(e)):
			out.Updated[id] = e
		default:
			delete(out.Updated, id)
		}
	}
	for _, b := range base {
		if !present[b.Key()] {
			out.Deleted = append(out.Deleted, b.Key())
		}
	}
	return out
}

// Diff computes the overlay that turns base into effective, stamped with the
// base fingerprint and now.
func Diff(base, effective catalog.Catalog, now time.Time) *UserOverlay {
	return &UserOverlay{
		BaseSignature: Fingerprint(base),
		SavedAt:       now.UTC(),
		Materials:     diffEntities(base.Materials, effective.Materials),
		Quests:        diffEntities(base.Quests, effective.Quests),
	}
}

// applyEntities drops deleted ids, swaps in updated content for ids still in
// the base and then places added entries. An added id that the base now also
// holds replaces the base entry so ids stay unique. Added entries that are
// also deleted are skipped.
func applyEntities[T catalog.Entity](base []T, o EntityOverlay[T]) []T {
	deleted := make(map[string]bool, len(o.Deleted))
	for _, id := range o.Deleted {
		deleted[id] = true
	}
	added := make(map[string]T, len(o.Added))
	for _, a := range o.Added {
		if !deleted[a.Key()] {
			added[a.Key()] = a
		}
	}

	out := make([]T, 0, len(base)+len(o.Added))
	for _, b := range base {
		id := b.Key()
		if deleted[id] {
			continue
		}
		if a, ok := added[id]; ok {
			out = append(out, a)
			delete(added, id)
			continue
		}
		if u, ok := o.Updated[id]; ok {
			out = append(out, u)
			continue
		}
		out = append(out, b)
	}
	for _, a := range o.Added {
		if v, ok := added[a.Key()]; ok {
			out = append(out, v)
			delete(added, a.Key())
		}
	}
	return catalog.SortByKey(out)
}

// Apply builds the effective catalog. A nil overlay yields base sorted by id.
// The result shares no slices with base or o, so it can be edited in place.
func Apply(base catalog.Catalog, o *UserOverlay) catalog.Catalog {
	if o == nil {
		return base.Sorted()
	}
	return catalog.Catalog{
		Materials: applyEntities(base.Materials, o.Materials),
		Quests:    applyEntities(base.Quests, o.Quests),
	}
}
