package bom

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/poku-e/craftbom/internal/catalog"
)

// normKey lowercases, drops combining marks and collapses whitespace.
func normKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
		case unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func distanceLimit(n int) int {
	switch {
	case n <= 3:
		return 1
	case n <= 7:
		return 2
	default:
		return 3
	}
}

type scored struct {
	id    string
	score float64
}

// Suggest returns up to limit material ids that look like a mistyped id,
// comparing against both ids and names. Best matches come first.
func Suggest(id string, materials []catalog.Material, limit int) []string {
	q := normKey(id)
	if q == "" || limit <= 0 {
		return nil
	}
	best := map[string]float64{}
	consider := func(matID, cand string) {
		c := normKey(cand)
		if c == "" {
			return
		}
		var score float64
		switch {
		case c == q:
			score = 1.0
		case strings.HasPrefix(c, q) && len(q) >= 2:
			score = 0.9
		case strings.Contains(c, q) || strings.Contains(q, c):
			score = 0.8
		default:
			dist := levenshtein.ComputeDistance(q, c)
			if dist > distanceLimit(len([]rune(c))) {
				return
			}
			score = 0.72 - 0.08*float64(dist)
		}
		if score > best[matID] {
			best[matID] = score
		}
	}
	for _, m := range materials {
		consider(m.ID, m.ID)
		consider(m.ID, m.Name)
	}

	results := make([]scored, 0, len(best))
	for matID, s := range best {
		results = append(results, scored{id: matID, score: s})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score == results[j].score {
			return results[i].id < results[j].id
		}
		return results[i].score > results[j].score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.id
	}
	return out
}

// Suggestions maps every unknown id in res to its candidates.
func Suggestions(res *Result, materials []catalog.Material, limit int) map[string][]string {
	out := map[string][]string{}
	for _, id := range Unknown(res) {
		if s := Suggest(id, materials, limit); len(s) > 0 {
			out[id] = s
		}
	}
	return out
}
