package bom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poku-e/craftbom/internal/catalog"
)

func TestNormKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "  Iron_Ore ", want: "iron ore"},
		{in: "iron-BAR!!", want: "iron bar"},
		{in: "", want: ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, normKey(tc.in), "normKey(%q)", tc.in)
	}
}

func TestSuggestTypo(t *testing.T) {
	mats := []catalog.Material{
		{ID: "iron_ore", Name: "Iron Ore"},
		{ID: "iron_bar", Name: "Iron Bar"},
		{ID: "wood", Name: "Wood"},
	}
	got := Suggest("iron_or", mats, 3)
	require.NotEmpty(t, got)
	assert.Equal(t, "iron_ore", got[0])
	assert.NotContains(t, got, "wood")
}

func TestSuggestMatchesNames(t *testing.T) {
	mats := []catalog.Material{{ID: "m001", Name: "Copper Wire"}}
	assert.Equal(t, []string{"m001"}, Suggest("copper wire", mats, 3))
}

func TestSuggestNothingClose(t *testing.T) {
	mats := []catalog.Material{{ID: "wood", Name: "Wood"}}
	assert.Empty(t, Suggest("dragonscale", mats, 3))
	assert.Empty(t, Suggest("wood", mats, 0))
}

func TestSuggestionsForResult(t *testing.T) {
	mats := []catalog.Material{
		{ID: "plank", Name: "Plank", Recipe: []catalog.RecipeItem{item("wod", 2)}},
		{ID: "wood", Name: "Wood"},
	}
	res, err := Resolve([]catalog.RecipeItem{item("plank", 1)}, mats)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"wod": {"wood"}}, Suggestions(res, mats, 3))
}
