package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poku-e/craftbom/internal/catalog"
)

const page = `<html><body>
<table id="table">
  <thead><tr><th>In 1</th><th>In 2</th><th>In 3</th><th>Out</th></tr></thead>
  <tbody>
    <tr>
      <td><div class="cell-content"><span class="sort">Iron Ore</span><span class="cell-text">Iron Ore x2</span></div></td>
      <td></td>
      <td></td>
      <td><div class="cell-content"><span class="cell-text">Iron Bar</span></div></td>
    </tr>
    <tr>
      <td><span class="cell-text">Iron Bar</span><span class="amount">x 3</span></td>
      <td><img alt="Oak Plank" src="/img/plank.png"></td>
      <td></td>
      <td><span class="cell-text">Iron Sword x1</span></td>
    </tr>
    <tr>
      <td><span class="cell-text">Ghost</span></td>
      <td></td>
      <td></td>
      <td></td>
    </tr>
  </tbody>
</table>
</body></html>`

func TestParseTable(t *testing.T) {
	rows, err := ParseTable(page, "#table")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, Cell{Name: "Iron Bar", Qty: 1}, rows[0].Output)
	assert.Equal(t, []Cell{{Name: "Iron Ore", Qty: 2}}, rows[0].Inputs)

	assert.Equal(t, "Iron Sword", rows[1].Output.Name)
	assert.Equal(t, []Cell{{Name: "Iron Bar", Qty: 3}, {Name: "Oak Plank", Qty: 1}}, rows[1].Inputs)
}

func TestParseTableMissing(t *testing.T) {
	_, err := ParseTable(page, "#nope")
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "iron_ore", Slug("  Iron  Ore "))
	assert.Equal(t, "sword_mk_2", Slug("Sword (Mk. 2)"))
	assert.Equal(t, "", Slug("!!"))
}

func TestMaterials(t *testing.T) {
	rows, err := ParseTable(page, "#table")
	require.NoError(t, err)

	got := Materials(rows)
	assert.Equal(t, []catalog.Material{
		{ID: "iron_bar", Name: "Iron Bar", Recipe: []catalog.RecipeItem{{MaterialID: "iron_ore", Quantity: 2}}},
		{ID: "iron_ore", Name: "Iron Ore"},
		{ID: "iron_sword", Name: "Iron Sword", Recipe: []catalog.RecipeItem{
			{MaterialID: "iron_bar", Quantity: 3},
			{MaterialID: "oak_plank", Quantity: 1},
		}},
		{ID: "oak_plank", Name: "Oak Plank"},
	}, got)
}

func TestParseQty(t *testing.T) {
	assert.Equal(t, 3, parseQty("Iron Bar x 3"))
	assert.Equal(t, 0, parseQty("Iron Bar"))
	assert.Equal(t, 0, parseQty("x99999999999999999999999"), "out of range")
}

func TestMaterialsSkipsUnnamedInputs(t *testing.T) {
	rows := []Row{{
		Output: Cell{Name: "Charm", Qty: 1},
		Inputs: []Cell{{Name: "!!!", Qty: 2}, {Name: "Gem", Qty: 1}},
	}}
	assert.Equal(t, []catalog.Material{
		{ID: "charm", Name: "Charm", Recipe: []catalog.RecipeItem{{MaterialID: "gem", Quantity: 1}}},
		{ID: "gem", Name: "Gem"},
	}, Materials(rows))
	assert.NoError(t, catalog.Validate(catalog.Catalog{Materials: Materials(rows)}))
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	html, err := Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, html, "Iron Sword")
}
