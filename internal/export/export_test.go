package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/poku-e/craftbom/internal/bom"
	"github.com/poku-e/craftbom/internal/catalog"
)

func swordResult(t *testing.T) *bom.Result {
	t.Helper()
	mats := []catalog.Material{
		{ID: "ore", Name: "Ore"},
		{ID: "bar", Name: "Bar", Recipe: []catalog.RecipeItem{{MaterialID: "ore", Quantity: 2}}},
		{ID: "sword", Name: "Sword", Recipe: []catalog.RecipeItem{{MaterialID: "bar", Quantity: 1}, {MaterialID: "ore", Quantity: 1}}},
	}
	reqs := []catalog.RecipeItem{{MaterialID: "sword", Quantity: 1, ReserveRequired: true}, {MaterialID: "gem", Quantity: 2}}
	res, err := bom.Resolve(reqs, mats, bom.WithFixed("bar"))
	require.NoError(t, err)
	return res
}

func TestFlatten(t *testing.T) {
	rows := Flatten(swordResult(t).Tree)
	require.Len(t, rows, 4)
	assert.Equal(t, Row{Depth: 0, ID: "sword", Name: "Sword", Quantity: 1, Status: bom.StatusOK, Reserve: true}, rows[0])
	assert.Equal(t, "bar", rows[1].ID)
	assert.Equal(t, 1, rows[1].Depth)
	assert.Equal(t, bom.StatusFixed, rows[1].Status)
	assert.Equal(t, "ore", rows[2].ID)
	assert.Equal(t, bom.StatusUnknown, rows[3].Status)
}

func TestSortedTotals(t *testing.T) {
	got := SortedTotals(bom.Totals{"b": {Name: "B", Quantity: 2}, "a": {Name: "A", Quantity: 1}})
	assert.Equal(t, []TotalRow{{"a", "A", 1}, {"b", "B", 2}}, got)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, swordResult(t)))

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, treeHeader, records[0])
	assert.Equal(t, []string{"0", "sword", "Sword", "1", "reserve"}, records[1])
	assert.Equal(t, []string{"1", "bar", "  Bar", "1", "fixed"}, records[2])
	assert.Contains(t, records, []string{"base", "bar", "Bar", "1"})
	assert.Contains(t, records, []string{"base", "gem", bom.UnknownName("gem"), "2"})
	assert.Contains(t, records, []string{"all", "sword", "Sword", "1"})
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bom.xlsx")
	require.NoError(t, WriteFile(path, swordResult(t)))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	tree, err := f.GetRows(SheetTree)
	require.NoError(t, err)
	require.Len(t, tree, 5)
	assert.Equal(t, []string{"0", "sword", "Sword", "1", "reserve"}, tree[1])

	base, err := f.GetRows(SheetBase)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"id", "name", "quantity"},
		{"bar", "Bar", "1"},
		{"gem", bom.UnknownName("gem"), "2"},
		{"ore", "Ore", "1"},
	}, base)
}

func TestWriteFileCSVAndBadExt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bom.CSV")
	require.NoError(t, WriteFile(path, swordResult(t)))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, WriteFile(filepath.Join(dir, "bom.txt"), swordResult(t)))
}
