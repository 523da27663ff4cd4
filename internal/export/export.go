// Package export writes a resolved bill of materials as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/poku-e/craftbom/internal/bom"
)

// Row is one flattened tree line. Depth starts at 0 for a top-level requirement.
type Row struct {
	Depth    int
	ID       string
	Name     string
	Quantity int
	Status   bom.Status
	Reserve  bool
}

// Flatten lists the tree in depth-first order, parents before children.
func Flatten(tree []*bom.Node) []Row {
	var out []Row
	type item struct {
		n     *bom.Node
		depth int
	}
	stack := make([]item, 0, len(tree))
	for i := len(tree) - 1; i >= 0; i-- {
		stack = append(stack, item{tree[i], 0})
	}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, Row{
			Depth:    it.depth,
			ID:       it.n.ID,
			Name:     it.n.Name,
			Quantity: it.n.Quantity,
			Status:   it.n.Status,
			Reserve:  it.n.ReserveRequired,
		})
		for i := len(it.n.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{it.n.Children[i], it.depth + 1})
		}
	}
	return out
}

// TotalRow is one line of a totals table.
type TotalRow struct {
	ID       string
	Name     string
	Quantity int
}

// SortedTotals orders totals by id for display.
func SortedTotals(t bom.Totals) []TotalRow {
	out := make([]TotalRow, 0, len(t))
	for id, tot := range t {
		out = append(out, TotalRow{ID: id, Name: tot.Name, Quantity: tot.Quantity})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Flags lists the row's non-ok status and the reserve marker, comma separated.
func (r Row) Flags() string {
	var flags []string
	if r.Status != bom.StatusOK && r.Status != "" {
		flags = append(flags, string(r.Status))
	}
	if r.Reserve {
		flags = append(flags, "reserve")
	}
	return strings.Join(flags, ",")
}

var (
	treeHeader  = []string{"depth", "id", "name", "quantity", "flags"}
	totalHeader = []string{"section", "id", "name", "quantity"}
)

func treeRecord(r Row) []string {
	return []string{
		strconv.Itoa(r.Depth),
		r.ID,
		strings.Repeat("  ", r.Depth) + r.Name,
		strconv.Itoa(r.Quantity),
		r.Flags(),
	}
}

// WriteCSV writes the tree, a blank line, then base and all totals.
func WriteCSV(w io.Writer, res *bom.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(treeHeader); err != nil {
		return err
	}
	for _, r := range Flatten(res.Tree) {
		if err := cw.Write(treeRecord(r)); err != nil {
			return err
		}
	}
	if err := cw.Write(nil); err != nil {
		return err
	}
	if err := cw.Write(totalHeader); err != nil {
		return err
	}
	for _, section := range []struct {
		name   string
		totals bom.Totals
	}{{"base", res.BaseTotals}, {"all", res.AllTotals}} {
		for _, t := range SortedTotals(section.totals) {
			if err := cw.Write([]string{section.name, t.ID, t.Name, strconv.Itoa(t.Quantity)}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

const (
	SheetTree = "Tree"
	SheetBase = "Base"
	SheetAll  = "All"
)

func toRow(vals ...any) []interface{} { return vals }

// BuildXLSX lays the result out on three sheets: Tree, Base and All.
func BuildXLSX(res *bom.Result) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetTree); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetBase, SheetAll} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	sw, err := f.NewStreamWriter(SheetTree)
	if err != nil {
		return nil, err
	}
	if err := sw.SetRow("A1", toRow("depth", "id", "name", "quantity", "flags")); err != nil {
		return nil, err
	}
	for i, r := range Flatten(res.Tree) {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := toRow(r.Depth, r.ID, strings.Repeat("  ", r.Depth)+r.Name, r.Quantity, r.Flags())
		if err := sw.SetRow(cell, row); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}

	for _, section := range []struct {
		sheet  string
		totals bom.Totals
	}{{SheetBase, res.BaseTotals}, {SheetAll, res.AllTotals}} {
		sw, err := f.NewStreamWriter(section.sheet)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow("A1", toRow("id", "name", "quantity")); err != nil {
			return nil, err
		}
		for i, t := range SortedTotals(section.totals) {
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := sw.SetRow(cell, toRow(t.ID, t.Name, t.Quantity)); err != nil {
				return nil, err
			}
		}
		if err := sw.Flush(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func WriteXLSX(path string, res *bom.Result) error {
	f, err := BuildXLSX(res)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

// WriteFile picks the format from the extension (.csv or .xlsx).
func WriteFile(path string, res *bom.Result) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		out, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := WriteCSV(out, res); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	case ".xlsx":
		return WriteXLSX(path, res)
	default:
		return fmt.Errorf("out must end with .csv or .xlsx: %s", path)
	}
}
