// Package scrape turns an HTML recipe table (three input cells and one output
// cell per row, amounts written as "xN") into catalog materials.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/poku-e/craftbom/internal/catalog"
	"github.com/poku-e/craftbom/internal/httpx"
)

type Cell struct {
	Name string
	Qty  int
}

type Row struct {
	Inputs []Cell
	Output Cell
}

var (
	amountRe = regexp.MustCompile(`(?i)\bx\s*(\d+)\b`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// ---------- Fetch ----------

// Fetch downloads a page, retrying transient failures.
func Fetch(ctx context.Context, rawURL string) (string, error) {
	client := httpx.NewClient(25 * time.Second)
	resp, err := httpx.Do(ctx, client, httpx.DefaultBackoffs, nil, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ---------- Parsing ----------

func parseQty(s string) int {
	m := amountRe.FindStringSubmatch(s)
	if len(m) != 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func textCondense(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func first(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	return textCondense(sel.First().Text())
}

func extractCell(td *goquery.Selection) Cell {
	if td == nil || td.Length() == 0 {
		return Cell{}
	}

	// Hidden sort span first, then visible text minus the amount, then img alt.
	name := first(td.Find("span.sort"))
	if name == "" {
		vis := first(td.Find(".cell-text"))
		if vis == "" {
			vis = textCondense(td.Text())
		}
		if vis != "" {
			name = strings.TrimSpace(amountRe.ReplaceAllString(vis, ""))
			if name == "" {
				name = vis
			}
		}
	}
	if name == "" {
		if img := td.Find("img"); img.Length() != 0 {
			if alt, ok := img.Attr("alt"); ok {
				name = strings.TrimSpace(alt)
			}
		}
	}

	qty := 0
	if amt := first(td.Find("span.amount")); amt != "" {
		qty = parseQty(amt)
	}
	if qty == 0 {
		qty = parseQty(textCondense(td.Text()))
	}
	if qty == 0 && name != "" {
		qty = 1
	}
	return Cell{Name: name, Qty: qty}
}

// ParseTable reads the body rows of the first table matching selector. The
// last cell of a row is the output; the cells before it are inputs.
func ParseTable(html, selector string) ([]Row, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	table := doc.Find(selector).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("table not found with selector %q", selector)
	}

	var out []Row
	table.Find("tbody > tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() < 2 {
			return
		}
		var row Row
		tds.Each(func(i int, td *goquery.Selection) {
			c := extractCell(td)
			if i == tds.Length()-1 {
				row.Output = c
				return
			}
			if c.Name != "" {
				row.Inputs = append(row.Inputs, c)
			}
		})
		if row.Output.Name == "" || len(row.Inputs) == 0 {
			return
		}
		out = append(out, row)
	})
	return out, nil
}

// ---------- Catalog mapping ----------

// Slug makes a material id from a display name.
func Slug(name string) string {
	var b strings.Builder
	lastSep := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			lastSep = false
		case !lastSep:
			b.WriteByte('_')
			lastSep = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// Materials maps rows to materials. The first row producing an output wins;
// every referenced ingredient without its own row becomes a base material.
// Output yields are not modelled: quantities are per crafted unit.
func Materials(rows []Row) []catalog.Material {
	byID := map[string]catalog.Material{}
	for _, r := range rows {
		id := Slug(r.Output.Name)
		if id == "" {
			continue
		}
		if _, seen := byID[id]; seen {
			continue
		}
		recipe := make([]catalog.RecipeItem, 0, len(r.Inputs))
		for _, in := range r.Inputs {
			inID := Slug(in.Name)
			if inID == "" {
				continue
			}
			recipe = append(recipe, catalog.RecipeItem{MaterialID: inID, Quantity: max(in.Qty, 1)})
		}
		byID[id] = catalog.Material{ID: id, Name: r.Output.Name, Recipe: recipe}
	}
	for _, r := range rows {
		for _, in := range r.Inputs {
			id := Slug(in.Name)
			if _, ok := byID[id]; !ok && id != "" {
				byID[id] = catalog.Material{ID: id, Name: in.Name}
			}
		}
	}
	out := make([]catalog.Material, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
