package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/poku-e/craftbom/internal/bom"
	"github.com/poku-e/craftbom/internal/catalog"
	"github.com/poku-e/craftbom/internal/export"
	"github.com/poku-e/craftbom/internal/overlay"
)

func printTree(w io.Writer, tree []*bom.Node) {
	for _, r := range export.Flatten(tree) {
		line := fmt.Sprintf("%s%s x%d", strings.Repeat("  ", r.Depth), r.Name, r.Quantity)
		if f := r.Flags(); f != "" {
			line += " [" + f + "]"
		}
		fmt.Fprintln(w, line)
	}
}

func printTotals(w io.Writer, title string, t bom.Totals) {
	fmt.Fprintf(w, "%s:\n", title)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range export.SortedTotals(t) {
		fmt.Fprintf(tw, "  %s\t%s\t%d\n", r.ID, r.Name, r.Quantity)
	}
	tw.Flush()
}

func printSuggestions(w io.Writer, sugs map[string][]string) {
	if len(sugs) == 0 {
		return
	}
	ids := make([]string, 0, len(sugs))
	for id := range sugs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Fprintln(w)
	for _, id := range ids {
		fmt.Fprintf(w, "unknown %q, did you mean: %s\n", id, strings.Join(sugs[id], ", "))
	}
}

func printStatus(w io.Writer, st *overlay.State, o *overlay.UserOverlay) {
	fmt.Fprintf(w, "base:      %d materials, %d quests (%s)\n",
		len(st.Base.Materials), len(st.Base.Quests), overlay.Fingerprint(st.Base))
	fmt.Fprintf(w, "effective: %d materials, %d quests\n",
		len(st.Effective.Materials), len(st.Effective.Quests))
	if !st.HasOverlay {
		fmt.Fprintln(w, "overlay:   none")
		return
	}
	saved := "unknown"
	if !st.SavedAt.IsZero() {
		saved = st.SavedAt.Local().Format(time.RFC3339)
	}
	fmt.Fprintf(w, "saved:     %s\n", saved)
	if o != nil {
		printOverlaySummary(w, o)
	}
	if st.BaseDrifted {
		fmt.Fprintln(w, "warning:   the shared catalog changed since the overlay was saved")
	}
}

func printOverlaySummary(w io.Writer, o *overlay.UserOverlay) {
	if o.Empty() {
		fmt.Fprintln(w, "overlay:   no changes")
		return
	}
	fmt.Fprintf(w, "overlay:   materials +%d ~%d -%d | quests +%d ~%d -%d\n",
		len(o.Materials.Added), len(o.Materials.Updated), len(o.Materials.Deleted),
		len(o.Quests.Added), len(o.Quests.Updated), len(o.Quests.Deleted))
}

func printCatalog(w io.Writer, c catalog.Catalog, filter string) {
	names := catalog.Names(c.Materials)
	refs := catalog.References(c)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "MATERIAL\tNAME\tUSES\tRECIPE")
	for _, m := range catalog.FilterMaterials(c.Materials, filter) {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", m.ID, m.Name, refs[m.ID].Total(), catalog.RecipeSummary(m, names))
	}
	fmt.Fprintln(tw, "\t\t\t")
	fmt.Fprintln(tw, "QUEST\tNAME\t\tREQUIREMENTS")
	for _, q := range catalog.FilterQuests(c.Quests, filter) {
		fmt.Fprintf(tw, "%s\t%s\t\t%s\n", q.ID, q.Name, catalog.Summary(q.Requirements, names))
	}
	tw.Flush()
}
