// Package bom expands quest requirements into a bill of materials: a tree
// down to base materials plus aggregated quantity totals.
//
// Resolution is a pure function of its arguments. Unknown material ids and
// recipe cycles become tagged leaves instead of errors unless Strict is set.
package bom

import (
	"errors"
	"fmt"
	"strings"

	"github.com/poku-e/craftbom/internal/catalog"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusFixed   Status = "fixed"
	StatusUnknown Status = "unknown"
	StatusCycle   Status = "cycle"
)

// Node is one position in the expansion tree. Quantity is the total number of
// units needed at this position.
type Node struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Quantity        int     `json:"quantity"`
	Fixed           bool    `json:"fixed"`
	ReserveRequired bool    `json:"reserveRequired"`
	Status          Status  `json:"status"`
	Children        []*Node `json:"children"`
}

// Leaf reports whether resolution stopped at this node.
func (n *Node) Leaf() bool { return len(n.Children) == 0 }

type Total struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Totals maps a material id to its accumulated quantity.
type Totals map[string]Total

func (t Totals) add(id, name string, qty int) {
	cur, ok := t[id]
	if !ok {
		cur.Name = name
	}
	cur.Quantity += qty
	t[id] = cur
}

// Result holds one tree root per top-level requirement. BaseTotals has only
// the leaves the user must acquire; AllTotals has every visited node.
type Result struct {
	Tree       []*Node `json:"tree"`
	BaseTotals Totals  `json:"baseTotals"`
	AllTotals  Totals  `json:"allTotals"`
}

var (
	ErrUnknownMaterial = errors.New("unknown material")
	ErrCycle           = errors.New("recipe cycle")
)

// ResolveError is returned in strict mode. Path is the chain of material ids
// from the top-level requirement down to the offending reference.
type ResolveError struct {
	Kind error
	ID   string
	Path []string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%v %q (path: %s)", e.Kind, e.ID, strings.Join(e.Path, " > "))
}

func (e *ResolveError) Unwrap() error { return e.Kind }

type options struct {
	fixed  map[string]bool
	strict bool
}

type Option func(*options)

// WithFixed declares materials as already owned. Expansion stops at them.
func WithFixed(ids ...string) Option {
	return func(o *options) {
		for _, id := range ids {
			o.fixed[id] = true
		}
	}
}

// WithFixedSet is WithFixed for a prepared set.
func WithFixedSet(set map[string]bool) Option {
	return func(o *options) {
		for id, ok := range set {
			if ok {
				o.fixed[id] = true
			}
		}
	}
}

// Strict makes the first unknown reference or cycle fail the whole resolution.
func Strict() Option {
	return func(o *options) { o.strict = true }
}

// UnknownName is the display name of an unresolved reference.
func UnknownName(id string) string {
	return fmt.Sprintf("unknown material (%s)", id)
}

// CycleName is the display name of a cycle-terminated node.
func CycleName(name string) string {
	return name + " (cycle)"
}

// frame is one pending node on the explicit work stack. parent links form
// the ancestor chain used by the cycle guard.
type frame struct {
	node   *Node
	id     string
	parent *frame
}

func (f *frame) onPath(id string) bool {
	for p := f.parent; p != nil; p = p.parent {
		if p.id == id {
			return true
		}
	}
	return false
}

func (f *frame) path() []string {
	var ids []string
	for p := f; p != nil; p = p.parent {
		ids = append(ids, p.id)
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

// Resolve expands requirements against materials. Top-level requirements are
// processed in order and recipe ingredients in declaration order.
func Resolve(requirements []catalog.RecipeItem, materials []catalog.Material, opts ...Option) (*Result, error) {
	o := options{fixed: map[string]bool{}}
	for _, opt := range opts {
		opt(&o)
	}

	byID := make(map[string]catalog.Material, len(materials))
	for _, m := range materials {
		byID[m.ID] = m
	}

	res := &Result{
		Tree:       make([]*Node, 0, len(requirements)),
		BaseTotals: Totals{},
		AllTotals:  Totals{},
	}

	var stack []*frame
	push := func(parent *frame, items []catalog.RecipeItem, mult int) []*Node {
		nodes := make([]*Node, len(items))
		for i := range items {
			nodes[i] = &Node{
				ID:              items[i].MaterialID,
				Quantity:        items[i].Quantity * mult,
				ReserveRequired: items[i].ReserveRequired,
				Status:          StatusOK,
				Children:        []*Node{},
			}
		}
		for i := len(items) - 1; i >= 0; i-- {
			stack = append(stack, &frame{node: nodes[i], id: items[i].MaterialID, parent: parent})
		}
		return nodes
	}

	res.Tree = append(res.Tree, push(nil, requirements, 1)...)

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := f.node

		m, ok := byID[f.id]
		switch {
		case !ok:
			if o.strict {
				return nil, &ResolveError{Kind: ErrUnknownMaterial, ID: f.id, Path: f.path()}
			}
			id := f.id
			if id == "" {
				id = "(empty)"
			}
			n.ID = id
			n.Name = UnknownName(id)
			n.Status = StatusUnknown
			res.AllTotals.add(id, n.Name, n.Quantity)
			res.BaseTotals.add(id, n.Name, n.Quantity)

		case f.onPath(f.id):
			if o.strict {
				return nil, &ResolveError{Kind: ErrCycle, ID: f.id, Path: f.path()}
			}
			n.Name = CycleName(m.Name)
			n.Status = StatusCycle
			res.AllTotals.add(m.ID, m.Name, n.Quantity)
			res.BaseTotals.add(m.ID, m.Name, n.Quantity)

		case o.fixed[m.ID]:
			n.Name = m.Name
			n.Fixed = true
			n.Status = StatusFixed
			res.AllTotals.add(m.ID, m.Name, n.Quantity)
			res.BaseTotals.add(m.ID, m.Name, n.Quantity)

		case m.IsBase():
			n.Name = m.Name
			res.AllTotals.add(m.ID, m.Name, n.Quantity)
			res.BaseTotals.add(m.ID, m.Name, n.Quantity)

		default:
			n.Name = m.Name
			res.AllTotals.add(m.ID, m.Name, n.Quantity)
			n.Children = push(f, m.Recipe, n.Quantity)
		}
	}
	return res, nil
}

// ResolveQuest resolves a quest's requirements.
func ResolveQuest(q catalog.Quest, materials []catalog.Material, opts ...Option) (*Result, error) {
	return Resolve(q.Requirements, materials, opts...)
}

// Unknown lists the distinct unresolved ids in tree order.
func Unknown(res *Result) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			if n.Status == StatusUnknown && !seen[n.ID] {
				seen[n.ID] = true
				out = append(out, n.ID)
			}
			walk(n.Children)
		}
	}
	walk(res.Tree)
	return out
}
