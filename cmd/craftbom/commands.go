package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/poku-e/craftbom/internal/bom"
	"github.com/poku-e/craftbom/internal/catalog"
	"github.com/poku-e/craftbom/internal/export"
	"github.com/poku-e/craftbom/internal/overlay"
)

// withSession parses args, opens the overlay store and runs fn under the
// command timeout.
func withSession(ctx context.Context, e *env, fs *flag.FlagSet, s *settings, args []string, fn func(context.Context, *session) error) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	sess, err := s.open(e)
	if err != nil {
		return err
	}
	defer sess.close()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx, sess)
}

func runStatus(ctx context.Context, e *env, args []string) error {
	fs, s := newFlagSet(e, "status")
	return withSession(ctx, e, fs, s, args, func(ctx context.Context, sess *session) error {
		st, err := sess.sync.LoadEffective(ctx)
		if err != nil {
			return err
		}
		o, err := sess.sync.Read(ctx)
		if err != nil {
			return err
		}
		printStatus(e.stdout, st, o)
		return nil
	})
}

type resolveFlags struct {
	quest   string
	fixed   string
	strict  bool
	suggest int
}

func (r *resolveFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&r.quest, "quest", "", "Quest id to resolve (required)")
	fs.StringVar(&r.fixed, "fixed", "", "Comma separated material ids already owned")
	fs.BoolVar(&r.strict, "strict", false, "Fail on unknown materials and recipe cycles")
	fs.IntVar(&r.suggest, "suggest", 3, "Suggestions per unknown material id")
}

func (r *resolveFlags) resolve(c catalog.Catalog) (catalog.Quest, *bom.Result, error) {
	if r.quest == "" {
		return catalog.Quest{}, nil, errors.New("-quest is required")
	}
	q, ok := c.Quest(r.quest)
	if !ok {
		return catalog.Quest{}, nil, fmt.Errorf("quest %q: %w", r.quest, catalog.ErrNotFound)
	}
	opts := []bom.Option{bom.WithFixed(splitList(r.fixed)...)}
	if r.strict {
		opts = append(opts, bom.Strict())
	}
	res, err := bom.ResolveQuest(q, c.Materials, opts...)
	if err != nil {
		return q, nil, err
	}
	return q, res, nil
}

func runBOM(ctx context.Context, e *env, args []string) error {
	fs, s := newFlagSet(e, "bom")
	var rf resolveFlags
	rf.register(fs)
	return withSession(ctx, e, fs, s, args, func(ctx context.Context, sess *session) error {
		st, err := sess.sync.LoadEffective(ctx)
		if err != nil {
			return err
		}
		q, res, err := rf.resolve(st.Effective)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "%s (%s)\n", q.Name, q.ID)
		printTree(e.stdout, res.Tree)
		fmt.Fprintln(e.stdout)
		printTotals(e.stdout, "Base materials", res.BaseTotals)
		fmt.Fprintln(e.stdout)
		printTotals(e.stdout, "All materials", res.AllTotals)
		printSuggestions(e.stdout, bom.Suggestions(res, st.Effective.Materials, rf.suggest))
		return nil
	})
}

func runExport(ctx context.Context, e *env, args []string) error {
	fs, s := newFlagSet(e, "export")
	var rf resolveFlags
	rf.register(fs)
	var out string
	fs.StringVar(&out, "out", "", "Output file path (.csv or .xlsx) (required)")
	return withSession(ctx, e, fs, s, args, func(ctx context.Context, sess *session) error {
		if out == "" {
			return errors.New("-out is required")
		}
		st, err := sess.sync.LoadEffective(ctx)
		if err != nil {
			return err
		}
		_, res, err := rf.resolve(st.Effective)
		if err != nil {
			return err
		}
		if err := export.WriteFile(out, res); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "OK: %d rows -> %s\n", len(export.Flatten(res.Tree)), out)
		return nil
	})
}

func runEdit(ctx context.Context, e *env, args []string) error {
	fs, s := newFlagSet(e, "edit")
	var materialsPath, questsPath string
	var publish bool
	fs.StringVar(&materialsPath, "materials", "", "JSON file replacing the materials collection")
	fs.StringVar(&questsPath, "quests", "", "JSON file replacing the quests collection")
	fs.BoolVar(&publish, "publish", false, "Also write the result to the shared catalog")
	return withSession(ctx, e, fs, s, args, func(ctx context.Context, sess *session) error {
		if materialsPath == "" && questsPath == "" {
			return errors.New("nothing to edit: pass -materials and/or -quests")
		}
		st, err := sess.sync.LoadEffective(ctx)
		if err != nil {
			return err
		}
		eff := st.Effective
		if materialsPath != "" {
			if eff.Materials, err = readJSONFile[catalog.Material](materialsPath); err != nil {
				return err
			}
		}
		if questsPath != "" {
			if eff.Quests, err = readJSONFile[catalog.Quest](questsPath); err != nil {
				return err
			}
		}
		catalog.Normalize(&eff)
		base := st.Base.Sorted()
		catalog.Normalize(&base)
		inherited, err := catalog.ValidateAgainst(base, eff)
		for _, p := range inherited {
			fmt.Fprintf(e.stderr, "warning: shared catalog: %s\n", p)
		}
		if err != nil {
			return err
		}
		return save(ctx, e, sess, eff, &st.Base, publish)
	})
}

func runRemoveMaterial(ctx context.Context, e *env, args []string) error {
	fs, s := newFlagSet(e, "rm-material")
	var id string
	var publish bool
	fs.StringVar(&id, "id", "", "Material id to remove (required)")
	fs.BoolVar(&publish, "publish", false, "Also write the result to the shared catalog")
	return withSession(ctx, e, fs, s, args, func(ctx context.Context, sess *session) error {
		if id == "" {
			return errors.New("-id is required")
		}
		st, err := sess.sync.LoadEffective(ctx)
		if err != nil {
			return err
		}
		eff, err := catalog.RemoveMaterial(st.Effective, id)
		if err != nil {
			return err
		}
		return save(ctx, e, sess, eff, &st.Base, publish)
	})
}

func runRemoveQuest(ctx context.Context, e *env, args []string) error {
	fs, s := newFlagSet(e, "rm-quest")
	var id string
	var publish bool
	fs.StringVar(&id, "id", "", "Quest id to remove (required)")
	fs.BoolVar(&publish, "publish", false, "Also write the result to the shared catalog")
	return withSession(ctx, e, fs, s, args, func(ctx context.Context, sess *session) error {
		if id == "" {
			return errors.New("-id is required")
		}
		st, err := sess.sync.LoadEffective(ctx)
		if err != nil {
			return err
		}
		eff, err := catalog.RemoveQuest(st.Effective, id)
		if err != nil {
			return err
		}
		return save(ctx, e, sess, eff, &st.Base, publish)
	})
}

func save(ctx context.Context, e *env, sess *session, eff catalog.Catalog, base *catalog.Catalog, publish bool) error {
	if !publish {
		o, err := sess.sync.SaveEffective(ctx, eff, base)
		if err != nil {
			return err
		}
		printOverlaySummary(e.stdout, o)
		return nil
	}
	o, err := sess.sync.Publish(ctx, sess.client, eff, base)
	if o != nil {
		printOverlaySummary(e.stdout, o)
	}
	if err != nil {
		if o != nil {
			fmt.Fprintln(e.stderr, "local overlay saved; shared catalog not fully updated")
		}
		return err
	}
	fmt.Fprintln(e.stdout, "published")
	return nil
}

func runList(ctx context.Context, e *env, args []string) error {
	fs, s := newFlagSet(e, "list")
	var filter string
	fs.StringVar(&filter, "filter", "", "Case-insensitive match on id or name")
	return withSession(ctx, e, fs, s, args, func(ctx context.Context, sess *session) error {
		st, err := sess.sync.LoadEffective(ctx)
		if err != nil {
			return err
		}
		printCatalog(e.stdout, st.Effective, filter)
		return nil
	})
}

func runReset(ctx context.Context, e *env, args []string) error {
	fs, s := newFlagSet(e, "reset")
	return withSession(ctx, e, fs, s, args, func(ctx context.Context, sess *session) error {
		if err := sess.sync.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, "overlay cleared")
		return nil
	})
}

func readJSONFile[T any](path string) ([]T, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

var listSplitter = regexp.MustCompile(`[,\n;]+`)

func splitList(s string) []string {
	raw := listSplitter.Split(s, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// compile-time check that the client serves both synchronizer roles
var (
	_ overlay.Source    = (*catalog.Client)(nil)
	_ overlay.Publisher = (*catalog.Client)(nil)
)
