// Command craftbom is the editor-session tool: it loads the effective catalog
// (shared base plus the local overlay), resolves quest bills of materials,
// applies edits and publishes them.
//
//	craftbom status
//	craftbom bom -quest q1 -fixed iron_bar
//	craftbom export -quest q1 -out q1.xlsx
//	craftbom edit -materials materials.json [-publish]
//	craftbom list -filter iron
//	craftbom rm-material -id old_ore
//	craftbom rm-quest -id q1
//	craftbom reset
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/poku-e/craftbom/internal/catalog"
	"github.com/poku-e/craftbom/internal/overlay"
)

const defaultServer = "http://localhost:8080"

type command struct {
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = map[string]command{
	"status":      {"show base, overlay and drift state", runStatus},
	"bom":         {"resolve a quest into a bill of materials", runBOM},
	"export":      {"write a quest's bill of materials to .csv or .xlsx", runExport},
	"edit":        {"replace collections from JSON files and save the overlay", runEdit},
	"list":        {"list effective materials and quests", runList},
	"rm-material": {"remove an unreferenced material", runRemoveMaterial},
	"rm-quest":    {"remove a quest", runRemoveQuest},
	"reset":       {"discard the local overlay", runReset},
}

// env carries process-wide collaborators so commands can be run from tests.
type env struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	e := &env{stdout: os.Stdout, stderr: os.Stderr, getenv: os.Getenv}
	if err := run(ctx, e, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fatal(err)
	}
}

func run(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		usage(e.stderr)
		return flag.ErrHelp
	}
	cmd, ok := commands[args[0]]
	if !ok {
		usage(e.stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd.run(ctx, e, args[1:])
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "usage: craftbom <command> [flags]")
	for _, name := range names {
		fmt.Fprintf(w, "  %-12s %s\n", name, commands[name].summary)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}

// settings are the flags every command shares.
type settings struct {
	server  string
	store   string
	timeout time.Duration
}

func newFlagSet(e *env, name string) (*flag.FlagSet, *settings) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	s := &settings{}
	server := e.getenv("CRAFTBOM_SERVER")
	if server == "" {
		server = defaultServer
	}
	fs.StringVar(&s.server, "server", server, "Catalog server base URL (env CRAFTBOM_SERVER)")
	fs.StringVar(&s.store, "store", "", "Overlay store: file:<path>, redis://host:port/db or mem (default file:$HOME/.craftbom/overlay.json)")
	fs.DurationVar(&s.timeout, "timeout", 60*time.Second, "Overall timeout")
	return fs, s
}

// session is an opened synchronizer plus the client it publishes through.
type session struct {
	client *catalog.Client
	sync   *overlay.Synchronizer
	close  func() error
}

func (s *settings) open(e *env) (*session, error) {
	store, closer, err := openStore(s.store)
	if err != nil {
		return nil, err
	}
	client := catalog.NewClient(s.server)
	logger := slog.New(slog.NewTextHandler(e.stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return &session{
		client: client,
		sync:   overlay.NewSynchronizer(client, store, overlay.WithLogger(logger)),
		close:  closer,
	}, nil
}

func noClose() error { return nil }

func openStore(spec string) (overlay.Store, func() error, error) {
	switch {
	case spec == "mem":
		return overlay.NewMemoryStore(), noClose, nil
	case strings.HasPrefix(spec, "redis://"), strings.HasPrefix(spec, "rediss://"):
		rs, err := overlay.OpenRedisStore(spec)
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Close, nil
	case spec == "":
		p, err := defaultStorePath()
		if err != nil {
			return nil, nil, err
		}
		return overlay.NewFileStore(p), noClose, nil
	case strings.HasPrefix(spec, "file:"):
		p := strings.TrimPrefix(spec, "file:")
		if p == "" {
			return nil, nil, errors.New("file store needs a path")
		}
		return overlay.NewFileStore(p), noClose, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store %q", spec)
	}
}

func defaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home dir: %w", err)
	}
	return filepath.Join(home, ".craftbom", "overlay.json"), nil
}
