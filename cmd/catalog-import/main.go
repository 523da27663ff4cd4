// Command catalog-import scrapes a server-rendered recipe table into the
// materials collection. The last column of each row is the crafted output,
// the others are its ingredients.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poku-e/craftbom/internal/catalog"
	"github.com/poku-e/craftbom/internal/scrape"
)

type config struct {
	pageURL  string
	file     string
	selector string
	out      string
	server   string
}

func main() {
	var cfg config
	flag.StringVar(&cfg.pageURL, "url", "", "Page URL to fetch")
	flag.StringVar(&cfg.file, "file", "", "Local HTML file to parse instead of -url")
	flag.StringVar(&cfg.selector, "selector", "#table", "CSS selector for the target table")
	flag.StringVar(&cfg.out, "out", "", "Output: a .json file, or a catalog data directory")
	flag.StringVar(&cfg.server, "server", "", "Catalog server base URL to replace materials on")
	flag.Parse()

	if (cfg.pageURL == "") == (cfg.file == "") || (cfg.out == "" && cfg.server == "") {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	n, err := importCatalog(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	dest := cfg.out
	if dest == "" {
		dest = cfg.server
	}
	fmt.Printf("OK: %d materials -> %s\n", n, dest)
}

func importCatalog(ctx context.Context, cfg config) (int, error) {
	html, err := load(ctx, cfg)
	if err != nil {
		return 0, err
	}
	rows, err := scrape.ParseTable(html, cfg.selector)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, errors.New("parsed 0 rows; check selector or that the page is server-rendered")
	}
	ms := scrape.Materials(rows)
	if err := catalog.Validate(catalog.Catalog{Materials: ms}); err != nil {
		return 0, err
	}

	if cfg.out != "" {
		if err := writeMaterials(cfg.out, ms); err != nil {
			return 0, err
		}
	}
	if cfg.server != "" {
		if err := catalog.NewClient(cfg.server).SaveMaterials(ctx, ms); err != nil {
			return 0, err
		}
	}
	return len(ms), nil
}

func load(ctx context.Context, cfg config) (string, error) {
	if cfg.file != "" {
		b, err := os.ReadFile(cfg.file)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return scrape.Fetch(ctx, cfg.pageURL)
}

// writeMaterials writes a standalone JSON file, or materials.json inside a
// catalog data directory when out has no .json extension.
func writeMaterials(out string, ms []catalog.Material) error {
	if strings.EqualFold(filepath.Ext(out), ".json") {
		data, err := json.MarshalIndent(ms, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(out, data, 0o644)
	}
	store := &catalog.FileStore{Dir: out}
	return store.WriteMaterials(ms)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
