// Command craftbom-server serves the canonical material and quest catalog
// from JSON files. Every POST replaces a whole collection.
package main

import (
	"flag"
	"log"
	"path/filepath"

	"github.com/poku-e/craftbom/internal/catalog"
)

func main() {
	var addr string
	var dataDir string

	flag.StringVar(&addr, "addr", ":8080", "Listen address")
	flag.StringVar(&dataDir, "data", "data", "Directory holding materials.json and quests.json")
	flag.Parse()

	if !filepath.IsAbs(dataDir) {
		if abs, err := filepath.Abs(dataDir); err == nil {
			dataDir = abs
		}
	}

	store := &catalog.FileStore{Dir: dataDir}
	c, err := store.Load()
	if err != nil {
		log.Fatalf("load catalog: %v", err)
	}
	log.Printf("materials: %d | quests: %d | dir: %s", len(c.Materials), len(c.Quests), dataDir)

	if err := serve(store, addr); err != nil {
		log.Fatal(err)
	}
}
