package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poku-e/craftbom/internal/bom"
	"github.com/poku-e/craftbom/internal/catalog"
)

const suggestionLimit = 3

type errorResp struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type bomResp struct {
	Quest        catalog.Quest       `json:"quest"`
	Tree         []*bom.Node         `json:"tree"`
	BaseTotals   bom.Totals          `json:"baseTotals"`
	AllTotals    bom.Totals          `json:"allTotals"`
	Unrecognized map[string][]string `json:"unrecognized"`
}

func serve(store *catalog.FileStore, addr string) error {
	log.Printf("listening on %s", addr)
	return http.ListenAndServe(addr, newHandler(store))
}

func newHandler(store *catalog.FileStore) http.Handler {
	mux := http.NewServeMux()

	// Collections API
	mux.HandleFunc("/api/materials", collection("materials", store.ReadMaterials, store.WriteMaterials))
	mux.HandleFunc("/api/quests", collection("quests", store.ReadQuests, store.WriteQuests))

	mux.HandleFunc("/api/references", func(w http.ResponseWriter, r *http.Request) {
		c, err := store.Load()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load catalog", err)
			return
		}
		writeJSON(w, catalog.References(c))
	})

	// Resolution API
	mux.HandleFunc("/api/bom", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		questID := strings.TrimSpace(q.Get("quest"))
		if questID == "" {
			http.Error(w, "missing 'quest' query param", http.StatusBadRequest)
			return
		}
		c, err := store.Load()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load catalog", err)
			return
		}
		quest, ok := c.Quest(questID)
		if !ok {
			writeError(w, http.StatusNotFound, "quest not found", errors.New(questID))
			return
		}
		opts := []bom.Option{bom.WithFixed(splitCSVLike(q.Get("fixed"))...)}
		if q.Get("strict") == "1" {
			opts = append(opts, bom.Strict())
		}
		start := time.Now()
		res, err := bom.ResolveQuest(quest, c.Materials, opts...)
		if err != nil {
			resolveDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
			writeError(w, http.StatusUnprocessableEntity, "resolution failed", err)
			return
		}
		resolveDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
		unknownMaterialsTotal.Add(float64(len(bom.Unknown(res))))
		writeJSON(w, bomResp{
			Quest:        quest,
			Tree:         res.Tree,
			BaseTotals:   res.BaseTotals,
			AllTotals:    res.AllTotals,
			Unrecognized: bom.Suggestions(res, c.Materials, suggestionLimit),
		})
	})

	mux.Handle("/metrics", promhttp.Handler())

	return withCommonHeaders(mux)
}

// collection serves GET (whole list) and POST (whole-list replacement).
func collection[T any](name string, read func() ([]T, error), write func([]T) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			items, err := read()
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to load "+name, err)
				return
			}
			writeJSON(w, items)
		case http.MethodPost:
			var items []T
			if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
				writeError(w, http.StatusBadRequest, "request body must be a JSON array", err)
				return
			}
			if err := write(items); err != nil {
				writeError(w, http.StatusInternalServerError, "failed to save "+name, err)
				return
			}
			collectionWritesTotal.WithLabelValues(name).Inc()
			collectionItems.WithLabelValues(name).Set(float64(len(items)))
			log.Printf("%s replaced: %d items", name, len(items))
			writeJSON(w, map[string]bool{"ok": true})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResp{Message: msg}
	if err != nil {
		resp.Error = err.Error()
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func withCommonHeaders(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

var csvSplitter = regexp.MustCompile(`[,\n;]+`)

func splitCSVLike(s string) []string {
	raw := csvSplitter.Split(s, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
