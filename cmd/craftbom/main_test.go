package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/poku-e/craftbom/internal/catalog"
	"github.com/poku-e/craftbom/internal/overlay"
)

// remote is an in-memory catalog server speaking the collection API.
type remote struct {
	mu   sync.Mutex
	data map[string][]byte
	// failPost maps a collection to the status its POSTs answer with.
	failPost map[string]int
}

func newRemote(t *testing.T, c catalog.Catalog) (*remote, *httptest.Server) {
	t.Helper()
	r := &remote{data: map[string][]byte{}, failPost: map[string]int{}}
	var err error
	r.data["materials"], err = json.Marshal(c.Materials)
	require.NoError(t, err)
	r.data["quests"], err = json.Marshal(c.Quests)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		name := strings.TrimPrefix(req.URL.Path, "/api/")
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.data[name]; !ok {
			http.NotFound(w, req)
			return
		}
		switch req.Method {
		case http.MethodGet:
			_, _ = w.Write(r.data[name])
		case http.MethodPost:
			if code := r.failPost[name]; code != 0 {
				http.Error(w, "rejected", code)
				return
			}
			b, _ := io.ReadAll(req.Body)
			r.data[name] = b
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	t.Cleanup(srv.Close)
	return r, srv
}

func (r *remote) materials(t *testing.T) []catalog.Material {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.Material
	require.NoError(t, json.Unmarshal(r.data["materials"], &out))
	return out
}

func (r *remote) quests(t *testing.T) []catalog.Quest {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.Quest
	require.NoError(t, json.Unmarshal(r.data["quests"], &out))
	return out
}

func smithy() catalog.Catalog {
	return catalog.Catalog{
		Materials: []catalog.Material{
			{ID: "iron_ore", Name: "Iron Ore"},
			{ID: "iron_bar", Name: "Iron Bar", Recipe: []catalog.RecipeItem{{MaterialID: "iron_ore", Quantity: 2}}},
			{ID: "sword", Name: "Sword", Recipe: []catalog.RecipeItem{{MaterialID: "iron_bar", Quantity: 3}}},
		},
		Quests: []catalog.Quest{
			{ID: "q1", Name: "Smith", Requirements: []catalog.RecipeItem{
				{MaterialID: "sword", Quantity: 2, ReserveRequired: true},
				{MaterialID: "iron_or", Quantity: 1},
			}},
		},
	}
}

type harness struct {
	t      *testing.T
	server string
	store  string
	stderr string // of the last run
}

func newHarness(t *testing.T) (*harness, *remote) {
	return newHarnessWith(t, smithy())
}

func newHarnessWith(t *testing.T, c catalog.Catalog) (*harness, *remote) {
	r, srv := newRemote(t, c)
	return &harness{
		t:      t,
		server: srv.URL,
		store:  "file:" + filepath.Join(t.TempDir(), "overlay.json"),
	}, r
}

func (h *harness) run(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	e := &env{stdout: &out, stderr: &errOut, getenv: func(string) string { return "" }}
	full := append([]string{args[0], "-server", h.server, "-store", h.store}, args[1:]...)
	err := run(context.Background(), e, full)
	h.stderr = errOut.String()
	return out.String(), err
}

func writeJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), "edit.json")
	require.NoError(t, os.WriteFile(p, b, 0o644))
	return p
}

func TestOpenStore(t *testing.T) {
	s, closer, err := openStore("mem")
	require.NoError(t, err)
	assert.IsType(t, &overlay.MemoryStore{}, s)
	assert.NoError(t, closer())

	p := filepath.Join(t.TempDir(), "o.json")
	s, _, err = openStore("file:" + p)
	require.NoError(t, err)
	require.IsType(t, &overlay.FileStore{}, s)
	assert.Equal(t, p, s.(*overlay.FileStore).Path)

	s, closer, err = openStore("redis://localhost:6379/0")
	require.NoError(t, err)
	assert.IsType(t, &overlay.RedisStore{}, s)
	assert.NoError(t, closer())

	_, _, err = openStore("file:")
	assert.Error(t, err)
	_, _, err = openStore("s3://bucket")
	assert.Error(t, err)
}

func TestRunUnknownCommand(t *testing.T) {
	var buf bytes.Buffer
	err := run(context.Background(), &env{stdout: &buf, stderr: &buf, getenv: os.Getenv}, []string{"frobnicate"})
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "usage: craftbom")
}

func TestBOMCommand(t *testing.T) {
	h, _ := newHarness(t)
	out, err := h.run("bom", "-quest", "q1")
	require.NoError(t, err)

	assert.Contains(t, out, "Smith (q1)\n")
	assert.Contains(t, out, "Sword x2 [reserve]\n  Iron Bar x6\n    Iron Ore x12\n")
	assert.Contains(t, out, "unknown material (iron_or) x1 [unknown]")
	assert.Contains(t, out, `unknown "iron_or", did you mean: iron_ore`)
}

func TestBOMCommandFixedAndStrict(t *testing.T) {
	h, _ := newHarness(t)
	out, err := h.run("bom", "-quest", "q1", "-fixed", "iron_bar")
	require.NoError(t, err)
	assert.Contains(t, out, "  Iron Bar x6 [fixed]\n")
	assert.NotContains(t, out, "Iron Ore x12")

	_, err = h.run("bom", "-quest", "q1", "-strict")
	assert.Error(t, err)

	_, err = h.run("bom", "-quest", "q9")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = h.run("bom")
	assert.Error(t, err)
}

func TestExportCommand(t *testing.T) {
	h, _ := newHarness(t)
	p := filepath.Join(t.TempDir(), "q1.xlsx")
	out, err := h.run("export", "-quest", "q1", "-out", p)
	require.NoError(t, err)
	assert.Equal(t, "OK: 4 rows -> "+p+"\n", out)

	f, err := excelize.OpenFile(p)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Tree")
}

func TestEditStatusReset(t *testing.T) {
	h, r := newHarness(t)

	out, err := h.run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "overlay:   none")

	ms := append(smithy().Materials, catalog.Material{ID: " gem ", Name: "Gem"})
	out, err = h.run("edit", "-materials", writeJSON(t, ms))
	require.NoError(t, err)
	assert.Contains(t, out, "overlay:   materials +1 ~0 -0 | quests +0 ~0 -0")
	assert.Len(t, r.materials(t), 3, "shared catalog untouched")

	out, err = h.run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "effective: 4 materials, 1 quests")
	assert.Contains(t, out, "materials +1 ~0 -0")
	assert.NotContains(t, out, "warning:")

	out, err = h.run("list", "-filter", "gem")
	require.NoError(t, err)
	assert.Contains(t, out, "gem")
	assert.NotContains(t, out, "iron_bar")

	out, err = h.run("reset")
	require.NoError(t, err)
	assert.Equal(t, "overlay cleared\n", out)

	out, err = h.run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "overlay:   none")
}

func TestEditRejectsInvalid(t *testing.T) {
	h, _ := newHarness(t)
	bad := []catalog.Material{{ID: "a", Name: ""}}
	_, err := h.run("edit", "-materials", writeJSON(t, bad))
	assert.ErrorIs(t, err, catalog.ErrValidation)

	_, err = h.run("edit")
	assert.Error(t, err)
}

func TestEditPublish(t *testing.T) {
	h, r := newHarness(t)
	ms := append(smithy().Materials, catalog.Material{ID: "gem", Name: "Gem"})
	out, err := h.run("edit", "-materials", writeJSON(t, ms), "-publish")
	require.NoError(t, err)
	assert.Contains(t, out, "overlay:   no changes")
	assert.Contains(t, out, "published")
	assert.Len(t, r.materials(t), 4)
}

func TestRemoveMaterialCommand(t *testing.T) {
	h, _ := newHarness(t)

	_, err := h.run("rm-material", "-id", "iron_ore")
	assert.ErrorIs(t, err, catalog.ErrReferenced)

	ms := append(smithy().Materials, catalog.Material{ID: "gem", Name: "Gem"})
	_, err = h.run("edit", "-materials", writeJSON(t, ms))
	require.NoError(t, err)

	out, err := h.run("rm-material", "-id", "gem")
	require.NoError(t, err)
	assert.Contains(t, out, "overlay:   no changes")
}

func TestEditPublishPartialFailure(t *testing.T) {
	h, r := newHarness(t)
	r.failPost["quests"] = http.StatusBadRequest

	qs := append(smithy().Quests, catalog.Quest{ID: "q2", Name: "Mine"})
	out, err := h.run("edit", "-quests", writeJSON(t, qs), "-publish")
	require.Error(t, err)
	assert.Contains(t, out, "quests +1 ~0 -0")
	assert.NotContains(t, out, "published")
	assert.Contains(t, h.stderr, "local overlay saved; shared catalog not fully updated")
	assert.Len(t, r.quests(t), 1)

	out, err = h.run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "effective: 3 materials, 2 quests")
}

func TestEditToleratesBrokenSharedRecords(t *testing.T) {
	c := smithy()
	c.Materials = append(c.Materials, catalog.Material{ID: "junk", Name: ""})
	h, r := newHarnessWith(t, c)

	ms := append(c.Materials, catalog.Material{ID: "gem", Name: "Gem"})
	out, err := h.run("edit", "-materials", writeJSON(t, ms))
	require.NoError(t, err)
	assert.Contains(t, out, "materials +1 ~0 -0")
	assert.Contains(t, h.stderr, "warning: shared catalog: materials[junk].name: name required")
	assert.Len(t, r.materials(t), 4)

	ms = append(ms, catalog.Material{ID: "ruby", Name: ""})
	_, err = h.run("edit", "-materials", writeJSON(t, ms))
	assert.ErrorIs(t, err, catalog.ErrValidation)
}

func TestRemoveQuestCommand(t *testing.T) {
	h, r := newHarness(t)

	_, err := h.run("rm-quest", "-id", "q9")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = h.run("rm-quest")
	assert.Error(t, err)

	out, err := h.run("rm-quest", "-id", "q1")
	require.NoError(t, err)
	assert.Contains(t, out, "quests +0 ~0 -1")
	assert.Len(t, r.quests(t), 1, "shared catalog untouched")

	out, err = h.run("list")
	require.NoError(t, err)
	assert.NotContains(t, out, "q1")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList("a, ;b"))
	assert.Empty(t, splitList(" "))
}
