package overlay

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/tidwall/gjson"

	"github.com/poku-e/craftbom/internal/catalog"
)

// ErrMalformed means the blob is not a JSON object at all.
var ErrMalformed = errors.New("overlay blob is not a JSON object")

// Decode parses a persisted blob field by field. A missing or mistyped field
// becomes its empty default and unreadable entries are skipped, so one bad
// field never discards the rest.
func Decode(data []byte) (*UserOverlay, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrMalformed
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, ErrMalformed
	}
	o := &UserOverlay{
		Materials: decodeEntities[catalog.Material](doc.Get("materials")),
		Quests:    decodeEntities[catalog.Quest](doc.Get("quests")),
	}
	if sig := doc.Get("baseSignature"); sig.Type == gjson.String {
		o.BaseSignature = sig.Str
	}
	if saved := doc.Get("savedAt"); saved.Type == gjson.String {
		if ts, err := time.Parse(time.RFC3339Nano, saved.Str); err == nil {
			o.SavedAt = ts
		}
	}
	return o, nil
}

func decodeEntities[T catalog.Entity](r gjson.Result) EntityOverlay[T] {
	out := newEntityOverlay[T]()
	if !r.IsObject() {
		return out
	}

	if added := r.Get("added"); added.IsArray() {
		added.ForEach(func(_, item gjson.Result) bool {
			var v T
			if json.Unmarshal([]byte(item.Raw), &v) == nil && v.Key() != "" {
				out.Added = append(out.Added, v)
			}
			return true
		})
	}

	if updated := r.Get("updated"); updated.IsObject() {
		updated.ForEach(func(id, item gjson.Result) bool {
			var v T
			if item.IsObject() && json.Unmarshal([]byte(item.Raw), &v) == nil {
				out.Updated[id.String()] = v
			}
			return true
		})
	}

	if deleted := r.Get("deleted"); deleted.IsArray() {
		deleted.ForEach(func(_, item gjson.Result) bool {
			if item.Type == gjson.String && item.Str != "" {
				out.Deleted = append(out.Deleted, item.Str)
			}
			return true
		})
	}
	return out
}

// Encode is the inverse of Decode.
func Encode(o *UserOverlay) ([]byte, error) {
	return json.Marshal(o)
}
