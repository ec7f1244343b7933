// Package evidence reads and writes the locally cached output of pipeline stages.
//
// Each stage has a key in a key-value store. A stage has evidence when its key
// holds meaningful JSON, i.e. the dashboard produced output for it. The gate
// only reads presence; the data itself is opaque here.
//
// Key types:
//   - [Store] - Key-value store that can also report stage evidence
//   - [FileStore] - One JSON file per key in a directory
//   - [SQLiteStore] - Single-table SQLite store
//   - [MemoryStore] - In-process store, mainly for tests
//   - [Watcher] - fsnotify-based change signal for a [FileStore] directory
package evidence

import (
	"context"
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"stagegate/internal/stage"
)

// ErrNotFound is returned by [Store.Get] when a key holds no data.
var ErrNotFound = errors.New("evidence not found")

// Store is a key-value store holding stage output.
//
// Evidence reports presence for every stage using the store's [Keys].
// A failure to read a single key counts as absence for that key; only
// failures of the whole store are returned as errors.
type Store interface {
	Evidence(ctx context.Context) (stage.Evidence, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Keys maps each stage to the store key holding its output.
type Keys map[stage.Stage]string

// DefaultKeys returns the default mapping: each stage is stored under its
// own name.
func DefaultKeys() Keys {
	k := make(Keys, len(stage.All()))
	for _, s := range stage.All() {
		k[s] = s.String()
	}
	return k
}

// Key returns the store key for s, falling back to the stage name.
func (k Keys) Key(s stage.Stage) string {
	if key, ok := k[s]; ok && key != "" {
		return key
	}
	return s.String()
}

// Present reports whether data counts as evidence: valid JSON that is not
// null, false, an empty string, an empty object or an empty array.
func Present(data []byte) bool {
	if len(strings.TrimSpace(string(data))) == 0 || !gjson.ValidBytes(data) {
		return false
	}

	res := gjson.ParseBytes(data)
	switch res.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return strings.TrimSpace(res.Str) != ""
	case gjson.JSON:
		if res.IsObject() || res.IsArray() {
			empty := true
			res.ForEach(func(_, _ gjson.Result) bool {
				empty = false
				return false
			})
			return !empty
		}
	}
	return true
}

// collect builds stage evidence by looking up every stage key with get.
// Lookup errors mean absence.
func collect(ctx context.Context, keys Keys, get func(ctx context.Context, key string) ([]byte, error)) (stage.Evidence, error) {
	ev := make(stage.Evidence, len(stage.All()))
	for _, s := range stage.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := get(ctx, keys.Key(s))
		if err != nil {
			continue
		}
		if Present(data) {
			ev[s] = true
		}
	}
	return ev, nil
}
