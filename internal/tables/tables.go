// Package tables keeps the registry of history tables and their defaults.
package tables

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rzbill/tablehistory/internal/history"
	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
)

// ErrNotFound is returned for tables that were never created.
var ErrNotFound = errors.New("table not found")

// Meta holds table metadata.
type Meta struct {
	Name string `json:"name"`
	// Serializability is the policy applied to writes that name none.
	Serializability history.Policy `json:"serializability"`
	CreatedAtMs     int64          `json:"createdAtMs"`
}

var (
	metaPrefix = []byte("tblmeta/")
	// ensureMu makes check-then-create atomic within the process.
	ensureMu sync.Mutex
)

func metaKey(name string) []byte {
	k := make([]byte, 0, len(metaPrefix)+len(name))
	k = append(k, metaPrefix...)
	k = append(k, name...)
	return k
}

// EnsureTable creates a table record if absent and returns the effective
// meta. An existing table keeps its stored policy; policy only applies on
// creation and "" selects history.DefaultPolicy.
func EnsureTable(db *pebblestore.DB, name string, policy history.Policy) (Meta, bool, error) {
	if policy == "" {
		policy = history.DefaultPolicy
	}
	if _, err := history.ParsePolicy(string(policy)); err != nil {
		return Meta{}, false, err
	}
	ensureMu.Lock()
	defer ensureMu.Unlock()

	if m, err := Get(db, name); err == nil {
		return m, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Meta{}, false, err
	}
	m := Meta{Name: name, Serializability: policy, CreatedAtMs: time.Now().UnixMilli()}
	b, err := json.Marshal(m)
	if err != nil {
		return Meta{}, false, err
	}
	if err := db.Set(metaKey(name), b); err != nil {
		return Meta{}, false, err
	}
	return m, true, nil
}

// Get returns the meta of name.
func Get(db pebblestore.Reader, name string) (Meta, error) {
	b, err := db.Get(metaKey(name))
	if pebblestore.IsNotFound(err) {
		return Meta{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return Meta{}, err
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, fmt.Errorf("table %q: %w", name, err)
	}
	return m, nil
}

// List returns every table sorted by name.
func List(db *pebblestore.DB) ([]Meta, error) {
	it, err := db.NewIter(pebblestore.PrefixIterOptions(metaPrefix))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []Meta
	for ok := it.First(); ok; ok = it.Next() {
		var m Meta
		if err := json.Unmarshal(it.Value(), &m); err != nil {
			return nil, fmt.Errorf("table %q: %w", it.Key()[len(metaPrefix):], err)
		}
		out = append(out, m)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
