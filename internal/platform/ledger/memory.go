package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is the in-process backend used by tests and local development.
// A single mutex serializes transactions, which also gives Update its
// all-or-nothing behavior: writes stage in an overlay and apply on success.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

func (m *Memory) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memTx{base: m.records, readonly: true})
}

func (m *Memory) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{
		base:    m.records,
		staged:  make(map[string][]byte),
		deleted: make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}
	for k := range tx.deleted {
		delete(m.records, k)
	}
	for k, v := range tx.staged {
		m.records[k] = v
	}
	return nil
}

func (m *Memory) Close() error { return nil }

type memTx struct {
	base     map[string][]byte
	staged   map[string][]byte
	deleted  map[string]bool
	readonly bool
}

func (t *memTx) load(key string) ([]byte, bool) {
	if t.deleted[key] {
		return nil, false
	}
	if raw, ok := t.staged[key]; ok {
		return raw, true
	}
	raw, ok := t.base[key]
	return raw, ok
}

func (t *memTx) Get(key string, v any) error {
	raw, ok := t.load(key)
	if !ok {
		return fmt.Errorf("get %s: %w", key, errNotFound)
	}
	return json.Unmarshal(raw, v)
}

func (t *memTx) Has(key string) (bool, error) {
	_, ok := t.load(key)
	return ok, nil
}

func (t *memTx) Create(key string, v any) error {
	if _, ok := t.load(key); ok {
		return fmt.Errorf("create %s: %w", key, errExists)
	}
	return t.Put(key, v)
}

func (t *memTx) Put(key string, v any) error {
	if t.readonly {
		return fmt.Errorf("put %s: read-only transaction", key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	delete(t.deleted, key)
	t.staged[key] = raw
	return nil
}

func (t *memTx) Delete(key string) error {
	if t.readonly {
		return fmt.Errorf("delete %s: read-only transaction", key)
	}
	if _, ok := t.load(key); !ok {
		return fmt.Errorf("delete %s: %w", key, errNotFound)
	}
	delete(t.staged, key)
	t.deleted[key] = true
	return nil
}

func (t *memTx) List(prefix string) ([]string, error) {
	seen := make(map[string]bool)
	for k := range t.base {
		if strings.HasPrefix(k, prefix) && !t.deleted[k] {
			seen[k] = true
		}
	}
	for k := range t.staged {
		if strings.HasPrefix(k, prefix) {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
