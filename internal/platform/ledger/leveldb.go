package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB is the embedded single-node backend. Transactions stage writes in
// memory and commit through a leveldb batch, so a failed Update leaves the
// database untouched. A mutex serializes writers; leveldb itself is safe for
// concurrent readers.
type LevelDB struct {
	mu sync.Mutex
	db *leveldb.DB
}

// OpenLevelDB opens (or creates) the database at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap, err := l.db.GetSnapshot()
	if err != nil {
		return fmt.Errorf("leveldb snapshot: %w", err)
	}
	defer snap.Release()
	return fn(&ldbTx{snap: snap, readonly: true})
}

func (l *LevelDB) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	snap, err := l.db.GetSnapshot()
	if err != nil {
		return fmt.Errorf("leveldb snapshot: %w", err)
	}
	defer snap.Release()
	tx := &ldbTx{
		snap:    snap,
		staged:  make(map[string][]byte),
		deleted: make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	for k := range tx.deleted {
		batch.Delete([]byte(k))
	}
	for k, v := range tx.staged {
		batch.Put([]byte(k), v)
	}
	if err := l.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldb commit: %w", err)
	}
	return nil
}

func (l *LevelDB) Close() error { return l.db.Close() }

type ldbTx struct {
	snap     *leveldb.Snapshot
	staged   map[string][]byte
	deleted  map[string]bool
	readonly bool
}

func (t *ldbTx) load(key string) ([]byte, bool, error) {
	if t.deleted[key] {
		return nil, false, nil
	}
	if raw, ok := t.staged[key]; ok {
		return raw, true, nil
	}
	raw, err := t.snap.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (t *ldbTx) Get(key string, v any) error {
	raw, ok, err := t.load(key)
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("get %s: %w", key, errNotFound)
	}
	return json.Unmarshal(raw, v)
}

func (t *ldbTx) Has(key string) (bool, error) {
	_, ok, err := t.load(key)
	if err != nil {
		return false, fmt.Errorf("has %s: %w", key, err)
	}
	return ok, nil
}

func (t *ldbTx) Create(key string, v any) error {
	ok, err := t.Has(key)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("create %s: %w", key, errExists)
	}
	return t.Put(key, v)
}

func (t *ldbTx) Put(key string, v any) error {
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

func (t *ldbTx) Delete(key string) error {
	if t.readonly {
		return fmt.Errorf("delete %s: read-only transaction", key)
	}
	ok, err := t.Has(key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("delete %s: %w", key, errNotFound)
	}
	delete(t.staged, key)
	t.deleted[key] = true
	return nil
}

func (t *ldbTx) List(prefix string) ([]string, error) {
	seen := make(map[string]bool)
	iter := t.snap.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	for iter.Next() {
		k := string(iter.Key())
		if !t.deleted[k] {
			seen[k] = true
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
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
