package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/m4a/m4a/internal/protocol"
)

type rec struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryCreateGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.Update(ctx, func(tx Tx) error {
		return tx.Create(Key("claim", "alice"), rec{Name: "alice", Count: 1})
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	err = m.Update(ctx, func(tx Tx) error {
		return tx.Create(Key("claim", "alice"), rec{Name: "alice"})
	})
	if !errors.Is(err, protocol.ErrAlreadyExists) {
		t.Fatalf("duplicate create: got %v, want ErrAlreadyExists", err)
	}

	var got rec
	err = m.View(ctx, func(tx Tx) error {
		return tx.Get(Key("claim", "alice"), &got)
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "alice" || got.Count != 1 {
		t.Errorf("got %+v, want {alice 1}", got)
	}

	err = m.Update(ctx, func(tx Tx) error {
		return tx.Delete(Key("claim", "alice"))
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = m.View(ctx, func(tx Tx) error {
		return tx.Get(Key("claim", "alice"), &got)
	})
	if !errors.Is(err, protocol.ErrNotFound) {
		t.Fatalf("get after delete: got %v, want ErrNotFound", err)
	}
}

func TestMemoryUpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	boom := errors.New("boom")
	err := m.Update(ctx, func(tx Tx) error {
		if err := tx.Put(Key("stats"), rec{Count: 7}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("update: got %v, want boom", err)
	}

	err = m.View(ctx, func(tx Tx) error {
		var r rec
		return tx.Get(Key("stats"), &r)
	})
	if !errors.Is(err, protocol.ErrNotFound) {
		t.Fatalf("staged write leaked: %v", err)
	}
}

func TestMemoryTransactionSeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.Update(ctx, func(tx Tx) error {
		if err := tx.Put(Key("a"), rec{Count: 1}); err != nil {
			return err
		}
		var r rec
		if err := tx.Get(Key("a"), &r); err != nil {
			return err
		}
		if r.Count != 1 {
			t.Errorf("read own write: got %d, want 1", r.Count)
		}
		if err := tx.Delete(Key("a")); err != nil {
			return err
		}
		ok, err := tx.Has(Key("a"))
		if err != nil {
			return err
		}
		if ok {
			t.Error("key visible after staged delete")
		}
		return tx.Put(Key("a"), rec{Count: 2})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var r rec
	if err := m.View(ctx, func(tx Tx) error { return tx.Get(Key("a"), &r) }); err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.Count != 2 {
		t.Errorf("final value: got %d, want 2", r.Count)
	}
}

func TestMemoryListPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.Update(ctx, func(tx Tx) error {
		for _, k := range []string{
			Key("claim", "a"), Key("claim", "b"),
			Key("processed-claim", "a", "1"),
		} {
			if err := tx.Put(k, rec{}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	var keys []string
	err = m.View(ctx, func(tx Tx) error {
		var err error
		keys, err = tx.List("claim/")
		return err
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 || keys[0] != "claim/a" || keys[1] != "claim/b" {
		t.Errorf("list claim/: got %v", keys)
	}
}
