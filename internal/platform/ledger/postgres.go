package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the shared-deployment backend. Records live in a single
// key/jsonb table and every Update runs as a serializable transaction, so
// concurrent adjudicators see the same exactly-one-winner behavior as the
// embedded backends.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL and verifies the connection.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// EnsureSchema creates the records table if it does not exist. Called by the
// migrate command.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS m4a_records (
			key     text PRIMARY KEY,
			payload jsonb NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) View(ctx context.Context, fn func(Tx) error) error {
	return p.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

func (p *Postgres) Update(ctx context.Context, fn func(Tx) error) error {
	err := p.run(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
	// Serialization failures are retried once; the loser of a conflicting
	// assignment re-reads and fails the domain check instead.
	if isSerializationFailure(err) {
		err = p.run(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
	}
	return err
}

func (p *Postgres) run(ctx context.Context, opts pgx.TxOptions, fn func(Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := fn(&pgTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

type pgTx struct {
	ctx context.Context
	tx  pgx.Tx
}

func (t *pgTx) Get(key string, v any) error {
	var raw []byte
	err := t.tx.QueryRow(t.ctx,
		`SELECT payload FROM m4a_records WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("get %s: %w", key, errNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return json.Unmarshal(raw, v)
}

func (t *pgTx) Has(key string) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(t.ctx,
		`SELECT EXISTS (SELECT 1 FROM m4a_records WHERE key = $1)`, key).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("has %s: %w", key, err)
	}
	return ok, nil
}

func (t *pgTx) Create(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("create %s: %w", key, err)
	}
	tag, err := t.tx.Exec(t.ctx,
		`INSERT INTO m4a_records (key, payload) VALUES ($1, $2)
		 ON CONFLICT (key) DO NOTHING`, key, raw)
	if err != nil {
		return fmt.Errorf("create %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("create %s: %w", key, errExists)
	}
	return nil
}

func (t *pgTx) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	_, err = t.tx.Exec(t.ctx,
		`INSERT INTO m4a_records (key, payload) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload`, key, raw)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (t *pgTx) Delete(key string) error {
	tag, err := t.tx.Exec(t.ctx,
		`DELETE FROM m4a_records WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s: %w", key, errNotFound)
	}
	return nil
}

func (t *pgTx) List(prefix string) ([]string, error) {
	rows, err := t.tx.Query(t.ctx,
		`SELECT key FROM m4a_records WHERE key LIKE $1 || '%' ORDER BY key`,
		prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return keys, nil
}
