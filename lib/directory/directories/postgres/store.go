package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caddyserver/caddy/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gfx.cafe/gfx/dbchain/lib/directory"
)

func init() {
	caddy.RegisterModule((*Store)(nil))
}

const DefaultTable = "dbchain_directory"

// Store keeps records in a PostgreSQL table keyed by (owner, key) with the
// attributes in a jsonb column.
type Store struct {
	Config

	table string
	pool  *pgxpool.Pool
}

// Open connects to the database described by config and creates the table.
func Open(ctx context.Context, config Config) (*Store, error) {
	T := &Store{
		Config: config,
	}
	if err := T.open(ctx); err != nil {
		return nil, err
	}
	return T, nil
}

func (*Store) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID: "dbchain.directories.postgres",
		New: func() caddy.Module {
			return new(Store)
		},
	}
}

func (T *Store) Provision(ctx caddy.Context) error {
	return T.open(ctx)
}

func (T *Store) open(ctx context.Context) error {
	if T.URL == "" {
		return errors.New("postgres directory: url is required")
	}
	T.table = pgx.Identifier{T.Table}.Sanitize()
	if T.Table == "" {
		T.table = pgx.Identifier{DefaultTable}.Sanitize()
	}

	config, err := pgxpool.ParseConfig(T.URL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}
	if T.MaxConns > 0 {
		config.MaxConns = T.MaxConns
	}
	config.MaxConnLifetime = 5 * time.Minute
	if T.MaxConnLifetime != 0 {
		config.MaxConnLifetime = T.MaxConnLifetime.Duration()
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("database unreachable: %w", err)
	}
	T.pool = pool

	if err = T.migrate(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (T *Store) migrate(ctx context.Context) error {
	_, err := T.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+T.table+` (
	owner      text        NOT NULL,
	key        text        NOT NULL,
	attributes jsonb       NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (owner, key)
)`)
	return err
}

func (T *Store) Cleanup() error {
	if T.pool != nil {
		T.pool.Close()
		T.pool = nil
	}
	return nil
}

func (T *Store) Select(ctx context.Context, owner string) ([]directory.Record, error) {
	rows, err := T.pool.Query(ctx, `SELECT key, attributes FROM `+T.table+` WHERE owner = $1`, owner)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (directory.Record, error) {
		record := directory.Record{
			Owner: owner,
		}
		err := row.Scan(&record.Key, &record.Attributes)
		return record, err
	})
}

func (T *Store) SelectKeys(ctx context.Context, owner string) ([]string, error) {
	rows, err := T.pool.Query(ctx, `SELECT key FROM `+T.table+` WHERE owner = $1`, owner)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// BatchPut upserts every record inside one transaction.
func (T *Store) BatchPut(ctx context.Context, owner string, records []directory.Record) error {
	return pgx.BeginFunc(ctx, T.pool, func(tx pgx.Tx) error {
		batch := new(pgx.Batch)
		for _, record := range records {
			batch.Queue(`INSERT INTO `+T.table+` (owner, key, attributes, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (owner, key) DO UPDATE SET attributes = excluded.attributes, updated_at = excluded.updated_at`,
				owner, record.Key, record.Attributes)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (T *Store) Delete(ctx context.Context, owner string, key string) error {
	_, err := T.pool.Exec(ctx, `DELETE FROM `+T.table+` WHERE owner = $1 AND key = $2`, owner, key)
	return err
}

var _ directory.Store = (*Store)(nil)
var _ caddy.Module = (*Store)(nil)
var _ caddy.Provisioner = (*Store)(nil)
var _ caddy.CleanerUpper = (*Store)(nil)
