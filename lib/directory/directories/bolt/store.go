package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/caddyserver/caddy/v2"
	"go.etcd.io/bbolt"

	"gfx.cafe/gfx/dbchain/lib/directory"
)

func init() {
	caddy.RegisterModule((*Store)(nil))
}

var recordsBucket = []byte("records")

// Store keeps records in a bbolt file, one nested bucket per owner. A batch is
// written in a single transaction.
type Store struct {
	Config

	db *bbolt.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	T := &Store{
		Config: Config{
			Path: path,
		},
	}
	if err := T.open(); err != nil {
		return nil, err
	}
	return T, nil
}

func (*Store) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID: "dbchain.directories.bolt",
		New: func() caddy.Module {
			return new(Store)
		},
	}
}

func (T *Store) Provision(_ caddy.Context) error {
	if T.Path == "" {
		return errors.New("bolt directory: path is required")
	}
	return T.open()
}

func (T *Store) open() error {
	db, err := bbolt.Open(T.Path, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create records bucket: %w", err)
	}

	T.db = db
	return nil
}

func (T *Store) Cleanup() error {
	return T.Close()
}

func (T *Store) Close() error {
	if T.db == nil {
		return nil
	}
	err := T.db.Close()
	T.db = nil
	return err
}

func (T *Store) Select(_ context.Context, owner string) ([]directory.Record, error) {
	var records []directory.Record
	err := T.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(recordsBucket).Bucket([]byte(owner))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			record := directory.Record{
				Owner: owner,
				Key:   string(k),
			}
			if err := json.Unmarshal(v, &record.Attributes); err != nil {
				return fmt.Errorf("%w: %s: %v", directory.ErrMalformedRecord, k, err)
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (T *Store) SelectKeys(_ context.Context, owner string) ([]string, error) {
	var keys []string
	err := T.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(recordsBucket).Bucket([]byte(owner))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (T *Store) BatchPut(_ context.Context, owner string, records []directory.Record) error {
	return T.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.Bucket(recordsBucket).CreateBucketIfNotExists([]byte(owner))
		if err != nil {
			return err
		}
		for _, record := range records {
			value, err := json.Marshal(record.Attributes)
			if err != nil {
				return err
			}
			if err = bucket.Put([]byte(record.Key), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (T *Store) Delete(_ context.Context, owner string, key string) error {
	return T.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(recordsBucket).Bucket([]byte(owner))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
}

var _ directory.Store = (*Store)(nil)
var _ caddy.Module = (*Store)(nil)
var _ caddy.Provisioner = (*Store)(nil)
var _ caddy.CleanerUpper = (*Store)(nil)
