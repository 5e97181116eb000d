package directory

import (
	"context"
	"fmt"
	"sort"

	"gfx.cafe/gfx/dbchain/lib/catalog"
)

// Directory is the durable catalog store.
type Directory interface {
	// LoadAll returns every node owned by owner. An owner without records
	// yields an empty catalog.
	LoadAll(ctx context.Context, owner string) (catalog.Catalog, error)
	// ListKeys returns the keys of every record owned by owner.
	ListKeys(ctx context.Context, owner string) ([]string, error)
	// UpsertAll writes every node of c. It is idempotent per key, so a failed
	// call can be retried as a whole.
	UpsertAll(ctx context.Context, owner string, c catalog.Catalog) error
	// DeleteByKey removes a record. Deleting a missing key is not an error.
	DeleteByKey(ctx context.Context, owner string, key string) error
}

// Store is a flat record backend. Implementations only move records; the
// node codec lives in Client.
type Store interface {
	Select(ctx context.Context, owner string) ([]Record, error)
	SelectKeys(ctx context.Context, owner string) ([]string, error)
	BatchPut(ctx context.Context, owner string, records []Record) error
	Delete(ctx context.Context, owner string, key string) error
}

// Client implements Directory on top of a Store.
type Client struct {
	store Store
}

func New(store Store) *Client {
	return &Client{
		store: store,
	}
}

func (T *Client) LoadAll(ctx context.Context, owner string) (catalog.Catalog, error) {
	records, err := T.store.Select(ctx, owner)
	if err != nil {
		return catalog.Catalog{}, &Unavailable{Op: OpLoad, Owner: owner, Err: err}
	}

	nodes := make([]catalog.Node, 0, len(records))
	for _, record := range records {
		node, err := Decode(record)
		if err != nil {
			return catalog.Catalog{}, fmt.Errorf("directory load for %s: %w", owner, err)
		}
		nodes = append(nodes, node)
	}

	// masters first, then by key
	sort.SliceStable(nodes, func(i, j int) bool {
		mi, mj := nodes[i].Role == catalog.RoleMaster, nodes[j].Role == catalog.RoleMaster
		if mi != mj {
			return mi
		}
		return nodes[i].Key < nodes[j].Key
	})

	return catalog.Make(nodes...), nil
}

func (T *Client) ListKeys(ctx context.Context, owner string) ([]string, error) {
	keys, err := T.store.SelectKeys(ctx, owner)
	if err != nil {
		return nil, &Unavailable{Op: OpList, Owner: owner, Err: err}
	}
	sort.Strings(keys)
	return keys, nil
}

func (T *Client) UpsertAll(ctx context.Context, owner string, c catalog.Catalog) error {
	if c.Len() == 0 {
		return nil
	}

	records := make([]Record, 0, c.Len())
	c.Range(func(node catalog.Node) bool {
		records = append(records, Encode(owner, node))
		return true
	})

	if err := T.store.BatchPut(ctx, owner, records); err != nil {
		return &Unavailable{Op: OpUpsert, Owner: owner, Partial: true, Err: err}
	}
	return nil
}

func (T *Client) DeleteByKey(ctx context.Context, owner string, key string) error {
	if err := T.store.Delete(ctx, owner, key); err != nil {
		return &Unavailable{Op: OpDelete, Owner: owner, Key: key, Err: err}
	}
	return nil
}

var _ Directory = (*Client)(nil)

type Op string

const (
	OpLoad   Op = "load"
	OpList   Op = "list"
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Unavailable is returned for every failed directory operation. Partial is set
// when a write may have been applied to some records but not others.
type Unavailable struct {
	Op      Op
	Owner   string
	Key     string
	Partial bool
	Err     error
}

func (T *Unavailable) Error() string {
	msg := fmt.Sprintf("directory %s failed for %s", T.Op, T.Owner)
	if T.Key != "" {
		msg += "/" + T.Key
	}
	if T.Partial {
		msg += " (possibly partially applied)"
	}
	return msg + ": " + T.Err.Error()
}

func (T *Unavailable) Unwrap() error {
	return T.Err
}

var _ error = (*Unavailable)(nil)
