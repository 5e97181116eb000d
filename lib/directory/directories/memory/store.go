package memory

import (
	"context"
	"sync"

	"github.com/caddyserver/caddy/v2"

	"gfx.cafe/gfx/dbchain/lib/directory"
	"gfx.cafe/gfx/dbchain/lib/util/maps"
)

func init() {
	caddy.RegisterModule((*Store)(nil))
}

// Call is one operation observed by a Store.
type Call struct {
	Op    directory.Op
	Owner string
	Key   string
}

// Store keeps records in process memory. It is meant for dry runs and tests;
// Fail can inject errors before any operation touches the records.
type Store struct {
	// Fail, if set, is called before every operation, and for BatchPut once
	// per record. A non nil result aborts the operation at that point.
	Fail func(call Call) error `json:"-"`

	records maps.TwoKey[string, string, directory.Record]
	calls   []Call
	mu      sync.Mutex
}

func (*Store) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID: "dbchain.directories.memory",
		New: func() caddy.Module {
			return new(Store)
		},
	}
}

func (T *Store) observe(call Call) error {
	T.calls = append(T.calls, call)
	if T.Fail != nil {
		return T.Fail(call)
	}
	return nil
}

func (T *Store) Select(_ context.Context, owner string) ([]directory.Record, error) {
	T.mu.Lock()
	defer T.mu.Unlock()

	if err := T.observe(Call{Op: directory.OpLoad, Owner: owner}); err != nil {
		return nil, err
	}

	var records []directory.Record
	T.records.RangeFirst(owner, func(_ string, record directory.Record) bool {
		records = append(records, clone(record))
		return true
	})
	return records, nil
}

func (T *Store) SelectKeys(_ context.Context, owner string) ([]string, error) {
	T.mu.Lock()
	defer T.mu.Unlock()

	if err := T.observe(Call{Op: directory.OpList, Owner: owner}); err != nil {
		return nil, err
	}

	var keys []string
	T.records.RangeFirst(owner, func(key string, _ directory.Record) bool {
		keys = append(keys, key)
		return true
	})
	return keys, nil
}

func (T *Store) BatchPut(_ context.Context, owner string, records []directory.Record) error {
	T.mu.Lock()
	defer T.mu.Unlock()

	for _, record := range records {
		if err := T.observe(Call{Op: directory.OpUpsert, Owner: owner, Key: record.Key}); err != nil {
			return err
		}
		T.records.Store(owner, record.Key, clone(record))
	}
	return nil
}

func (T *Store) Delete(_ context.Context, owner string, key string) error {
	T.mu.Lock()
	defer T.mu.Unlock()

	if err := T.observe(Call{Op: directory.OpDelete, Owner: owner, Key: key}); err != nil {
		return err
	}
	T.records.Delete(owner, key)
	return nil
}

// Calls returns every operation observed so far, in order.
func (T *Store) Calls() []Call {
	T.mu.Lock()
	defer T.mu.Unlock()
	calls := make([]Call, len(T.calls))
	copy(calls, T.calls)
	return calls
}

// Len returns the number of stored records across all owners.
func (T *Store) Len() int {
	T.mu.Lock()
	defer T.mu.Unlock()
	return T.records.Len()
}

func clone(record directory.Record) directory.Record {
	attrs := make(map[string]string, len(record.Attributes))
	for k, v := range record.Attributes {
		attrs[k] = v
	}
	record.Attributes = attrs
	return record
}

var _ directory.Store = (*Store)(nil)
var _ caddy.Module = (*Store)(nil)
