package reconcile

import (
	"time"

	"github.com/google/uuid"

	"gfx.cafe/gfx/dbchain/lib/catalog"
)

// Skip is a discovered node that was intentionally left out of the catalog.
type Skip struct {
	Key    string
	Name   string
	Status catalog.Status
	Reason string
}

// Result describes one reconciliation run.
type Result struct {
	RunID     uuid.UUID
	Owner     string
	CreatedAt time.Time

	// Catalog is the set of known good nodes the run converged on.
	Catalog catalog.Catalog

	// Persisted lists every key written by the upsert, Unchanged the subset
	// whose stored record was already identical.
	Persisted []string
	Unchanged []string
	// Pruned lists the stale keys that were deleted.
	Pruned []string

	Skipped   []Skip
	Anomalies []*SyncAnomaly

	// DryRun is set for results of Plan. Persisted and Pruned then describe
	// what a real run would have done.
	DryRun bool
}

// Changed reports whether the run wrote or deleted anything that was not
// already in place.
func (T *Result) Changed() bool {
	return len(T.Persisted) != len(T.Unchanged) || len(T.Pruned) > 0
}
