package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/caddyserver/caddy/v2"
	"go.uber.org/zap"

	"gfx.cafe/gfx/dbchain/lib/catalog"
	"gfx.cafe/gfx/dbchain/lib/directory"
	"gfx.cafe/gfx/dbchain/lib/discovery"
	"gfx.cafe/gfx/dbchain/lib/monitor"
	"gfx.cafe/gfx/dbchain/lib/reconcile"
)

var ErrNoCatalog = errors.New("no catalog persisted yet")

// Cluster is one configured database chain.
type Cluster struct {
	ClusterConfig

	directory  directory.Directory
	reconciler reconcile.Reconciler
	monitor    monitor.Monitor

	// one reconciliation in flight
	mu sync.Mutex

	log *zap.Logger
}

func (T *Cluster) Provision(ctx caddy.Context) error {
	if T.Owner == "" {
		return errors.New("cluster owner is required")
	}
	T.log = ctx.Logger().With(zap.String("cluster", T.Owner))

	if T.Discoverer == nil {
		return fmt.Errorf("cluster %s: discoverer is required", T.Owner)
	}
	val, err := ctx.LoadModule(T, "Discoverer")
	if err != nil {
		return fmt.Errorf("loading discoverer module: %v", err)
	}
	source, ok := val.(discovery.Source)
	if !ok {
		return fmt.Errorf("cluster %s: module %T is not a discovery source", T.Owner, val)
	}

	if T.Directory == nil {
		return fmt.Errorf("cluster %s: directory is required", T.Owner)
	}
	val, err = ctx.LoadModule(T, "Directory")
	if err != nil {
		return fmt.Errorf("loading directory module: %v", err)
	}
	store, ok := val.(directory.Store)
	if !ok {
		return fmt.Errorf("cluster %s: module %T is not a directory store", T.Owner, val)
	}

	T.init(source, directory.New(store), &T.Collector)
	return nil
}

func (T *Cluster) init(source discovery.Source, dir directory.Directory, collector monitor.Collector) {
	if T.log == nil {
		T.log = zap.NewNop()
	}
	T.directory = dir
	T.reconciler = reconcile.Reconciler{
		Owner:     T.Owner,
		ClusterID: T.ClusterID,
		Source:    source,
		Directory: dir,
		Exclude:   T.Exclude,
		Adapter:   T.Adapter,
		Log:       T.log,
	}
	T.monitor = monitor.Monitor{
		Collector: collector,
		Timeout:   T.CollectTimeout.Duration(),
		Log:       T.log,
	}
}

// Sync reconciles the directory against discovery.
func (T *Cluster) Sync(ctx context.Context) (*reconcile.Result, error) {
	T.mu.Lock()
	defer T.mu.Unlock()
	return T.reconciler.Reconcile(ctx)
}

// Plan reports what Sync would change.
func (T *Cluster) Plan(ctx context.Context) (*reconcile.Result, error) {
	T.mu.Lock()
	defer T.mu.Unlock()
	return T.reconciler.Plan(ctx)
}

// Load returns the persisted catalog without consulting discovery.
func (T *Cluster) Load(ctx context.Context) (catalog.Catalog, error) {
	return T.directory.LoadAll(ctx, T.Owner)
}

// Monitor collects the metrics of c.
func (T *Cluster) Monitor(ctx context.Context, c catalog.Catalog) (*monitor.Report, error) {
	return T.monitor.Run(ctx, c)
}

// MonitorPersisted monitors the persisted catalog.
func (T *Cluster) MonitorPersisted(ctx context.Context) (*monitor.Report, error) {
	c, err := T.Load(ctx)
	if err != nil {
		return nil, err
	}
	if c.Len() == 0 {
		return nil, fmt.Errorf("cluster %s: %w", T.Owner, ErrNoCatalog)
	}
	return T.Monitor(ctx, c)
}
