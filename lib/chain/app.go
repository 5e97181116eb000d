package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/caddyserver/caddy/v2"
	"go.uber.org/zap"

	"gfx.cafe/gfx/dbchain/lib/catalog"
	"gfx.cafe/gfx/dbchain/lib/monitor"
	"gfx.cafe/gfx/dbchain/lib/reconcile"
	"gfx.cafe/gfx/dbchain/lib/util/maps"
)

func init() {
	caddy.RegisterModule((*App)(nil))
}

// App reconciles and monitors every configured cluster periodically.
type App struct {
	Config

	clusters []*Cluster

	results maps.RWLocked[string, *reconcile.Result]
	reports maps.RWLocked[string, *monitor.Report]

	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *zap.Logger
}

func (T *App) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID: "dbchain",
		New: func() caddy.Module {
			return new(App)
		},
	}
}

func (T *App) Provision(ctx caddy.Context) error {
	T.log = ctx.Logger()

	T.clusters = make([]*Cluster, 0, len(T.Clusters))
	seen := make(map[string]struct{}, len(T.Clusters))
	for _, config := range T.Clusters {
		if _, ok := seen[config.Owner]; ok {
			return fmt.Errorf("duplicate cluster owner %q", config.Owner)
		}
		seen[config.Owner] = struct{}{}

		cluster := &Cluster{
			ClusterConfig: config,
		}
		if err := cluster.Provision(ctx); err != nil {
			return err
		}
		T.clusters = append(T.clusters, cluster)
	}

	return nil
}

// Cluster returns the cluster with the given owner.
func (T *App) Cluster(owner string) (*Cluster, bool) {
	for _, cluster := range T.clusters {
		if cluster.Owner == owner {
			return cluster, true
		}
	}
	return nil, false
}

func (T *App) Owners() []string {
	owners := make([]string, 0, len(T.clusters))
	for _, cluster := range T.clusters {
		owners = append(owners, cluster.Owner)
	}
	return owners
}

// LastResult returns the outcome of the last successful reconciliation of a
// cluster.
func (T *App) LastResult(owner string) (*reconcile.Result, bool) {
	return T.results.Load(owner)
}

// LastReport returns the last monitoring report of a cluster.
func (T *App) LastReport(owner string) (*monitor.Report, bool) {
	return T.reports.Load(owner)
}

func (T *App) sync(ctx context.Context, cluster *Cluster) {
	res, err := cluster.Sync(ctx)
	if err != nil {
		// already logged by the reconciler
		return
	}
	T.results.Store(cluster.Owner, res)
}

func (T *App) check(ctx context.Context, cluster *Cluster) {
	var c catalog.Catalog
	if res, ok := T.results.Load(cluster.Owner); ok {
		c = res.Catalog
	} else {
		var err error
		c, err = cluster.Load(ctx)
		if err != nil {
			cluster.log.Warn("failed to load catalog", zap.Error(err))
			return
		}
	}
	if c.Len() == 0 {
		return
	}

	report, err := cluster.Monitor(ctx, c)
	if err != nil {
		var violation *catalog.TopologyInvariantViolation
		if !errors.As(err, &violation) {
			cluster.log.Warn("failed to monitor", zap.Error(err))
			return
		}
	}
	T.reports.Store(cluster.Owner, report)
}

func (T *App) loop(ctx context.Context, cluster *Cluster) {
	defer T.wg.Done()

	var reconcileTick, monitorTick <-chan time.Time
	if T.ReconcilePeriod != 0 {
		r := time.NewTicker(T.ReconcilePeriod.Duration())
		defer r.Stop()

		reconcileTick = r.C
	}
	if T.MonitorPeriod != 0 {
		m := time.NewTicker(T.MonitorPeriod.Duration())
		defer m.Stop()

		monitorTick = m.C
	}

	if reconcileTick != nil {
		T.sync(ctx, cluster)
	}
	if monitorTick != nil {
		T.check(ctx, cluster)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-reconcileTick:
			T.sync(ctx, cluster)
		case <-monitorTick:
			T.check(ctx, cluster)
		}
	}
}

func (T *App) Start() error {
	if T.ReconcilePeriod == 0 && T.MonitorPeriod == 0 {
		T.log.Info("no periods configured, nothing to run")
		return nil
	}

	var ctx context.Context
	ctx, T.cancel = context.WithCancel(context.Background())
	for _, cluster := range T.clusters {
		T.wg.Add(1)
		go T.loop(ctx, cluster)
	}
	T.log.Info("started", zap.Strings("clusters", T.Owners()))

	return nil
}

func (T *App) Stop() error {
	if T.cancel != nil {
		T.cancel()
		T.cancel = nil
	}
	T.wg.Wait()

	return nil
}

var _ caddy.Module = (*App)(nil)
var _ caddy.Provisioner = (*App)(nil)
var _ caddy.App = (*App)(nil)
