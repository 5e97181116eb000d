package reconcile

import (
	"context"
	"errors"
	"slices"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"gfx.cafe/gfx/dbchain/lib/catalog"
	"gfx.cafe/gfx/dbchain/lib/directory"
	"gfx.cafe/gfx/dbchain/lib/discovery"
	"gfx.cafe/gfx/dbchain/lib/instrumentation/prom"
)

const (
	DefaultAdapter = "postgresql"
	SharedDatabase = "SHARED_DATABASE"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Reconciler converges the directory records of one owner onto the topology
// reported by a discovery source. It is not safe to run two reconcilers for
// the same owner at once.
type Reconciler struct {
	// Owner namespaces the directory records and prefixes every node key.
	Owner string
	// ClusterID is passed to the discovery source. Defaults to Owner.
	ClusterID string

	Source    discovery.Source
	Directory directory.Directory

	// Exclude lists node names that are never persisted. nil means
	// SHARED_DATABASE.
	Exclude []string
	// Adapter is stamped on every node. Defaults to postgresql.
	Adapter string

	Now    func() time.Time
	Log    *zap.Logger
	Tracer trace.Tracer
}

func (T *Reconciler) clusterID() string {
	if T.ClusterID != "" {
		return T.ClusterID
	}
	return T.Owner
}

func (T *Reconciler) exclude() []string {
	if T.Exclude == nil {
		return []string{SharedDatabase}
	}
	return T.Exclude
}

func (T *Reconciler) adapter() string {
	if T.Adapter == "" {
		return DefaultAdapter
	}
	return T.Adapter
}

func (T *Reconciler) now() time.Time {
	if T.Now == nil {
		return time.Now().UTC()
	}
	return T.Now().UTC()
}

func (T *Reconciler) log() *zap.Logger {
	if T.Log == nil {
		return zap.NewNop()
	}
	return T.Log
}

func (T *Reconciler) tracer() trace.Tracer {
	if T.Tracer == nil {
		return otel.Tracer("gfx.cafe/gfx/dbchain/lib/reconcile")
	}
	return T.Tracer
}

// Reconcile discovers the current topology, saves every known good node and
// then deletes the records of nodes that are gone. Upsert always completes
// before anything is pruned; a failed upsert leaves the previous records in
// place. On error the partially filled result is still returned unless
// discovery itself failed.
func (T *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	return T.run(ctx, false)
}

// Plan computes what Reconcile would do without writing to the directory.
func (T *Reconciler) Plan(ctx context.Context) (*Result, error) {
	return T.run(ctx, true)
}

func (T *Reconciler) run(ctx context.Context, dryRun bool) (res *Result, err error) {
	labels := prom.ClusterLabels{Cluster: T.Owner}

	ctx, span := T.tracer().Start(ctx, "reconcile", trace.WithAttributes(
		attribute.String("owner", T.Owner),
		attribute.Bool("dry_run", dryRun),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	res = &Result{
		RunID:     uuid.New(),
		Owner:     T.Owner,
		CreatedAt: T.now(),
		DryRun:    dryRun,
	}
	span.SetAttributes(attribute.String("run_id", res.RunID.String()))

	log := T.log().With(
		zap.String("owner", T.Owner),
		zap.String("run", res.RunID.String()),
	)

	if !dryRun {
		prom.Reconcile.Runs(labels).Inc()
		defer func() {
			if err != nil {
				prom.Reconcile.Failures(labels).Inc()
				log.Error("reconciliation aborted", zap.Error(err))
			}
		}()
	}

	topology, endpoints, err := T.discover(ctx)
	if err != nil {
		return nil, err
	}

	T.merge(res, topology, endpoints, log)
	span.SetAttributes(attribute.Int("nodes", res.Catalog.Len()))

	// prior records only classify unchanged nodes; an unreadable directory
	// state must not stop the upsert and prune that would repair it
	prior, err := T.Directory.LoadAll(ctx, T.Owner)
	if err != nil {
		log.Warn("failed to load prior records, treating every node as changed", zap.Error(err))
		prior = catalog.Catalog{}
	}

	res.Catalog.Range(func(node catalog.Node) bool {
		res.Persisted = append(res.Persisted, node.Key)
		if old, ok := prior.Get(node.Key); ok {
			if directory.Encode(T.Owner, old).Digest() == directory.Encode(T.Owner, node).Digest() {
				res.Unchanged = append(res.Unchanged, node.Key)
			}
		}
		return true
	})

	if !dryRun {
		if err = T.Directory.UpsertAll(ctx, T.Owner, res.Catalog); err != nil {
			res.Persisted = nil
			res.Unchanged = nil
			return res, err
		}
		prom.Reconcile.Persisted(labels).Set(float64(res.Catalog.Len()))
		log.Info("saved known good nodes",
			zap.Strings("nodes", res.Persisted),
			zap.Int("unchanged", len(res.Unchanged)),
		)
	}

	keys, err := T.Directory.ListKeys(ctx, T.Owner)
	if err != nil {
		return res, err
	}

	var errs []error
	for _, key := range keys {
		if res.Catalog.Has(key) {
			continue
		}
		if dryRun {
			res.Pruned = append(res.Pruned, key)
			continue
		}
		if err := T.Directory.DeleteByKey(ctx, T.Owner, key); err != nil {
			log.Warn("failed to remove stale node", zap.String("node", key), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		res.Pruned = append(res.Pruned, key)
		prom.Reconcile.Pruned(labels).Inc()
		log.Info("removed stale node", zap.String("node", key))
	}

	return res, errors.Join(errs...)
}

func (T *Reconciler) discover(ctx context.Context) (map[string]discovery.RawNode, map[string]catalog.Endpoint, error) {
	clusterID := T.clusterID()

	topology, err := T.Source.RawTopology(ctx, clusterID)
	if err != nil {
		return nil, nil, &discovery.Failure{Call: discovery.CallTopology, ClusterID: clusterID, Err: err}
	}

	endpoints, err := T.Source.Credentials(ctx, clusterID)
	if err != nil {
		return nil, nil, &discovery.Failure{Call: discovery.CallCredentials, ClusterID: clusterID, Err: err}
	}

	return topology, endpoints, nil
}

// merge builds the catalog of the run from the discovered facts. Masters come
// first, then followers, each sorted by name.
func (T *Reconciler) merge(res *Result, topology map[string]discovery.RawNode, endpoints map[string]catalog.Endpoint, log *zap.Logger) {
	labels := prom.ClusterLabels{Cluster: T.Owner}
	exclude := T.exclude()

	names := make([]string, 0, len(topology))
	for name := range topology {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		mi, mj := topology[names[i]].Following == "", topology[names[j]].Following == ""
		if mi != mj {
			return mi
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		raw := topology[name]
		if raw.Name == "" {
			raw.Name = name
		}
		key := catalog.MakeKey(T.Owner, raw.Name)

		var reason string
		switch {
		case slices.Contains(exclude, raw.Name):
			reason = ReasonExcluded
		case raw.Status != catalog.StatusAvailable:
			reason = ReasonNotAvailable
		}
		if reason != "" {
			res.Skipped = append(res.Skipped, Skip{
				Key:    key,
				Name:   raw.Name,
				Status: raw.Status,
				Reason: reason,
			})
			prom.Reconcile.Skipped(labels).Inc()
			log.Warn("skipping node",
				zap.String("node", key),
				zap.String("status", string(raw.Status)),
				zap.String("reason", reason),
			)
			continue
		}

		endpoint, ok := endpoints[name]
		if !ok {
			T.anomaly(res, &SyncAnomaly{Owner: T.Owner, Key: key, Name: raw.Name, Reason: ReasonMissingEndpoint}, log)
			continue
		}
		if err := validate.Struct(endpoint); err != nil {
			T.anomaly(res, &SyncAnomaly{Owner: T.Owner, Key: key, Name: raw.Name, Reason: ReasonInvalidEndpoint, Err: err}, log)
			continue
		}

		role := catalog.RoleMaster
		if raw.Following != "" {
			role = catalog.RoleFollower
		}
		color := raw.Color
		if color == "" {
			color = catalog.ColorOf(raw.Name)
		}

		res.Catalog.Put(catalog.Node{
			Key:       key,
			Name:      raw.Name,
			Owner:     T.Owner,
			Role:      role,
			Color:     color,
			Adapter:   T.adapter(),
			Following: raw.Following,
			Endpoint:  endpoint,
			Status:    raw.Status,
			CreatedAt: res.CreatedAt,
		})
	}
}

func (T *Reconciler) anomaly(res *Result, anomaly *SyncAnomaly, log *zap.Logger) {
	res.Anomalies = append(res.Anomalies, anomaly)
	prom.Reconcile.Anomalies(prom.ClusterLabels{Cluster: T.Owner}).Inc()
	log.Warn("dropping node", zap.String("node", anomaly.Key), zap.Error(anomaly))
}
