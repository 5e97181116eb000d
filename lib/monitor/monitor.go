package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"gfx.cafe/gfx/dbchain/lib/catalog"
	"gfx.cafe/gfx/dbchain/lib/instrumentation/prom"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultGrace   = time.Second
)

// Monitor collects every node of a catalog concurrently and computes follower
// lag from the collected snapshots.
type Monitor struct {
	Collector Collector

	// Timeout bounds the collection of a single node.
	Timeout time.Duration
	// Grace is how much longer than Timeout the join waits for a task that
	// ignores its context.
	Grace time.Duration

	Now    func() time.Time
	Log    *zap.Logger
	Tracer trace.Tracer
}

// Report is the outcome of one monitoring run. Catalog holds every input node
// in input order, with either Metrics or Failure set.
type Report struct {
	Catalog  catalog.Catalog
	Failures []*CollectionFailure
	Skews    []Skew
	// LagError explains why follower lag could not be computed at all.
	LagError error
}

type outcome struct {
	metrics *catalog.Metrics
	err     error
}

func (T *Monitor) timeout() time.Duration {
	if T.Timeout <= 0 {
		return DefaultTimeout
	}
	return T.Timeout
}

func (T *Monitor) grace() time.Duration {
	if T.Grace <= 0 {
		return DefaultGrace
	}
	return T.Grace
}

func (T *Monitor) now() time.Time {
	if T.Now == nil {
		return time.Now().UTC()
	}
	return T.Now().UTC()
}

func (T *Monitor) log() *zap.Logger {
	if T.Log == nil {
		return zap.NewNop()
	}
	return T.Log
}

func (T *Monitor) tracer() trace.Tracer {
	if T.Tracer == nil {
		return otel.Tracer("gfx.cafe/gfx/dbchain/lib/monitor")
	}
	return T.Tracer
}

func labels(node catalog.Node) prom.NodeLabels {
	return prom.ClusterLabels{Cluster: node.Owner}.Node(node.Key, string(node.Role))
}

func (T *Monitor) collect(ctx context.Context, node catalog.Node) outcome {
	ctx, span := T.tracer().Start(ctx, "collect", trace.WithAttributes(
		attribute.String("node", node.Key),
		attribute.String("role", string(node.Role)),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, T.timeout())
	defer cancel()

	start := time.Now()
	metrics, err := T.Collector.Collect(ctx, node)
	prom.Node.Collection(labels(node)).Observe(float64(time.Since(start).Milliseconds()))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return outcome{err: err}
	}
	if metrics == nil {
		return outcome{err: fmt.Errorf("collector returned no metrics")}
	}
	metrics.CollectedAt = T.now()
	return outcome{metrics: metrics}
}

// Run collects c. A topology violation is returned together with the report;
// every other problem is recorded per node in the report.
func (T *Monitor) Run(ctx context.Context, c catalog.Catalog) (*Report, error) {
	log := T.log()
	nodes := c.Nodes()

	// each task owns exactly one buffered slot, so an abandoned task never
	// blocks
	slots := make([]chan outcome, len(nodes))
	for i, node := range nodes {
		slots[i] = make(chan outcome, 1)
		go func(slot chan<- outcome, node catalog.Node) {
			slot <- T.collect(ctx, node)
		}(slots[i], node)
	}

	deadline := time.NewTimer(T.timeout() + T.grace())
	defer deadline.Stop()

	report := &Report{
		Catalog: c.Clone(),
	}
	expired := false
	for i, node := range nodes {
		var out outcome
		if expired {
			select {
			case out = <-slots[i]:
			default:
				out = outcome{err: context.DeadlineExceeded}
			}
		} else {
			select {
			case out = <-slots[i]:
			case <-deadline.C:
				expired = true
				out = outcome{err: context.DeadlineExceeded}
			}
		}

		if out.err != nil {
			failure := &CollectionFailure{
				Key:     node.Key,
				Timeout: isTimeout(out.err),
				Err:     out.err,
			}
			node.Metrics = nil
			node.Failure = failure
			report.Failures = append(report.Failures, failure)
			prom.Node.CollectionFailures(labels(node)).Inc()
			log.Warn("failed to collect node", zap.String("node", node.Key), zap.Error(failure))
		} else {
			node.Metrics = out.metrics
			node.Failure = nil
		}
		report.Catalog.Put(node)
	}

	err := T.aggregate(report)
	T.publish(report)
	return report, err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// aggregate fills in lag once every task has been joined.
func (T *Monitor) aggregate(report *Report) error {
	log := T.log()

	master, err := catalog.RequireMaster(report.Catalog)
	if err != nil {
		report.LagError = err
		log.Error("cannot compute lag", zap.Error(err))
		return err
	}

	if master.Metrics == nil {
		report.LagError = fmt.Errorf("master %s was not collected: %w", master.Key, master.Failure)
		log.Warn("cannot compute lag", zap.Error(report.LagError))
		return nil
	}

	zero := int64(0)
	master.Metrics.Lag = &zero
	report.Catalog.Put(master)

	for _, follower := range catalog.Followers(report.Catalog) {
		if follower.Metrics == nil {
			continue
		}
		lag := master.Metrics.Snapshot.Min - follower.Metrics.Snapshot.Min
		follower.Metrics.Lag = &lag
		report.Catalog.Put(follower)

		if lag < 0 {
			report.Skews = append(report.Skews, Skew{Key: follower.Key, Lag: lag})
			log.Warn("follower snapshot is ahead of master",
				zap.String("node", follower.Key),
				zap.Int64("lag", lag),
			)
		}
	}

	return nil
}

// publish exports the report. Values that were not measured in this run are
// set to NaN so a previous run's values do not linger.
func (T *Monitor) publish(report *Report) {
	nan := math.NaN()
	report.Catalog.Range(func(node catalog.Node) bool {
		l := labels(node)
		if node.Metrics == nil {
			prom.Node.TxidMin(l).Set(nan)
			prom.Node.TxidLag(l).Set(nan)
			prom.Node.CacheHitRatio(l).Set(nan)
			prom.Node.RunningQueries(l).Set(nan)
			prom.Node.SlowQueries(l).Set(nan)
			return true
		}
		prom.Node.TxidMin(l).Set(float64(node.Metrics.Snapshot.Min))
		prom.Node.RunningQueries(l).Set(float64(node.Metrics.RunningQueries))
		prom.Node.SlowQueries(l).Set(float64(len(node.Metrics.SlowQueries)))
		if node.Metrics.Lag != nil {
			prom.Node.TxidLag(l).Set(float64(*node.Metrics.Lag))
		} else {
			prom.Node.TxidLag(l).Set(nan)
		}
		if ratio, ok := node.Metrics.CacheHitRatio(); ok {
			prom.Node.CacheHitRatio(l).Set(ratio)
		} else {
			prom.Node.CacheHitRatio(l).Set(nan)
		}
		return true
	})
}
