package prom

import (
	"gfx.cafe/open/gotoprom"
	"github.com/prometheus/client_golang/prometheus"
)

type ClusterLabels struct {
	Cluster string `label:"cluster"`
}

func (s ClusterLabels) Node(node string, role string) NodeLabels {
	return NodeLabels{
		Cluster: s.Cluster,
		Node:    node,
		Role:    role,
	}
}

var Reconcile struct {
	Runs      func(ClusterLabels) prometheus.Counter `name:"runs" help:"reconciliation runs started"`
	Failures  func(ClusterLabels) prometheus.Counter `name:"failures" help:"reconciliation runs aborted"`
	Persisted func(ClusterLabels) prometheus.Gauge   `name:"persisted" help:"nodes in the last persisted catalog"`
	Pruned    func(ClusterLabels) prometheus.Counter `name:"pruned" help:"stale directory records deleted"`
	Skipped   func(ClusterLabels) prometheus.Counter `name:"skipped" help:"discovered nodes skipped as unusable"`
	Anomalies func(ClusterLabels) prometheus.Counter `name:"anomalies" help:"discovered nodes dropped for missing or invalid credentials"`
}

type NodeLabels struct {
	Cluster string `label:"cluster"`
	Node    string `label:"node"`
	Role    string `label:"role"`
}

var Node struct {
	TxidLag            func(NodeLabels) prometheus.Gauge     `name:"txid_lag" help:"transaction id distance to the master snapshot floor, NaN when unknown"`
	TxidMin            func(NodeLabels) prometheus.Gauge     `name:"txid_min" help:"lower bound of the current transaction snapshot"`
	CacheHitRatio      func(NodeLabels) prometheus.Gauge     `name:"cache_hit_ratio" help:"block cache hit ratio, NaN when no blocks were touched"`
	RunningQueries     func(NodeLabels) prometheus.Gauge     `name:"running_queries" help:"queries currently running"`
	SlowQueries        func(NodeLabels) prometheus.Gauge     `name:"slow_queries" help:"queries running longer than the slow query threshold"`
	CollectionFailures func(NodeLabels) prometheus.Counter   `name:"collection_failures" help:"failed metric collections"`
	Collection         func(NodeLabels) prometheus.Histogram `name:"collection_ms" buckets:"5,10,25,50,100,250,500,1000,2500,5000,10000" help:"ms to collect node metrics"`
}

func init() {
	gotoprom.MustInit(&Reconcile, "dbchain_reconcile", prometheus.Labels{})
	gotoprom.MustInit(&Node, "dbchain_node", prometheus.Labels{})
}
