package chain

import (
	"encoding/json"

	"gfx.cafe/gfx/dbchain/lib/monitor"
	"gfx.cafe/gfx/dbchain/lib/util/dur"
)

type ClusterConfig struct {
	// Owner namespaces the directory records of this cluster.
	Owner string `json:"owner"`
	// ClusterID is what the discoverer knows the cluster as. Defaults to Owner.
	ClusterID string `json:"cluster_id,omitempty"`

	// Exclude lists node names that are never persisted. Defaults to
	// SHARED_DATABASE.
	Exclude []string `json:"exclude,omitempty"`
	Adapter string   `json:"adapter,omitempty"`

	Discoverer json.RawMessage `json:"discoverer" caddy:"namespace=dbchain.discoverers inline_key=discoverer"`
	Directory  json.RawMessage `json:"directory" caddy:"namespace=dbchain.directories inline_key=directory"`

	Collector      monitor.PGCollector `json:"collector,omitempty"`
	CollectTimeout dur.Duration        `json:"collect_timeout,omitempty"`
}

type Config struct {
	// ReconcilePeriod is how often every cluster is reconciled. 0 = disable
	ReconcilePeriod dur.Duration `json:"reconcile_period,omitempty"`
	// MonitorPeriod is how often every cluster is monitored. 0 = disable
	MonitorPeriod dur.Duration `json:"monitor_period,omitempty"`

	Clusters []ClusterConfig `json:"clusters"`
}
