package zalando_operator

import (
	"gfx.cafe/gfx/dbchain/lib/k8s"
)

type Config struct {
	// Namespace holding the postgresql resources. Labels further restrict
	// the pods considered part of a cluster.
	Namespace k8s.NamespaceMatcher `json:"namespace"`

	// SecretNameTemplate follows the operator's secret_name_template option.
	SecretNameTemplate string `json:"secret_name_template,omitempty"`
	ClusterNameLabel   string `json:"cluster_name_label,omitempty"`
	RoleLabel          string `json:"role_label,omitempty"`

	// User whose secret provides the monitoring login.
	User     string `json:"user,omitempty"`
	Database string `json:"database,omitempty"`
	Port     int    `json:"port,omitempty"`
}
