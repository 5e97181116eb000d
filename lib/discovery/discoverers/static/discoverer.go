package static

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/caddyserver/caddy/v2"
	"github.com/jackc/pgx/v5/pgconn"

	"gfx.cafe/gfx/dbchain/lib/catalog"
	"gfx.cafe/gfx/dbchain/lib/discovery"
)

func init() {
	caddy.RegisterModule((*Discoverer)(nil))
}

// Discoverer serves a fixed topology from config or from a JSON file.
type Discoverer struct {
	Config
}

func New(config Config) *Discoverer {
	return &Discoverer{
		Config: config,
	}
}

func (T *Discoverer) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID: "dbchain.discoverers.static",
		New: func() caddy.Module {
			return new(Discoverer)
		},
	}
}

func (T *Discoverer) nodes(clusterID string) ([]Node, error) {
	clusters := T.Clusters
	if T.File != "" {
		b, err := os.ReadFile(T.File)
		if err != nil {
			return nil, err
		}
		clusters = nil
		if err = json.Unmarshal(b, &clusters); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", T.File, err)
		}
	}

	nodes, ok := clusters[clusterID]
	if !ok {
		return nil, fmt.Errorf("unknown cluster %q", clusterID)
	}
	return nodes, nil
}

func (T *Discoverer) RawTopology(_ context.Context, clusterID string) (map[string]discovery.RawNode, error) {
	nodes, err := T.nodes(clusterID)
	if err != nil {
		return nil, err
	}

	res := make(map[string]discovery.RawNode, len(nodes))
	for _, node := range nodes {
		status := node.Status
		if status == "" {
			status = catalog.StatusAvailable
		}
		res[node.Name] = discovery.RawNode{
			Name:      node.Name,
			Color:     node.Color,
			Following: node.Following,
			Status:    status,
		}
	}
	return res, nil
}

func (T *Discoverer) Credentials(_ context.Context, clusterID string) (map[string]catalog.Endpoint, error) {
	nodes, err := T.nodes(clusterID)
	if err != nil {
		return nil, err
	}

	res := make(map[string]catalog.Endpoint, len(nodes))
	for _, node := range nodes {
		switch {
		case node.Endpoint != nil:
			res[node.Name] = *node.Endpoint
		case node.URL != "":
			endpoint, err := ParseURL(node.URL)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", node.Name, err)
			}
			res[node.Name] = endpoint
		}
	}
	return res, nil
}

// ParseURL turns a postgres connection URL into an endpoint.
func ParseURL(url string) (catalog.Endpoint, error) {
	config, err := pgconn.ParseConfig(url)
	if err != nil {
		return catalog.Endpoint{}, err
	}
	return catalog.Endpoint{
		Host:     config.Host,
		Port:     int(config.Port),
		Database: config.Database,
		Username: config.User,
		Password: config.Password,
	}, nil
}

var _ discovery.Source = (*Discoverer)(nil)
var _ caddy.Module = (*Discoverer)(nil)
