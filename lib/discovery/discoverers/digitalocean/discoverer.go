package digitalocean

import (
	"context"
	"net/url"

	"github.com/caddyserver/caddy/v2"
	"github.com/digitalocean/godo"

	"gfx.cafe/gfx/dbchain/lib/catalog"
	"gfx.cafe/gfx/dbchain/lib/discovery"
)

func init() {
	caddy.RegisterModule((*Discoverer)(nil))
}

// Discoverer reads a DigitalOcean managed database cluster. The cluster id is
// the database UUID; the primary is keyed by the cluster name and every read
// only replica by its own name.
type Discoverer struct {
	Config

	tokens discovery.TokenProvider
}

func New(config Config, tokens discovery.TokenProvider) *Discoverer {
	return &Discoverer{
		Config: config,
		tokens: tokens,
	}
}

func (T *Discoverer) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID: "dbchain.discoverers.digitalocean",
		New: func() caddy.Module {
			return new(Discoverer)
		},
	}
}

func (T *Discoverer) Provision(_ caddy.Context) error {
	T.tokens = T.TokenConfig.Provider()
	return nil
}

func (T *Discoverer) client(ctx context.Context) (*godo.Client, error) {
	token, err := T.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	do := godo.NewFromToken(token)
	if T.BaseURL != "" {
		do.BaseURL, err = url.Parse(T.BaseURL)
		if err != nil {
			return nil, err
		}
	}
	return do, nil
}

func (T *Discoverer) lookup(ctx context.Context, clusterID string) (*godo.Database, []godo.DatabaseReplica, error) {
	do, err := T.client(ctx)
	if err != nil {
		return nil, nil, err
	}

	cluster, _, err := do.Databases.Get(ctx, clusterID)
	if err != nil {
		return nil, nil, err
	}

	replicas, _, err := do.Databases.ListReplicas(ctx, clusterID, nil)
	if err != nil {
		return nil, nil, err
	}

	return cluster, replicas, nil
}

func status(s string) catalog.Status {
	if s == "online" {
		return catalog.StatusAvailable
	}
	return catalog.Status(s)
}

func (T *Discoverer) RawTopology(ctx context.Context, clusterID string) (map[string]discovery.RawNode, error) {
	cluster, replicas, err := T.lookup(ctx, clusterID)
	if err != nil {
		return nil, err
	}

	res := make(map[string]discovery.RawNode, len(replicas)+1)
	if cluster.EngineSlug != "pg" {
		// not postgres, nothing can be monitored
		return res, nil
	}

	res[cluster.Name] = discovery.RawNode{
		Name:   cluster.Name,
		Status: status(cluster.Status),
	}
	for _, replica := range replicas {
		res[replica.Name] = discovery.RawNode{
			Name:      replica.Name,
			Following: cluster.Name,
			Status:    status(replica.Status),
		}
	}
	return res, nil
}

func (T *Discoverer) connection(public, private *godo.DatabaseConnection) *godo.DatabaseConnection {
	if T.Private {
		return private
	}
	return public
}

func (T *Discoverer) Credentials(ctx context.Context, clusterID string) (map[string]catalog.Endpoint, error) {
	cluster, replicas, err := T.lookup(ctx, clusterID)
	if err != nil {
		return nil, err
	}

	res := make(map[string]catalog.Endpoint, len(replicas)+1)
	primary := T.connection(cluster.Connection, cluster.PrivateConnection)
	if primary == nil {
		return res, nil
	}
	res[cluster.Name] = endpoint(primary, primary)

	for _, replica := range replicas {
		conn := T.connection(replica.Connection, replica.PrivateConnection)
		if conn == nil {
			continue
		}
		res[replica.Name] = endpoint(conn, primary)
	}
	return res, nil
}

// endpoint converts conn, filling login details missing from replica
// connections from the primary.
func endpoint(conn, primary *godo.DatabaseConnection) catalog.Endpoint {
	e := catalog.Endpoint{
		Host:     conn.Host,
		Port:     conn.Port,
		Database: conn.Database,
		Username: conn.User,
		Password: conn.Password,
	}
	if e.Database == "" {
		e.Database = primary.Database
	}
	if e.Username == "" {
		e.Username = primary.User
		e.Password = primary.Password
	}
	return e
}

var _ discovery.Source = (*Discoverer)(nil)
var _ caddy.Module = (*Discoverer)(nil)
var _ caddy.Provisioner = (*Discoverer)(nil)
