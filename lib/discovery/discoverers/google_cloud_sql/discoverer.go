package google_cloud_sql

import (
	"context"
	"errors"
	"strings"

	"github.com/caddyserver/caddy/v2"
	"google.golang.org/api/option"
	sqladmin "google.golang.org/api/sqladmin/v1beta4"

	"gfx.cafe/gfx/dbchain/lib/catalog"
	"gfx.cafe/gfx/dbchain/lib/discovery"
)

func init() {
	caddy.RegisterModule((*Discoverer)(nil))
}

// Discoverer reads a Cloud SQL primary instance and its read replicas. The
// cluster id is the name of the primary instance.
type Discoverer struct {
	Config

	google *sqladmin.Service
}

// New creates a discoverer. opts are passed to the sqladmin client.
func New(ctx context.Context, config Config, opts ...option.ClientOption) (*Discoverer, error) {
	T := &Discoverer{
		Config: config,
	}
	if err := T.provision(ctx, opts...); err != nil {
		return nil, err
	}
	return T, nil
}

func (T *Discoverer) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID: "dbchain.discoverers.google_cloud_sql",
		New: func() caddy.Module {
			return new(Discoverer)
		},
	}
}

func (T *Discoverer) Provision(ctx caddy.Context) error {
	return T.provision(ctx)
}

func (T *Discoverer) provision(ctx context.Context, opts ...option.ClientOption) error {
	if T.Project == "" {
		return errors.New("google cloud sql: project is required")
	}
	if T.IpAddressType == "" {
		T.IpAddressType = "PRIMARY"
	}
	if T.Port == 0 {
		T.Port = 5432
	}

	var err error
	T.google, err = sqladmin.NewService(ctx, opts...)
	return err
}

func (T *Discoverer) instances(ctx context.Context, clusterID string) (*sqladmin.DatabaseInstance, []*sqladmin.DatabaseInstance, error) {
	primary, err := T.google.Instances.Get(T.Project, clusterID).Context(ctx).Do()
	if err != nil {
		return nil, nil, err
	}
	if !strings.HasPrefix(primary.DatabaseVersion, "POSTGRES_") {
		return nil, nil, nil
	}

	replicas := make([]*sqladmin.DatabaseInstance, 0, len(primary.ReplicaNames))
	for _, name := range primary.ReplicaNames {
		replica, err := T.google.Instances.Get(T.Project, name).Context(ctx).Do()
		if err != nil {
			return nil, nil, err
		}
		replicas = append(replicas, replica)
	}
	return primary, replicas, nil
}

func status(state string) catalog.Status {
	if state == "RUNNABLE" {
		return catalog.StatusAvailable
	}
	return catalog.Status(strings.ToLower(state))
}

func (T *Discoverer) RawTopology(ctx context.Context, clusterID string) (map[string]discovery.RawNode, error) {
	primary, replicas, err := T.instances(ctx, clusterID)
	if err != nil {
		return nil, err
	}

	res := make(map[string]discovery.RawNode, len(replicas)+1)
	if primary == nil {
		return res, nil
	}
	res[primary.Name] = discovery.RawNode{
		Name:   primary.Name,
		Status: status(primary.State),
	}
	for _, replica := range replicas {
		res[replica.Name] = discovery.RawNode{
			Name:      replica.Name,
			Following: primary.Name,
			Status:    status(replica.State),
		}
	}
	return res, nil
}

func (T *Discoverer) endpoint(instance *sqladmin.DatabaseInstance) (catalog.Endpoint, bool) {
	for _, ip := range instance.IpAddresses {
		if ip.Type != T.IpAddressType {
			continue
		}
		return catalog.Endpoint{
			Host:     ip.IpAddress,
			Port:     T.Port,
			Database: T.Database,
			Username: T.AuthUser,
			Password: T.AuthPassword,
		}, true
	}
	return catalog.Endpoint{}, false
}

func (T *Discoverer) Credentials(ctx context.Context, clusterID string) (map[string]catalog.Endpoint, error) {
	primary, replicas, err := T.instances(ctx, clusterID)
	if err != nil {
		return nil, err
	}

	res := make(map[string]catalog.Endpoint, len(replicas)+1)
	if primary == nil {
		return res, nil
	}
	for _, instance := range append([]*sqladmin.DatabaseInstance{primary}, replicas...) {
		if e, ok := T.endpoint(instance); ok {
			res[instance.Name] = e
		}
	}
	return res, nil
}

var _ discovery.Source = (*Discoverer)(nil)
var _ caddy.Module = (*Discoverer)(nil)
var _ caddy.Provisioner = (*Discoverer)(nil)
