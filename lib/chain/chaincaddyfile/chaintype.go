package chaincaddyfile

import (
	"time"

	"github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/caddy/v2/caddyconfig"
	"github.com/caddyserver/caddy/v2/caddyconfig/caddyfile"

	"gfx.cafe/gfx/dbchain/lib/chain"
	"gfx.cafe/gfx/dbchain/lib/util/dur"
)

// AdapterName is registered with caddy. The http server type already owns
// "caddyfile".
const AdapterName = "dbchainfile"

func init() {
	caddyconfig.RegisterAdapter(AdapterName, caddyfile.Adapter{ServerType: ServerType{}})
}

// ServerType turns a dbchainfile into a caddy config holding the dbchain app.
// The key-less global block sets the app periods, every other block
// configures one cluster per key, the key being the owner.
type ServerType struct{}

func (ServerType) Setup(blocks []caddyfile.ServerBlock, _ map[string]any) (*caddy.Config, []caddyconfig.Warning, error) {
	var config caddy.Config
	var warnings []caddyconfig.Warning

	var app chain.Config

	for _, block := range blocks {
		keys := block.GetKeysText()
		if len(keys) == 0 {
			if err := setupGlobal(block, &app); err != nil {
				return nil, nil, err
			}
			continue
		}

		var cluster chain.ClusterConfig
		for _, segment := range block.Segments {
			d := caddyfile.NewDispenser(segment)
			if !d.Next() {
				continue
			}
			if err := setupCluster(d, &cluster, &warnings); err != nil {
				return nil, nil, err
			}
		}

		for _, key := range keys {
			c := cluster
			c.Owner = key
			app.Clusters = append(app.Clusters, c)
		}
	}

	if config.AppsRaw == nil {
		config.AppsRaw = make(caddy.ModuleMap)
	}
	config.AppsRaw[string((*chain.App)(nil).CaddyModule().ID)] = caddyconfig.JSON(app, &warnings)

	return &config, warnings, nil
}

func setupGlobal(block caddyfile.ServerBlock, app *chain.Config) error {
	for _, segment := range block.Segments {
		d := caddyfile.NewDispenser(segment)
		if !d.Next() {
			continue
		}
		directive := d.Val()
		period, err := durationArg(d)
		if err != nil {
			return err
		}
		switch directive {
		case "reconcile_period":
			app.ReconcilePeriod = dur.Duration(period)
		case "monitor_period":
			app.MonitorPeriod = dur.Duration(period)
		default:
			return d.Errf(`unknown global option "%s"`, directive)
		}
		if d.CountRemainingArgs() > 0 {
			return d.ArgErr()
		}
	}
	return nil
}

func setupCluster(d *caddyfile.Dispenser, cluster *chain.ClusterConfig, warnings *[]caddyconfig.Warning) error {
	directive := d.Val()
	var err error
	switch directive {
	case "cluster_id":
		cluster.ClusterID, err = stringArg(d)
	case "exclude":
		names := d.RemainingArgs()
		if len(names) == 0 {
			return d.ArgErr()
		}
		cluster.Exclude = append(cluster.Exclude, names...)
	case "adapter":
		cluster.Adapter, err = stringArg(d)
	case "collect_timeout":
		var timeout time.Duration
		timeout, err = durationArg(d)
		cluster.CollectTimeout = dur.Duration(timeout)
	case "discoverer", "directory":
		if !d.NextArg() {
			return d.ArgErr()
		}
		namespace, raw := Discoverer, &cluster.Discoverer
		if directive == "directory" {
			namespace, raw = Directory, &cluster.Directory
		}
		if *raw != nil {
			return d.Errf(`duplicate %s`, directive)
		}
		*raw, err = UnmarshalDirectiveJSONModuleObject(d, namespace, directive, warnings)
	case "collector":
		err = setupCollector(d, cluster)
	default:
		return d.Errf(`unknown directive "%s"`, directive)
	}
	if err != nil {
		return err
	}

	if d.CountRemainingArgs() > 0 {
		return d.ArgErr()
	}
	return nil
}

func setupCollector(d *caddyfile.Dispenser, cluster *chain.ClusterConfig) error {
	for nesting := d.Nesting(); d.NextBlock(nesting); {
		var err error
		switch d.Val() {
		case "ssl_mode":
			cluster.Collector.SSLMode, err = stringArg(d)
		case "monitor_users":
			users := d.RemainingArgs()
			if len(users) == 0 {
				return d.ArgErr()
			}
			cluster.Collector.MonitorUsers = append(cluster.Collector.MonitorUsers, users...)
		case "slow_query_threshold":
			cluster.Collector.SlowQueryThreshold, err = durationArg(d)
		case "application_name":
			cluster.Collector.ApplicationName, err = stringArg(d)
		default:
			return d.Errf(`unknown collector option "%s"`, d.Val())
		}
		if err != nil {
			return err
		}
	}
	return nil
}
