package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gfx.cafe/util/go/gun"
	"github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/caddy/v2/caddyconfig"
	caddycmd "github.com/caddyserver/caddy/v2/cmd"
	"github.com/spf13/pflag"

	"gfx.cafe/gfx/dbchain/lib/chain"
	"gfx.cafe/gfx/dbchain/lib/chain/chaincaddyfile"
)

type Env struct {
	Config  string `env:"DBCHAIN_CONFIG" default:"dbchain.json"`
	Cluster string `env:"DBCHAIN_CLUSTER"`
	Env     string `env:"DBCHAIN_ENV" default:"production"`
}

func loadEnv() Env {
	var env Env
	gun.Load(&env)
	return env
}

func addCommonFlags(flags *pflag.FlagSet, env Env) {
	flags.StringP("config", "c", env.Config, "config holding the dbchain app")
	flags.StringP("adapter", "a", "", "config adapter, defaults to "+chaincaddyfile.AdapterName+" for files named Dbchainfile and JSON otherwise")
	flags.String("cluster", env.Cluster, "owner of the cluster to use, required when more than one is configured")
	flags.Bool("trace", false, "print trace spans to stderr")
}

// adaptConfig converts the config at path to caddy JSON. An empty adapter is
// inferred from the file name.
func adaptConfig(path, adapter string, raw []byte) ([]byte, error) {
	if adapter == "" && strings.HasPrefix(strings.ToLower(filepath.Base(path)), chaincaddyfile.AdapterName) {
		adapter = chaincaddyfile.AdapterName
	}
	if adapter == "" || adapter == "json" {
		return raw, nil
	}

	cfgAdapter := caddyconfig.GetAdapter(adapter)
	if cfgAdapter == nil {
		return nil, fmt.Errorf("unrecognized config adapter: %s", adapter)
	}
	adapted, warnings, err := cfgAdapter.Adapt(raw, map[string]any{"filename": path})
	if err != nil {
		return nil, fmt.Errorf("adapting %s: %w", path, err)
	}
	for _, warning := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning.String())
	}
	return adapted, nil
}

// loadApp provisions the dbchain app of a config without starting it. The
// returned func releases every loaded module.
func loadApp(path, adapter string) (*chain.App, context.CancelFunc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if raw, err = adaptConfig(path, adapter, raw); err != nil {
		return nil, nil, err
	}

	var config caddy.Config
	if err = json.Unmarshal(raw, &config); err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	appRaw, ok := config.AppsRaw["dbchain"]
	if !ok {
		return nil, nil, fmt.Errorf("%s has no dbchain app", path)
	}

	var app chain.App
	if err = json.Unmarshal(appRaw, &app); err != nil {
		return nil, nil, fmt.Errorf("parsing dbchain app: %w", err)
	}

	ctx, cancel := caddy.NewContext(caddy.Context{Context: context.Background()})
	if err = app.Provision(ctx); err != nil {
		cancel()
		return nil, nil, err
	}
	return &app, cancel, nil
}

func pickCluster(app *chain.App, owner string) (*chain.Cluster, error) {
	if owner == "" {
		owners := app.Owners()
		if len(owners) != 1 {
			return nil, fmt.Errorf("--cluster is required, configured clusters: %v", owners)
		}
		owner = owners[0]
	}
	cluster, ok := app.Cluster(owner)
	if !ok {
		return nil, fmt.Errorf("no cluster with owner %q", owner)
	}
	return cluster, nil
}

// loadCluster loads the cluster selected by the common flags. The returned
// func releases the app and flushes traces.
func loadCluster(flags caddycmd.Flags) (*chain.Cluster, context.CancelFunc, error) {
	shutdown, err := traceToStderr(flags.Bool("trace"))
	if err != nil {
		return nil, nil, err
	}
	app, cancel, err := loadApp(flags.String("config"), flags.String("adapter"))
	if err != nil {
		_ = shutdown(context.Background())
		return nil, nil, err
	}
	cluster, err := pickCluster(app, flags.String("cluster"))
	if err != nil {
		cancel()
		_ = shutdown(context.Background())
		return nil, nil, err
	}
	return cluster, func() {
		cancel()
		_ = shutdown(context.Background())
	}, nil
}
