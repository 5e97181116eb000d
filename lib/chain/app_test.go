package chain

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/caddyserver/caddy/v2"

	"gfx.cafe/gfx/dbchain/lib/catalog"
	_ "gfx.cafe/gfx/dbchain/lib/directory/directories/memory"
	_ "gfx.cafe/gfx/dbchain/lib/discovery/discoverers/static"
)

const testConfig = `{
	"clusters": [
		{
			"owner": "app",
			"discoverer": {
				"discoverer": "static",
				"clusters": {
					"app": [
						{"name": "A", "url": "postgres://u:p@a.example.com:5432/d1"},
						{"name": "B", "following": "A", "url": "postgres://u:p@b.example.com:5432/d1"},
						{"name": "SHARED_DATABASE", "url": "postgres://u:p@shared.example.com:5432/d1"}
					]
				}
			},
			"directory": {
				"directory": "memory"
			},
			"collect_timeout": "1s"
		}
	]
}`

type fakeCollector struct {
	mins map[string]int64
}

func (T fakeCollector) Collect(_ context.Context, node catalog.Node) (*catalog.Metrics, error) {
	floor, ok := T.mins[node.Name]
	if !ok {
		return nil, errors.New("unreachable")
	}
	return &catalog.Metrics{Snapshot: catalog.Snapshot{Min: floor, Max: floor}}, nil
}

func provision(t *testing.T, raw string) *App {
	t.Helper()

	var app App
	if err := json.Unmarshal([]byte(raw), &app); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := caddy.NewContext(caddy.Context{Context: context.Background()})
	t.Cleanup(cancel)

	if err := app.Provision(ctx); err != nil {
		t.Fatal(err)
	}
	return &app
}

func TestClusterSync(t *testing.T) {
	app := provision(t, testConfig)
	cluster, ok := app.Cluster("app")
	if !ok {
		t.Fatal("cluster not provisioned")
	}
	if cluster.CollectTimeout.Duration() != time.Second {
		t.Errorf("collect timeout = %v", cluster.CollectTimeout)
	}

	ctx := context.Background()

	if _, err := cluster.MonitorPersisted(ctx); !errors.Is(err, ErrNoCatalog) {
		t.Errorf("err = %v", err)
	}

	plan, err := cluster.Plan(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c, err := cluster.Load(ctx); err != nil || c.Len() != 0 {
		t.Fatalf("plan wrote to the directory: %v %v", c.Keys(), err)
	}

	res, err := cluster.Sync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Catalog.Keys(), plan.Catalog.Keys()) {
		t.Errorf("sync %v differs from plan %v", res.Catalog.Keys(), plan.Catalog.Keys())
	}

	c, err := cluster.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(c.Keys(), []string{"app_A", "app_B"}) {
		t.Errorf("persisted = %v", c.Keys())
	}

	cluster.monitor.Collector = fakeCollector{mins: map[string]int64{"A": 100, "B": 90}}
	report, err := cluster.MonitorPersisted(ctx)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := report.Catalog.Get("app_B")
	if b.Metrics == nil || b.Metrics.Lag == nil || *b.Metrics.Lag != 10 {
		t.Errorf("follower = %+v", b.Metrics)
	}
}

func TestProvisionErrors(t *testing.T) {
	cases := []struct {
		Name   string
		Config string
	}{
		{
			Name:   "missing owner",
			Config: `{"clusters": [{"discoverer": {"discoverer": "static"}, "directory": {"directory": "memory"}}]}`,
		},
		{
			Name:   "missing discoverer",
			Config: `{"clusters": [{"owner": "app", "directory": {"directory": "memory"}}]}`,
		},
		{
			Name:   "missing directory",
			Config: `{"clusters": [{"owner": "app", "discoverer": {"discoverer": "static"}}]}`,
		},
		{
			Name:   "unknown module",
			Config: `{"clusters": [{"owner": "app", "discoverer": {"discoverer": "nope"}, "directory": {"directory": "memory"}}]}`,
		},
		{
			Name: "duplicate owner",
			Config: `{"clusters": [
				{"owner": "app", "discoverer": {"discoverer": "static"}, "directory": {"directory": "memory"}},
				{"owner": "app", "discoverer": {"discoverer": "static"}, "directory": {"directory": "memory"}}
			]}`,
		},
	}

	for _, cas := range cases {
		t.Run(cas.Name, func(t *testing.T) {
			var app App
			if err := json.Unmarshal([]byte(cas.Config), &app); err != nil {
				t.Fatal(err)
			}
			ctx, cancel := caddy.NewContext(caddy.Context{Context: context.Background()})
			defer cancel()

			if err := app.Provision(ctx); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAppLoop(t *testing.T) {
	var config map[string]any
	if err := json.Unmarshal([]byte(testConfig), &config); err != nil {
		t.Fatal(err)
	}
	config["reconcile_period"] = "10ms"
	config["monitor_period"] = "10ms"
	raw, err := json.Marshal(config)
	if err != nil {
		t.Fatal(err)
	}

	app := provision(t, string(raw))
	cluster, _ := app.Cluster("app")
	cluster.monitor.Collector = fakeCollector{mins: map[string]int64{"A": 7, "B": 7}}

	if err = app.Start(); err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = app.Stop()
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, synced := app.LastResult("app")
		_, monitored := app.LastReport("app")
		if synced && monitored {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("synced = %v, monitored = %v", synced, monitored)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err = app.Stop(); err != nil {
		t.Fatal(err)
	}
}
