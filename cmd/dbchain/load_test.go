package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const testConfig = `{
	"apps": {
		"dbchain": {
			"clusters": [
				{
					"owner": "app",
					"discoverer": {
						"discoverer": "static",
						"clusters": {
							"app": [
								{"name": "A", "url": "postgres://u:p@a.example.com:5432/d1"}
							]
						}
					},
					"directory": {"directory": "memory"}
				},
				{
					"owner": "other",
					"discoverer": {"discoverer": "static"},
					"directory": {"directory": "memory"}
				}
			]
		}
	}
}`

func writeConfig(t *testing.T, config string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dbchain.json")
	if err := os.WriteFile(path, []byte(config), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadApp(t *testing.T) {
	app, cancel, err := loadApp(writeConfig(t, testConfig), "")
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	if !reflect.DeepEqual(app.Owners(), []string{"app", "other"}) {
		t.Errorf("owners = %v", app.Owners())
	}

	if _, err = pickCluster(app, ""); err == nil {
		t.Error("expected an error when the cluster is ambiguous")
	}
	if _, err = pickCluster(app, "missing"); err == nil {
		t.Error("expected an error for an unknown cluster")
	}
	cluster, err := pickCluster(app, "other")
	if err != nil {
		t.Fatal(err)
	}
	if cluster.Owner != "other" {
		t.Errorf("owner = %s", cluster.Owner)
	}
}

func TestLoadDbchainfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Dbchainfile")
	const body = "app {\n\tdiscoverer static\n\tdirectory memory\n}\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	app, cancel, err := loadApp(path, "")
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	if !reflect.DeepEqual(app.Owners(), []string{"app"}) {
		t.Errorf("owners = %v", app.Owners())
	}

	if _, _, err = loadApp(path, "yaml"); err == nil {
		t.Error("expected error for an unknown adapter")
	}
}

func TestLoadAppErrors(t *testing.T) {
	cases := []struct {
		Name   string
		Config string
	}{
		{Name: "not json", Config: `apps:`},
		{Name: "no app", Config: `{"apps": {}}`},
		{Name: "bad app", Config: `{"apps": {"dbchain": {"clusters": 5}}}`},
	}

	for _, cas := range cases {
		t.Run(cas.Name, func(t *testing.T) {
			if _, _, err := loadApp(writeConfig(t, cas.Config), ""); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, _, err := loadApp(filepath.Join(t.TempDir(), "missing.json"), ""); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("DBCHAIN_CONFIG", "/etc/dbchain.json")
	t.Setenv("DBCHAIN_CLUSTER", "app")

	env := loadEnv()
	if env.Config != "/etc/dbchain.json" || env.Cluster != "app" || env.Env != "production" {
		t.Errorf("env = %+v", env)
	}
}
