package digitalocean

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"gfx.cafe/gfx/dbchain/lib/catalog"
	"gfx.cafe/gfx/dbchain/lib/discovery"
)

const clusterJSON = `{"database": {
	"id": "9cc10173",
	"name": "backend",
	"engine": "pg",
	"status": "online",
	"connection": {"database": "defaultdb", "host": "backend-do-user.db.ondigitalocean.com", "port": 25060, "user": "doadmin", "password": "wv78n3zpz42xezdk", "ssl": true},
	"private_connection": {"database": "defaultdb", "host": "private-backend-do-user.db.ondigitalocean.com", "port": 25060, "user": "doadmin", "password": "wv78n3zpz42xezdk", "ssl": true}
}}`

const replicasJSON = `{"replicas": [
	{"id": "r1", "name": "read-nyc3-01", "status": "online", "connection": {"host": "read-nyc3-01-do-user.db.ondigitalocean.com", "port": 25060}},
	{"id": "r2", "name": "read-nyc3-02", "status": "creating"}
]}`

func testServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/databases/9cc10173", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(clusterJSON))
	})
	mux.HandleFunc("/v2/databases/9cc10173/replicas", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(replicasJSON))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestDiscoverer(t *testing.T) {
	ctx := context.Background()
	server := testServer(t)
	d := New(Config{BaseURL: server.URL + "/"}, discovery.StaticToken("token"))

	raw, err := d.RawTopology(ctx, "9cc10173")
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 3 {
		t.Fatalf("got %d nodes: %+v", len(raw), raw)
	}
	if n := raw["backend"]; n.Following != "" || n.Status != catalog.StatusAvailable {
		t.Errorf("unexpected primary: %+v", n)
	}
	if n := raw["read-nyc3-01"]; n.Following != "backend" || n.Status != catalog.StatusAvailable {
		t.Errorf("unexpected replica: %+v", n)
	}
	if n := raw["read-nyc3-02"]; n.Status != "creating" {
		t.Errorf("unexpected replica status: %+v", n)
	}

	creds, err := d.Credentials(ctx, "9cc10173")
	if err != nil {
		t.Fatal(err)
	}
	replica := creds["read-nyc3-01"]
	if replica.Username != "doadmin" || replica.Database != "defaultdb" || replica.Port != 25060 {
		t.Errorf("replica credentials not completed from primary: %+v", replica)
	}
	if _, ok := creds["read-nyc3-02"]; ok {
		t.Error("replica without connection should have no credentials")
	}
}

func TestDiscovererPrivate(t *testing.T) {
	server := testServer(t)
	d := New(Config{BaseURL: server.URL + "/", Private: true}, discovery.StaticToken("token"))

	creds, err := d.Credentials(context.Background(), "9cc10173")
	if err != nil {
		t.Fatal(err)
	}
	if creds["backend"].Host != "private-backend-do-user.db.ondigitalocean.com" {
		t.Errorf("expected private host, got %+v", creds["backend"])
	}
}

func TestDiscovererUnauthorized(t *testing.T) {
	server := testServer(t)
	d := New(Config{BaseURL: server.URL + "/"}, discovery.StaticToken("wrong"))

	if _, err := d.RawTopology(context.Background(), "9cc10173"); err == nil {
		t.Error("expected an error")
	}
}
