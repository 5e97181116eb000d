package postgres

import (
	"context"
	"os"
	"testing"

	"gfx.cafe/gfx/dbchain/lib/directory"
)

// set DBCHAIN_TEST_POSTGRES_URL to run against a real server
func TestStore(t *testing.T) {
	url := os.Getenv("DBCHAIN_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("DBCHAIN_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, Config{
		URL:   url,
		Table: "dbchain_directory_test",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_, _ = store.pool.Exec(ctx, `DROP TABLE `+store.table)
		_ = store.Cleanup()
	}()

	records := []directory.Record{
		{Owner: "app", Key: "app_A", Attributes: map[string]string{"type": "master", "port": "5432"}},
		{Owner: "app", Key: "app_B", Attributes: map[string]string{"type": "follower", "port": "5432"}},
	}
	for i := 0; i < 2; i++ {
		if err = store.BatchPut(ctx, "app", records); err != nil {
			t.Fatal(err)
		}
	}

	selected, err := store.Select(ctx, "app")
	if err != nil {
		t.Fatal(err)
	}
	if len(selected) != 2 {
		t.Fatalf("got %d records, want 2", len(selected))
	}

	if err = store.Delete(ctx, "app", "app_A"); err != nil {
		t.Fatal(err)
	}
	if err = store.Delete(ctx, "app", "app_A"); err != nil {
		t.Fatal(err)
	}
	keys, err := store.SelectKeys(ctx, "app")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "app_B" {
		t.Errorf("keys = %v", keys)
	}
}
