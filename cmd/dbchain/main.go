package main

import (
	"context"

	"gfx.cafe/util/go/gotel"
	caddycmd "github.com/caddyserver/caddy/v2/cmd"
	_ "github.com/caddyserver/caddy/v2/modules/metrics"

	_ "gfx.cafe/gfx/dbchain/lib/directory/directories/bolt"
	_ "gfx.cafe/gfx/dbchain/lib/directory/directories/memory"
	_ "gfx.cafe/gfx/dbchain/lib/directory/directories/postgres"
	_ "gfx.cafe/gfx/dbchain/lib/directory/directories/s3"
	_ "gfx.cafe/gfx/dbchain/lib/discovery/discoverers/digitalocean"
	_ "gfx.cafe/gfx/dbchain/lib/discovery/discoverers/google_cloud_sql"
	_ "gfx.cafe/gfx/dbchain/lib/discovery/discoverers/static"
	_ "gfx.cafe/gfx/dbchain/lib/discovery/discoverers/zalando_operator"
)

func main() {
	fn, _ := gotel.InitTracing(context.Background(), gotel.WithServiceName("dbchain"))
	defer fn(context.Background())

	caddycmd.Main()
}
