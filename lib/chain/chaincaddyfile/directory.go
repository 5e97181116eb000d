package chaincaddyfile

import (
	"time"

	"github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/caddy/v2/caddyconfig"
	"github.com/caddyserver/caddy/v2/caddyconfig/caddyfile"

	"gfx.cafe/gfx/dbchain/lib/directory/directories/bolt"
	"gfx.cafe/gfx/dbchain/lib/directory/directories/memory"
	"gfx.cafe/gfx/dbchain/lib/directory/directories/postgres"
	"gfx.cafe/gfx/dbchain/lib/directory/directories/s3"
	"gfx.cafe/gfx/dbchain/lib/util/dur"
)

func init() {
	RegisterDirective(Directory, "memory", func(d *caddyfile.Dispenser, _ *[]caddyconfig.Warning) (caddy.Module, error) {
		if d.CountRemainingArgs() > 0 {
			return nil, d.ArgErr()
		}
		return &memory.Store{}, nil
	})
	RegisterDirective(Directory, "bolt", func(d *caddyfile.Dispenser, _ *[]caddyconfig.Warning) (caddy.Module, error) {
		module := bolt.Store{}

		if d.NextArg() {
			module.Path = d.Val()
		}

		for nesting := d.Nesting(); d.NextBlock(nesting); {
			var err error
			switch d.Val() {
			case "path":
				module.Path, err = stringArg(d)
			default:
				return nil, d.ArgErr()
			}
			if err != nil {
				return nil, err
			}
		}

		if module.Path == "" {
			return nil, d.Err("bolt requires a path")
		}

		return &module, nil
	})
	RegisterDirective(Directory, "postgres", func(d *caddyfile.Dispenser, _ *[]caddyconfig.Warning) (caddy.Module, error) {
		module := postgres.Store{}

		if d.NextArg() {
			module.URL = d.Val()
		}

		for nesting := d.Nesting(); d.NextBlock(nesting); {
			var err error
			switch d.Val() {
			case "url":
				module.URL, err = stringArg(d)
			case "table":
				module.Table, err = stringArg(d)
			case "max_conns":
				var v int
				v, err = intArg(d)
				module.MaxConns = int32(v)
			case "max_conn_lifetime":
				var v time.Duration
				v, err = durationArg(d)
				module.MaxConnLifetime = dur.Duration(v)
			default:
				return nil, d.ArgErr()
			}
			if err != nil {
				return nil, err
			}
		}

		return &module, nil
	})
	RegisterDirective(Directory, "s3", func(d *caddyfile.Dispenser, _ *[]caddyconfig.Warning) (caddy.Module, error) {
		module := s3.Store{}

		if d.NextArg() {
			module.Bucket = d.Val()
		}

		for nesting := d.Nesting(); d.NextBlock(nesting); {
			var err error
			switch d.Val() {
			case "bucket":
				module.Bucket, err = stringArg(d)
			case "prefix":
				module.Prefix, err = stringArg(d)
			case "region":
				module.Region, err = stringArg(d)
			case "endpoint":
				module.Endpoint, err = stringArg(d)
			case "use_path_style":
				module.UsePathStyle, err = boolArg(d)
			case "access_key_id":
				module.AccessKeyID, err = stringArg(d)
			case "secret_access_key":
				module.SecretAccessKey, err = stringArg(d)
			default:
				return nil, d.ArgErr()
			}
			if err != nil {
				return nil, err
			}
		}

		if module.Bucket == "" {
			return nil, d.Err("s3 requires a bucket")
		}

		return &module, nil
	})
}
