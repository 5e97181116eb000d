package chaincaddyfile

import (
	"strings"

	"github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/caddy/v2/caddyconfig"
	"github.com/caddyserver/caddy/v2/caddyconfig/caddyfile"

	"gfx.cafe/gfx/dbchain/lib/catalog"
	"gfx.cafe/gfx/dbchain/lib/discovery/discoverers/digitalocean"
	"gfx.cafe/gfx/dbchain/lib/discovery/discoverers/google_cloud_sql"
	"gfx.cafe/gfx/dbchain/lib/discovery/discoverers/static"
	"gfx.cafe/gfx/dbchain/lib/discovery/discoverers/zalando_operator"
)

func init() {
	RegisterDirective(Discoverer, "static", func(d *caddyfile.Dispenser, _ *[]caddyconfig.Warning) (caddy.Module, error) {
		module := static.Discoverer{}

		if d.NextArg() {
			module.File = d.Val()
		}

		for nesting := d.Nesting(); d.NextBlock(nesting); {
			var err error
			switch d.Val() {
			case "file":
				module.File, err = stringArg(d)
			case "node":
				// node <cluster> <name> <url> [following=<name>] [color=<color>] [status=<status>]
				args := d.RemainingArgs()
				if len(args) < 3 {
					return nil, d.ArgErr()
				}
				node := static.Node{
					Name: args[1],
					URL:  args[2],
				}
				for _, arg := range args[3:] {
					key, value, ok := strings.Cut(arg, "=")
					if !ok {
						return nil, d.Errf(`expected key=value but got "%s"`, arg)
					}
					switch key {
					case "following":
						node.Following = value
					case "color":
						node.Color = value
					case "status":
						node.Status = catalog.Status(value)
					default:
						return nil, d.Errf(`unknown node option "%s"`, key)
					}
				}
				if module.Clusters == nil {
					module.Clusters = make(map[string][]static.Node)
				}
				module.Clusters[args[0]] = append(module.Clusters[args[0]], node)
			default:
				return nil, d.ArgErr()
			}
			if err != nil {
				return nil, err
			}
		}

		return &module, nil
	})
	RegisterDirective(Discoverer, "digitalocean", func(d *caddyfile.Dispenser, _ *[]caddyconfig.Warning) (caddy.Module, error) {
		module := digitalocean.Discoverer{}

		if d.NextArg() {
			module.APIKey = d.Val()
		}

		for nesting := d.Nesting(); d.NextBlock(nesting); {
			var err error
			switch d.Val() {
			case "token":
				module.APIKey, err = stringArg(d)
			case "token_file":
				module.APIKeyFile, err = stringArg(d)
			case "private":
				module.Private, err = boolArg(d)
			case "base_url":
				module.BaseURL, err = stringArg(d)
			default:
				return nil, d.ArgErr()
			}
			if err != nil {
				return nil, err
			}
		}

		if module.APIKey == "" && module.APIKeyFile == "" {
			return nil, d.Err("digitalocean requires a token or token_file")
		}

		return &module, nil
	})
	RegisterDirective(Discoverer, "google_cloud_sql", func(d *caddyfile.Dispenser, _ *[]caddyconfig.Warning) (caddy.Module, error) {
		module := google_cloud_sql.Discoverer{}

		if d.NextArg() {
			module.Project = d.Val()
		}

		for nesting := d.Nesting(); d.NextBlock(nesting); {
			var err error
			switch d.Val() {
			case "project":
				module.Project, err = stringArg(d)
			case "ip_address_type":
				module.IpAddressType, err = stringArg(d)
			case "port":
				module.Port, err = intArg(d)
			case "database":
				module.Database, err = stringArg(d)
			case "auth_user":
				module.AuthUser, err = stringArg(d)
			case "auth_password":
				module.AuthPassword, err = stringArg(d)
			default:
				return nil, d.ArgErr()
			}
			if err != nil {
				return nil, err
			}
		}

		return &module, nil
	})
	RegisterDirective(Discoverer, "zalando_operator", func(d *caddyfile.Dispenser, _ *[]caddyconfig.Warning) (caddy.Module, error) {
		module := zalando_operator.Discoverer{}

		if d.NextArg() {
			module.Namespace.Namespace = d.Val()
		}

		for nesting := d.Nesting(); d.NextBlock(nesting); {
			var err error
			switch d.Val() {
			case "namespace":
				module.Namespace.Namespace, err = stringArg(d)
			case "label":
				var keyValue string
				keyValue, err = stringArg(d)
				if err != nil {
					return nil, err
				}
				key, value, ok := strings.Cut(keyValue, "=")
				if !ok {
					return nil, d.Errf(`expected key=value but got "%s"`, keyValue)
				}
				if module.Namespace.Labels == nil {
					module.Namespace.Labels = make(map[string]string)
				}
				module.Namespace.Labels[key] = value
			case "secret_name_template":
				module.SecretNameTemplate, err = stringArg(d)
			case "cluster_name_label":
				module.ClusterNameLabel, err = stringArg(d)
			case "role_label":
				module.RoleLabel, err = stringArg(d)
			case "user":
				module.User, err = stringArg(d)
			case "database":
				module.Database, err = stringArg(d)
			case "port":
				module.Port, err = intArg(d)
			default:
				return nil, d.ArgErr()
			}
			if err != nil {
				return nil, err
			}
		}

		return &module, nil
	})
}
