package chaincaddyfile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/caddy/v2/caddyconfig"
	"github.com/caddyserver/caddy/v2/caddyconfig/caddyfile"

	"gfx.cafe/gfx/dbchain/lib/util/maps"
)

const (
	Discoverer = "dbchain.discoverers"
	Directory  = "dbchain.directories"
)

var unmarshallers maps.TwoKey[string, string, Unmarshaller]

func RegisterDirective(namespace, directive string, unmarshaller Unmarshaller) {
	if _, ok := unmarshallers.Load(namespace, directive); ok {
		panic(fmt.Sprintf(`directive "%s" already exists`, directive))
	}
	unmarshallers.Store(namespace, directive, unmarshaller)
}

func LookupDirective(namespace, directive string) (Unmarshaller, bool) {
	return unmarshallers.Load(namespace, directive)
}

func UnmarshalDirectiveJSONModuleObject(
	d *caddyfile.Dispenser,
	namespace string,
	inlineKey string,
	warnings *[]caddyconfig.Warning,
) (json.RawMessage, error) {
	unmarshaller, ok := LookupDirective(namespace, d.Val())
	if !ok {
		return nil, d.Errf(`unknown directive in %s: "%s"`, namespace, d.Val())
	}

	return unmarshaller.JSONModuleObject(
		d,
		namespace,
		inlineKey,
		warnings,
	)
}

func stringArg(d *caddyfile.Dispenser) (string, error) {
	if !d.NextArg() {
		return "", d.ArgErr()
	}
	return d.Val(), nil
}

// boolArg reads an optional true/false. A bare flag means true.
func boolArg(d *caddyfile.Dispenser) (bool, error) {
	if !d.NextArg() {
		return true, nil
	}
	switch d.Val() {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, d.ArgErr()
	}
}

func intArg(d *caddyfile.Dispenser) (int, error) {
	if !d.NextArg() {
		return 0, d.ArgErr()
	}
	v, err := strconv.Atoi(d.Val())
	if err != nil {
		return 0, d.WrapErr(err)
	}
	return v, nil
}

func durationArg(d *caddyfile.Dispenser) (time.Duration, error) {
	if !d.NextArg() {
		return 0, d.ArgErr()
	}
	v, err := caddy.ParseDuration(d.Val())
	if err != nil {
		return 0, d.WrapErr(err)
	}
	return v, nil
}
