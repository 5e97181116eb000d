package postgres

import "gfx.cafe/gfx/dbchain/lib/util/dur"

type Config struct {
	// URL is a libpq style connection string or URL.
	URL string `json:"url"`
	// Table holding the records. Created on provision if missing.
	Table string `json:"table,omitempty"`

	MaxConns        int32        `json:"max_conns,omitempty"`
	MaxConnLifetime dur.Duration `json:"max_conn_lifetime,omitempty"`
}
