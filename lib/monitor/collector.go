package monitor

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"gfx.cafe/gfx/dbchain/lib/catalog"
)

// Collector reads the metrics of a single node.
type Collector interface {
	Collect(ctx context.Context, node catalog.Node) (*catalog.Metrics, error)
}

const (
	DefaultSSLMode            = "require"
	DefaultSlowQueryThreshold = time.Second
)

// DefaultMonitorUsers are the roles whose sessions are never counted.
var DefaultMonitorUsers = []string{"collectd"}

// PGCollector collects metrics over a short lived pgx connection per call.
type PGCollector struct {
	// SSLMode defaults to require.
	SSLMode string `json:"ssl_mode,omitempty"`
	// MonitorUsers lists roles whose sessions are excluded from the query
	// counts. nil means DefaultMonitorUsers.
	MonitorUsers []string `json:"monitor_users,omitempty"`
	// SlowQueryThreshold defaults to one second.
	SlowQueryThreshold time.Duration `json:"slow_query_threshold,omitempty"`
	// ApplicationName is reported to the server. Defaults to dbchain.
	ApplicationName string `json:"application_name,omitempty"`
}

const (
	querySnapshot = `SELECT txid_snapshot_xmin(s), txid_snapshot_xmax(s), ARRAY(SELECT txid_snapshot_xip(s))
FROM txid_current_snapshot() AS s`

	queryDatabaseStats = `SELECT blks_hit, blks_read, tup_returned, tup_fetched, tup_inserted, tup_updated, tup_deleted
FROM pg_stat_database WHERE datname = $1`

	// sessions of other client backends, excluding monitoring roles and
	// placeholder query texts such as <insufficient privilege>
	activityFilter = `backend_type = 'client backend'
AND pid <> pg_backend_pid()
AND state = 'active'
AND usename::text <> ALL($1::text[])
AND query NOT LIKE '<%'`

	queryRunning = `SELECT count(*) FROM pg_stat_activity WHERE ` + activityFilter

	querySlow = `SELECT query FROM pg_stat_activity WHERE ` + activityFilter + `
AND now() - query_start > make_interval(secs => $2)
ORDER BY query_start ASC`
)

func (T *PGCollector) sslMode() string {
	if T.SSLMode == "" {
		return DefaultSSLMode
	}
	return T.SSLMode
}

func (T *PGCollector) monitorUsers() []string {
	if T.MonitorUsers == nil {
		return DefaultMonitorUsers
	}
	return T.MonitorUsers
}

func (T *PGCollector) slowQueryThreshold() time.Duration {
	if T.SlowQueryThreshold <= 0 {
		return DefaultSlowQueryThreshold
	}
	return T.SlowQueryThreshold
}

// ConnString returns the connection string used for node.
func (T *PGCollector) ConnString(node catalog.Node) string {
	applicationName := T.ApplicationName
	if applicationName == "" {
		applicationName = "dbchain"
	}

	query := url.Values{}
	query.Set("sslmode", T.sslMode())
	query.Set("application_name", applicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(node.Endpoint.Username, node.Endpoint.Password),
		Host:     net.JoinHostPort(node.Endpoint.Host, strconv.Itoa(node.Endpoint.Port)),
		Path:     "/" + node.Endpoint.Database,
		RawQuery: query.Encode(),
	}
	return u.String()
}

func (T *PGCollector) Collect(ctx context.Context, node catalog.Node) (*catalog.Metrics, error) {
	config, err := pgx.ParseConfig(T.ConnString(node))
	if err != nil {
		return nil, fmt.Errorf("parse connection config: %w", err)
	}

	conn, err := pgx.ConnectConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	var m catalog.Metrics

	if err = conn.QueryRow(ctx, querySnapshot).Scan(
		&m.Snapshot.Min,
		&m.Snapshot.Max,
		&m.Snapshot.InProgress,
	); err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	if err = conn.QueryRow(ctx, queryDatabaseStats, node.Endpoint.Database).Scan(
		&m.BlocksHit,
		&m.BlocksRead,
		&m.TuplesReturned,
		&m.TuplesFetched,
		&m.TuplesInserted,
		&m.TuplesUpdated,
		&m.TuplesDeleted,
	); err != nil {
		return nil, fmt.Errorf("read database stats: %w", err)
	}

	users := T.monitorUsers()

	if err = conn.QueryRow(ctx, queryRunning, users).Scan(&m.RunningQueries); err != nil {
		return nil, fmt.Errorf("count running queries: %w", err)
	}

	rows, err := conn.Query(ctx, querySlow, users, T.slowQueryThreshold().Seconds())
	if err != nil {
		return nil, fmt.Errorf("list slow queries: %w", err)
	}
	m.SlowQueries, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list slow queries: %w", err)
	}

	return &m, nil
}

var _ Collector = (*PGCollector)(nil)
