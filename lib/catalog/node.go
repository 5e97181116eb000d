package catalog

import (
	"strings"
	"time"
)

type Role string

const (
	RoleMaster   Role = "master"
	RoleFollower Role = "follower"
	RoleUnknown  Role = "unknown"
)

func ParseRole(s string) Role {
	switch Role(s) {
	case RoleMaster, RoleFollower:
		return Role(s)
	default:
		return RoleUnknown
	}
}

// Status is the discovery reported state of a node. Only StatusAvailable nodes
// are ever persisted; other values are kept verbatim for logging.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
)

type Endpoint struct {
	Host     string `json:"host" validate:"required,hostname_rfc1123|ip"`
	Port     int    `json:"port" validate:"required,min=1,max=65535"`
	Database string `json:"database" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password"`
}

// Node is one database instance of a cluster as known at a point in time.
type Node struct {
	Key   string
	Name  string
	Owner string

	Role      Role
	Color     string
	Adapter   string
	Following string

	Endpoint Endpoint
	Status   Status

	CreatedAt time.Time

	// Metrics is nil until the node has been monitored successfully.
	Metrics *Metrics
	// Failure is set when metric collection for this node failed.
	Failure error
}

// MakeKey returns the directory key of a node: the owner and node name joined
// by an underscore.
func MakeKey(owner, name string) string {
	return owner + "_" + name
}

// ColorOf derives the grouping tag of a node from its name, which is the last
// underscore separated segment (HEROKU_POSTGRESQL_AMBER -> AMBER).
func ColorOf(name string) string {
	if i := strings.LastIndexByte(name, '_'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Snapshot is the transaction visibility window reported by a node.
type Snapshot struct {
	Min        int64
	Max        int64
	InProgress []int64
}

type Metrics struct {
	Snapshot Snapshot

	BlocksHit      int64
	BlocksRead     int64
	TuplesReturned int64
	TuplesFetched  int64
	TuplesInserted int64
	TuplesUpdated  int64
	TuplesDeleted  int64

	RunningQueries int64
	SlowQueries    []string

	// Lag is the transaction id distance to the master's snapshot floor. nil
	// when it could not be computed.
	Lag *int64

	CollectedAt time.Time
}

// CacheHitRatio returns hits / (hits + reads). ok is false when no block was
// touched at all, which means there is no signal.
func (T *Metrics) CacheHitRatio() (ratio float64, ok bool) {
	total := T.BlocksHit + T.BlocksRead
	if total == 0 {
		return 0, false
	}
	return float64(T.BlocksHit) / float64(total), true
}
