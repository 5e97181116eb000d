package directory

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/minio/sha256-simd"

	"gfx.cafe/gfx/dbchain/lib/catalog"
)

// attribute names of the flat record wire shape
const (
	AttrApp       = "app"
	AttrName      = "name"
	AttrType      = "type"
	AttrColor     = "color"
	AttrAdapter   = "adapter"
	AttrFollowing = "following"
	AttrStatus    = "status"
	AttrHost      = "host"
	AttrPort      = "port"
	AttrDatabase  = "database"
	AttrUsername  = "username"
	AttrPassword  = "password"
	AttrCreatedAt = "created_at"
)

var ErrMalformedRecord = errors.New("malformed directory record")

// Record is a node as stored in the directory: keyed by owner and key, every
// attribute a string.
type Record struct {
	Owner      string            `json:"owner"`
	Key        string            `json:"key"`
	Attributes map[string]string `json:"attributes"`
}

// Encode flattens node into a record owned by owner.
func Encode(owner string, node catalog.Node) Record {
	attrs := map[string]string{
		AttrApp:      owner,
		AttrName:     node.Name,
		AttrType:     string(node.Role),
		AttrColor:    node.Color,
		AttrAdapter:  node.Adapter,
		AttrStatus:   string(node.Status),
		AttrHost:     node.Endpoint.Host,
		AttrPort:     strconv.Itoa(node.Endpoint.Port),
		AttrDatabase: node.Endpoint.Database,
		AttrUsername: node.Endpoint.Username,
		AttrPassword: node.Endpoint.Password,
	}
	if node.Following != "" {
		attrs[AttrFollowing] = node.Following
	}
	if !node.CreatedAt.IsZero() {
		attrs[AttrCreatedAt] = node.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return Record{
		Owner:      owner,
		Key:        node.Key,
		Attributes: attrs,
	}
}

// Decode is the inverse of Encode.
func Decode(record Record) (catalog.Node, error) {
	attrs := record.Attributes
	node := catalog.Node{
		Key:       record.Key,
		Name:      attrs[AttrName],
		Owner:     record.Owner,
		Role:      catalog.ParseRole(attrs[AttrType]),
		Color:     attrs[AttrColor],
		Adapter:   attrs[AttrAdapter],
		Following: attrs[AttrFollowing],
		Status:    catalog.Status(attrs[AttrStatus]),
		Endpoint: catalog.Endpoint{
			Host:     attrs[AttrHost],
			Database: attrs[AttrDatabase],
			Username: attrs[AttrUsername],
			Password: attrs[AttrPassword],
		},
	}
	if node.Owner == "" {
		node.Owner = attrs[AttrApp]
	}

	if port, ok := attrs[AttrPort]; ok && port != "" {
		var err error
		node.Endpoint.Port, err = strconv.Atoi(port)
		if err != nil {
			return catalog.Node{}, fmt.Errorf("%w: %s: port %q", ErrMalformedRecord, record.Key, port)
		}
	}
	if createdAt, ok := attrs[AttrCreatedAt]; ok && createdAt != "" {
		var err error
		node.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return catalog.Node{}, fmt.Errorf("%w: %s: created_at %q", ErrMalformedRecord, record.Key, createdAt)
		}
	}
	return node, nil
}

// Digest returns a stable hash of the record contents, ignoring the run stamp
// in created_at. Records with equal digests describe the same node.
func (T Record) Digest() string {
	names := make([]string, 0, len(T.Attributes))
	for name := range T.Attributes {
		if name == AttrCreatedAt {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	_, _ = h.Write([]byte(T.Owner))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(T.Key))
	for _, name := range names {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(name))
		_, _ = h.Write([]byte{'='})
		_, _ = h.Write([]byte(T.Attributes[name]))
	}
	return hex.EncodeToString(h.Sum(nil))
}
