package discovery

import (
	"context"
	"fmt"

	"gfx.cafe/gfx/dbchain/lib/catalog"
)

// RawNode is what a control plane reports about one node, before credentials
// are attached.
type RawNode struct {
	Name string
	// Color is an optional grouping tag. Derived from Name when empty.
	Color string
	// Following names the node this one replicates from. Empty for the master.
	Following string
	Status    catalog.Status
}

// Source looks up the ground truth topology of a cluster. Both methods are
// keyed by node name.
type Source interface {
	RawTopology(ctx context.Context, clusterID string) (map[string]RawNode, error)
	Credentials(ctx context.Context, clusterID string) (map[string]catalog.Endpoint, error)
}

type Call string

const (
	CallTopology    Call = "topology"
	CallCredentials Call = "credentials"
)

// Failure wraps any error returned by a Source.
type Failure struct {
	Call      Call
	ClusterID string
	Err       error
}

func (T *Failure) Error() string {
	return fmt.Sprintf("discovery %s for %s failed: %v", T.Call, T.ClusterID, T.Err)
}

func (T *Failure) Unwrap() error {
	return T.Err
}

var _ error = (*Failure)(nil)
