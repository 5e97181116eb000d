package monitor

import (
	"fmt"
)

// CollectionFailure is the outcome of a node whose metrics could not be
// collected. Other nodes of the same run are unaffected.
type CollectionFailure struct {
	Key string
	// Timeout is set when the node did not answer within the per node
	// deadline.
	Timeout bool
	Err     error
}

func (T *CollectionFailure) Error() string {
	if T.Timeout {
		return fmt.Sprintf("collect %s: timed out: %v", T.Key, T.Err)
	}
	return fmt.Sprintf("collect %s: %v", T.Key, T.Err)
}

func (T *CollectionFailure) Unwrap() error {
	return T.Err
}

var _ error = (*CollectionFailure)(nil)

// Skew is a follower whose snapshot floor is ahead of the master's, which
// yields a negative lag. The lag is kept as computed.
type Skew struct {
	Key string
	Lag int64
}
