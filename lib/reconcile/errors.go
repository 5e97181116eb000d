package reconcile

import (
	"fmt"
)

// SyncAnomaly is recorded for a discovered node that could not be persisted
// because its credentials are missing or invalid. The node is dropped from the
// run; the rest of the catalog is unaffected.
type SyncAnomaly struct {
	Owner  string
	Key    string
	Name   string
	Reason string
	Err    error
}

func (T *SyncAnomaly) Error() string {
	msg := fmt.Sprintf("node %s of %s: %s", T.Name, T.Owner, T.Reason)
	if T.Err != nil {
		msg += ": " + T.Err.Error()
	}
	return msg
}

func (T *SyncAnomaly) Unwrap() error {
	return T.Err
}

var _ error = (*SyncAnomaly)(nil)

const (
	ReasonMissingEndpoint = "no credentials reported"
	ReasonInvalidEndpoint = "credentials failed validation"
	ReasonExcluded        = "excluded by name"
	ReasonNotAvailable    = "not available"
)
