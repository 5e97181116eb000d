package catalog

import (
	"fmt"
	"strings"
)

// TopologyInvariantViolation is returned when a catalog does not hold exactly
// one master.
type TopologyInvariantViolation struct {
	Masters []string
}

func (T *TopologyInvariantViolation) Error() string {
	if len(T.Masters) == 0 {
		return "topology: no master in catalog"
	}
	return fmt.Sprintf("topology: %d masters in catalog (%s)", len(T.Masters), strings.Join(T.Masters, ", "))
}

var _ error = (*TopologyInvariantViolation)(nil)

// Master returns the unique master. ok is false when there is none or more
// than one.
func Master(c Catalog) (Node, bool) {
	master, err := RequireMaster(c)
	return master, err == nil
}

// RequireMaster returns the unique master, or a *TopologyInvariantViolation if
// there is none or more than one.
func RequireMaster(c Catalog) (Node, error) {
	var masters []Node
	c.Range(func(node Node) bool {
		if node.Role == RoleMaster {
			masters = append(masters, node)
		}
		return true
	})
	if len(masters) != 1 {
		keys := make([]string, 0, len(masters))
		for _, m := range masters {
			keys = append(keys, m.Key)
		}
		return Node{}, &TopologyInvariantViolation{Masters: keys}
	}
	return masters[0], nil
}

// Followers returns every follower in catalog order.
func Followers(c Catalog) []Node {
	var followers []Node
	c.Range(func(node Node) bool {
		if node.Role == RoleFollower {
			followers = append(followers, node)
		}
		return true
	})
	return followers
}
