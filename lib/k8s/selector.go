package k8s

import (
	"fmt"
	"sort"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// NamespaceMatcher scopes lookups to one namespace and, optionally, to
// resources carrying all of Labels.
type NamespaceMatcher struct {
	// Namespace to look in. Empty means the default namespace.
	Namespace string `json:"namespace,omitempty"`

	// Labels every matched resource must carry.
	Labels map[string]string `json:"labels,omitempty"`
}

// LabelSelector returns a label selector string for Labels, sorted by key.
// Returns empty string if no labels are specified
func (nm *NamespaceMatcher) LabelSelector() string {
	if len(nm.Labels) == 0 {
		return ""
	}

	parts := make([]string, 0, len(nm.Labels))
	for key, value := range nm.Labels {
		parts = append(parts, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// TweakListOptions adds the Labels to opts
func (nm *NamespaceMatcher) TweakListOptions(opts *metav1.ListOptions) {
	if len(nm.Labels) > 0 {
		selector := nm.LabelSelector()
		if opts.LabelSelector != "" {
			opts.LabelSelector = opts.LabelSelector + "," + selector
		} else {
			opts.LabelSelector = selector
		}
	}
}

// NamespaceOrDefault returns Namespace, or "default" when unset.
func (nm *NamespaceMatcher) NamespaceOrDefault() string {
	if nm.Namespace == "" {
		return metav1.NamespaceDefault
	}
	return nm.Namespace
}
