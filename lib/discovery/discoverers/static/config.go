package static

import "gfx.cafe/gfx/dbchain/lib/catalog"

type Node struct {
	Name      string         `json:"name"`
	Color     string         `json:"color,omitempty"`
	Following string         `json:"following,omitempty"`
	Status    catalog.Status `json:"status,omitempty"`

	// URL is a postgres:// connection URL. It is used when Endpoint is nil.
	URL      string            `json:"url,omitempty"`
	Endpoint *catalog.Endpoint `json:"endpoint,omitempty"`
}

type Config struct {
	// Clusters maps a cluster id to its nodes.
	Clusters map[string][]Node `json:"clusters,omitempty"`
	// File holds a JSON object shaped like Clusters. It is re-read on every
	// lookup and takes precedence over Clusters.
	File string `json:"file,omitempty"`
}
