package digitalocean

import "gfx.cafe/gfx/dbchain/lib/discovery"

type Config struct {
	discovery.TokenConfig

	// Private selects the VPC connection details instead of the public ones.
	Private bool `json:"private,omitempty"`

	// BaseURL overrides the API endpoint.
	BaseURL string `json:"base_url,omitempty"`
}
