package google_cloud_sql

type Config struct {
	Project string `json:"project"`
	// IpAddressType selects which address of an instance to connect to,
	// PRIMARY (public) or PRIVATE.
	IpAddressType string `json:"ip_address_type,omitempty"`
	Port          int    `json:"port,omitempty"`

	// Cloud SQL never returns passwords, so the monitoring login is
	// configured here and shared by every instance of the cluster.
	Database     string `json:"database"`
	AuthUser     string `json:"auth_user"`
	AuthPassword string `json:"auth_password"`
}
