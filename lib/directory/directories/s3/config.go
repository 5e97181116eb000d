package s3

type Config struct {
	Bucket string `json:"bucket"`
	// Prefix is prepended to every object key.
	Prefix string `json:"prefix,omitempty"`
	Region string `json:"region,omitempty"`

	// Endpoint overrides the service endpoint, for S3 compatible stores.
	Endpoint     string `json:"endpoint,omitempty"`
	UsePathStyle bool   `json:"use_path_style,omitempty"`

	// Static credentials. When empty the default AWS credential chain is used.
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
}
