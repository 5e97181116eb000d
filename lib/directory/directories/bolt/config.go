package bolt

type Config struct {
	// Path of the database file. It is created if missing.
	Path string `json:"path"`
}
