package models

// Company is a directory entry as listed to callers. Credentials stay in the
// directory and are never serialized.
type Company struct {
	Name     string `json:"name"`
	Server   string `json:"server"`
	Database string `json:"database"`
	Trusted  bool   `json:"trusted"`
}

// ServerEntry is a server from the server directory.
type ServerEntry struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Databases []DatabaseEntry `json:"databases"`
}

// DatabaseEntry is a database under a ServerEntry.
type DatabaseEntry struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Tables map[string]string `json:"tables,omitempty"`
}
