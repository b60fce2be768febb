package filesystem

import "time"

// MetaData is optional plugin-defined metadata attached to a FileInfo.
// Content is arbitrary structured data and travels as-is on the wire.
type MetaData struct {
	Name    string `json:"Name"`
	Type    string `json:"Type"`
	Content any    `json:"Content"`
}

// FileInfo describes one file or directory. It is produced fresh on every
// stat/readdir call; nothing in this module caches it.
//
// A zero ModTime encodes as "0001-01-01T00:00:00Z". Decoders treat
// timestamps as best-effort: an unparseable value leaves the zero time
// rather than failing the record.
type FileInfo struct {
	ModTime time.Time
	Name    string
	Meta    *MetaData
	Size    int64
	Mode    uint32
	IsDir   bool
}

// File returns a FileInfo for a regular file.
func File(name string, size int64, mode uint32) FileInfo {
	return FileInfo{Name: name, Size: size, Mode: mode}
}

// Dir returns a FileInfo for a directory.
func Dir(name string, mode uint32) FileInfo {
	return FileInfo{Name: name, Mode: mode, IsDir: true}
}

// WithMeta attaches metadata.
func (fi FileInfo) WithMeta(meta MetaData) FileInfo {
	fi.Meta = &meta
	return fi
}

// WithModTime sets the modification time.
func (fi FileInfo) WithModTime(t time.Time) FileInfo {
	fi.ModTime = t
	return fi
}

// ConfigParam describes one configuration parameter a plugin accepts.
type ConfigParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Default     string `json:"default"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Config is the decoded plugin configuration: a flat key-value mapping
// supplied once at initialization and immutable afterwards.
type Config map[string]any

// GetString returns the string value for key, or "" if absent or not a
// string.
func (c Config) GetString(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// GetInt64 returns the integer value for key, or 0 if absent. JSON
// numbers decode as float64, so both representations are accepted.
func (c Config) GetInt64(key string) int64 {
	switch v := c[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// GetBool returns the boolean value for key, or false if absent.
func (c Config) GetBool(key string) bool {
	if v, ok := c[key].(bool); ok {
		return v
	}
	return false
}

// Has reports whether key is present.
func (c Config) Has(key string) bool {
	_, ok := c[key]
	return ok
}
