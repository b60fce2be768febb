package filesystem

import (
	"github.com/wippyai/fsplugin/errors"
)

// FileSystem is the capability contract a plugin implements.
//
// Embed Base to pick up defaults for everything except Name, Stat, and
// Readdir; those three have no default, so a type that does not provide
// them fails to satisfy the interface at compile time.
//
// All paths are absolute, slash-separated, and case-sensitive.
type FileSystem interface {
	// Name returns the plugin identifier.
	Name() string

	// Readme returns the plugin documentation.
	Readme() string

	// ConfigParams returns the configuration parameters the plugin accepts.
	ConfigParams() []ConfigParam

	// Validate checks a configuration before initialization.
	Validate(cfg Config) error

	// Initialize prepares the plugin with its configuration. Called once,
	// after Validate and before any filesystem operation.
	Initialize(cfg Config) error

	// Shutdown releases plugin resources. Called when the filesystem is
	// being unmounted.
	Shutdown() error

	// Read returns up to size bytes starting at offset. size < 0 means
	// read to end. Reading at or past end of content returns an empty
	// slice, not an error.
	Read(path string, offset, size int64) ([]byte, error)

	// Write writes data at offset and returns the number of bytes
	// written. offset < 0 means append. flags are advisory.
	Write(path string, data []byte, offset int64, flags WriteFlag) (int64, error)

	// Create creates a new empty file.
	Create(path string) error

	// Mkdir creates a directory.
	Mkdir(path string, mode uint32) error

	// Remove removes a file or empty directory.
	Remove(path string) error

	// RemoveAll removes a path and any children.
	RemoveAll(path string) error

	// Stat returns information about a path.
	Stat(path string) (FileInfo, error)

	// Readdir lists the entries of a directory.
	Readdir(path string) ([]FileInfo, error)

	// Rename moves a file or directory.
	Rename(oldPath, newPath string) error

	// Chmod changes permission bits.
	Chmod(path string, mode uint32) error
}

// Base supplies the default behavior for every optional operation:
// lifecycle operations succeed as no-ops, mutating operations fail with
// read-only-filesystem. Name, Stat, and Readdir are deliberately absent.
type Base struct{}

func (Base) Readme() string {
	return "No documentation available"
}

func (Base) ConfigParams() []ConfigParam {
	return nil
}

func (Base) Validate(Config) error {
	return nil
}

func (Base) Initialize(Config) error {
	return nil
}

func (Base) Shutdown() error {
	return nil
}

func (Base) Read(string, int64, int64) ([]byte, error) {
	return nil, errors.ReadOnly()
}

func (Base) Write(string, []byte, int64, WriteFlag) (int64, error) {
	return 0, errors.ReadOnly()
}

func (Base) Create(string) error {
	return errors.ReadOnly()
}

func (Base) Mkdir(string, uint32) error {
	return errors.ReadOnly()
}

func (Base) Remove(string) error {
	return errors.ReadOnly()
}

func (Base) RemoveAll(string) error {
	return errors.ReadOnly()
}

func (Base) Rename(string, string) error {
	return errors.ReadOnly()
}

func (Base) Chmod(string, uint32) error {
	return errors.ReadOnly()
}

// HandleFS is implemented by filesystems that manage their own stateful
// handles. Plugins that only implement FileSystem get handle support from
// the handle package instead.
type HandleFS interface {
	FileSystem

	// Open resolves path, allocates a fresh token, and returns it. A
	// token is never reused, even for the same path.
	Open(path string, flags OpenFlag, mode uint32) (string, error)

	// HandleRead reads from the tracked position and advances it by the
	// number of bytes read.
	HandleRead(id string, buf []byte) (int, error)

	// HandleReadAt reads at offset without touching the tracked position.
	HandleReadAt(id string, buf []byte, offset int64) (int, error)

	// HandleWrite writes at the tracked position (or end of content when
	// the handle was opened with Append) and advances the position.
	HandleWrite(id string, data []byte) (int, error)

	// HandleWriteAt writes at offset without touching the tracked
	// position.
	HandleWriteAt(id string, data []byte, offset int64) (int, error)

	// HandleSeek moves the tracked position. whence follows io.Seek
	// conventions: 0 from start, 1 from current, 2 from end.
	HandleSeek(id string, offset int64, whence int) (int64, error)

	// HandleSync flushes buffered data, if the backing capability has any
	// notion of flushing. It still fails not-found for unknown tokens.
	HandleSync(id string) error

	// HandleStat returns file information for the handle's path.
	HandleStat(id string) (FileInfo, error)

	// HandleInfo returns the path and flags the handle was opened with.
	HandleInfo(id string) (string, OpenFlag, error)

	// HandleClose invalidates the token. Closing twice fails not-found.
	HandleClose(id string) error
}

// Syncer is optionally implemented by capability implementations with
// real flush semantics; handle sync calls forward to it.
type Syncer interface {
	Sync(path string) error
}
