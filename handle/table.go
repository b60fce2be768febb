package handle

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/wippyai/fsplugin/errors"
	"github.com/wippyai/fsplugin/filesystem"
)

// entry is the state of one open handle: where it points, how it was
// opened, and the tracked byte position for sequential operations.
type entry struct {
	path  string
	flags filesystem.OpenFlag
	pos   int64
}

// Table provides stateful pread/pwrite/seek/sync/close semantics on top
// of a stateless capability implementation. One Table is scoped to one
// plugin instance and serializes all access behind a single lock.
type Table struct {
	fs      filesystem.FileSystem
	entries map[string]*entry
	mu      sync.Mutex
}

// NewTable creates an empty handle table backed by fs.
func NewTable(fs filesystem.FileSystem) *Table {
	return &Table{
		fs:      fs,
		entries: make(map[string]*entry),
	}
}

// newToken generates an opaque handle token, unique for the lifetime of
// the plugin instance.
func newToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return "h_" + hex.EncodeToString(b)
}

// Open resolves path with a stat probe, applies the create/exclusive/
// truncate flags, and issues a fresh token. Tokens are never reused; a
// second open of the same path is an independent handle.
func (t *Table) Open(path string, flags filesystem.OpenFlag, mode uint32) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	exists := true
	if _, err := t.fs.Stat(path); err != nil {
		if errors.KindOf(err) != errors.KindNotFound {
			return "", err
		}
		exists = false
	}

	switch {
	case !exists && !flags.Has(filesystem.Create):
		return "", errors.NotFound()
	case exists && flags.Has(filesystem.Create) && flags.Has(filesystem.Excl):
		return "", errors.AlreadyExists()
	case !exists:
		if err := t.fs.Create(path); err != nil {
			return "", err
		}
	case flags.Has(filesystem.Truncate) && flags.Writable():
		if _, err := t.fs.Write(path, nil, 0, filesystem.WriteTruncate); err != nil {
			return "", err
		}
	}

	id := newToken()
	// Position starts at 0 even for append handles; append writes resolve
	// end-of-content per call, since the size may change under us.
	t.entries[id] = &entry{path: path, flags: flags}
	return id, nil
}

func (t *Table) get(id string) (*entry, error) {
	e, ok := t.entries[id]
	if !ok {
		return nil, errors.NotFound()
	}
	return e, nil
}

// Read reads from the tracked position and advances it by the number of
// bytes actually read. Reading at or past end of content returns 0.
func (t *Table) Read(id string, buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.get(id)
	if err != nil {
		return 0, err
	}
	if !e.flags.Readable() {
		return 0, errors.PermissionDenied()
	}
	n, err := t.readAt(e.path, buf, e.pos)
	if err != nil {
		return 0, err
	}
	e.pos += int64(n)
	return n, nil
}

// ReadAt reads at offset and never mutates the tracked position.
func (t *Table) ReadAt(id string, buf []byte, offset int64) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.get(id)
	if err != nil {
		return 0, err
	}
	if !e.flags.Readable() {
		return 0, errors.PermissionDenied()
	}
	if offset < 0 {
		return 0, errors.InvalidInput("negative offset")
	}
	return t.readAt(e.path, buf, offset)
}

func (t *Table) readAt(path string, buf []byte, offset int64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	data, err := t.fs.Read(path, offset, int64(len(buf)))
	if err != nil {
		return 0, err
	}
	return copy(buf, data), nil
}

// Write writes at the tracked position and advances it. Under the append
// flag the target is the current end of content, re-resolved on every
// call rather than cached at open.
func (t *Table) Write(id string, data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.get(id)
	if err != nil {
		return 0, err
	}
	if !e.flags.Writable() {
		return 0, errors.PermissionDenied()
	}

	off := e.pos
	if e.flags.Has(filesystem.Append) {
		fi, err := t.fs.Stat(e.path)
		if err != nil {
			return 0, err
		}
		off = fi.Size
	}

	n, err := t.fs.Write(e.path, data, off, 0)
	if err != nil {
		return 0, err
	}
	e.pos = off + n
	return int(n), nil
}

// WriteAt writes at offset and never mutates the tracked position.
func (t *Table) WriteAt(id string, data []byte, offset int64) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.get(id)
	if err != nil {
		return 0, err
	}
	if !e.flags.Writable() {
		return 0, errors.PermissionDenied()
	}
	if offset < 0 {
		return 0, errors.InvalidInput("negative offset")
	}
	n, err := t.fs.Write(e.path, data, offset, 0)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Seek moves the tracked position. whence follows io.Seek conventions;
// from-end resolves the current size with a stat at seek time.
func (t *Table) Seek(id string, offset int64, whence int) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.get(id)
	if err != nil {
		return 0, err
	}

	var pos int64
	switch whence {
	case 0:
		pos = offset
	case 1:
		pos = e.pos + offset
	case 2:
		fi, err := t.fs.Stat(e.path)
		if err != nil {
			return 0, err
		}
		pos = fi.Size + offset
	default:
		return 0, errors.InvalidInput("invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, errors.InvalidInput("negative position")
	}
	e.pos = pos
	return pos, nil
}

// Sync flushes the handle's path if the capability implements Syncer;
// otherwise it is a no-op. It still fails not-found for unknown tokens.
func (t *Table) Sync(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.get(id)
	if err != nil {
		return err
	}
	if s, ok := t.fs.(filesystem.Syncer); ok {
		return s.Sync(e.path)
	}
	return nil
}

// Stat returns fresh file information for the handle's path.
func (t *Table) Stat(id string) (filesystem.FileInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.get(id)
	if err != nil {
		return filesystem.FileInfo{}, err
	}
	return t.fs.Stat(e.path)
}

// Info returns the path and flags the handle was opened with.
func (t *Table) Info(id string) (string, filesystem.OpenFlag, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.get(id)
	if err != nil {
		return "", 0, err
	}
	return e.path, e.flags, nil
}

// Close removes the entry. A closed token is never valid again; closing
// twice fails not-found.
func (t *Table) Close(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[id]; !ok {
		return errors.NotFound()
	}
	delete(t.entries, id)
	return nil
}

// Len returns the number of open handles.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
