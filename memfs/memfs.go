package memfs

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wippyai/fsplugin/errors"
	"github.com/wippyai/fsplugin/filesystem"
)

type file struct {
	modTime time.Time
	data    []byte
	mode    uint32
}

type dir struct {
	modTime time.Time
	mode    uint32
}

// FS is a fully writable in-memory filesystem. It implements every
// capability operation and serves as the reference for write-flag
// semantics.
type FS struct {
	filesystem.Base

	files map[string]*file
	dirs  map[string]*dir
	mu    sync.Mutex
}

// New returns an empty filesystem containing only the root directory.
func New() *FS {
	return &FS{
		files: make(map[string]*file),
		dirs:  map[string]*dir{"/": {mode: 0o755, modTime: time.Now()}},
	}
}

func (m *FS) Name() string {
	return "memfs"
}

func (m *FS) Readme() string {
	return "In-memory filesystem. Contents live for the lifetime of the plugin instance."
}

func parent(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}

func base(path string) string {
	if path == "/" {
		return ""
	}
	return path[strings.LastIndexByte(path, '/')+1:]
}

func validPath(path string) error {
	if path == "" || path[0] != '/' {
		return errors.InvalidInput("path must be absolute: %q", path)
	}
	return nil
}

func (m *FS) Stat(path string) (filesystem.FileInfo, error) {
	if err := validPath(path); err != nil {
		return filesystem.FileInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statLocked(path)
}

func (m *FS) statLocked(path string) (filesystem.FileInfo, error) {
	if d, ok := m.dirs[path]; ok {
		fi := filesystem.Dir(base(path), d.mode)
		fi.ModTime = d.modTime
		return fi, nil
	}
	if f, ok := m.files[path]; ok {
		fi := filesystem.File(base(path), int64(len(f.data)), f.mode)
		fi.ModTime = f.modTime
		return fi, nil
	}
	return filesystem.FileInfo{}, errors.NotFound()
}

func (m *FS) Readdir(path string) ([]filesystem.FileInfo, error) {
	if err := validPath(path); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.dirs[path]; !ok {
		if _, ok := m.files[path]; ok {
			return nil, errors.NotDirectory()
		}
		return nil, errors.NotFound()
	}

	var infos []filesystem.FileInfo
	for p, d := range m.dirs {
		if p != "/" && parent(p) == path {
			fi := filesystem.Dir(base(p), d.mode)
			fi.ModTime = d.modTime
			infos = append(infos, fi)
		}
	}
	for p, f := range m.files {
		if parent(p) == path {
			fi := filesystem.File(base(p), int64(len(f.data)), f.mode)
			fi.ModTime = f.modTime
			infos = append(infos, fi)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (m *FS) Read(path string, offset, size int64) ([]byte, error) {
	if err := validPath(path); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.dirs[path]; ok {
		return nil, errors.IsDirectory()
	}
	f, ok := m.files[path]
	if !ok {
		return nil, errors.NotFound()
	}
	if offset < 0 {
		return nil, errors.InvalidInput("negative offset")
	}
	if offset >= int64(len(f.data)) {
		return []byte{}, nil
	}
	end := int64(len(f.data))
	if size >= 0 && offset+size < end {
		end = offset + size
	}
	out := make([]byte, end-offset)
	copy(out, f.data[offset:end])
	return out, nil
}

func (m *FS) Write(path string, data []byte, offset int64, flags filesystem.WriteFlag) (int64, error) {
	if err := validPath(path); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.dirs[path]; ok {
		return 0, errors.IsDirectory()
	}
	f, exists := m.files[path]
	switch {
	case exists && flags.Has(filesystem.WriteCreate) && flags.Has(filesystem.WriteExcl):
		return 0, errors.AlreadyExists()
	case !exists && !flags.Has(filesystem.WriteCreate):
		return 0, errors.NotFound()
	case !exists:
		if _, ok := m.dirs[parent(path)]; !ok {
			return 0, errors.NotFound()
		}
		f = &file{mode: 0o644}
		m.files[path] = f
	}

	if flags.Has(filesystem.WriteTruncate) {
		f.data = f.data[:0]
	}
	if offset < 0 || flags.Has(filesystem.WriteAppend) {
		offset = int64(len(f.data))
	}
	if grow := offset + int64(len(data)) - int64(len(f.data)); grow > 0 {
		f.data = append(f.data, make([]byte, grow)...)
	}
	copy(f.data[offset:], data)
	f.modTime = time.Now()
	return int64(len(data)), nil
}

func (m *FS) Create(path string) error {
	if err := validPath(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.dirs[path]; ok {
		return errors.IsDirectory()
	}
	if _, ok := m.dirs[parent(path)]; !ok {
		return errors.NotFound()
	}
	if f, ok := m.files[path]; ok {
		f.data = f.data[:0]
		f.modTime = time.Now()
		return nil
	}
	m.files[path] = &file{mode: 0o644, modTime: time.Now()}
	return nil
}

func (m *FS) Mkdir(path string, mode uint32) error {
	if err := validPath(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.dirs[path]; ok {
		return errors.AlreadyExists()
	}
	if _, ok := m.files[path]; ok {
		return errors.AlreadyExists()
	}
	if _, ok := m.dirs[parent(path)]; !ok {
		return errors.NotFound()
	}
	m.dirs[path] = &dir{mode: mode, modTime: time.Now()}
	return nil
}

func (m *FS) Remove(path string) error {
	if err := validPath(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[path]; ok {
		delete(m.files, path)
		return nil
	}
	if _, ok := m.dirs[path]; ok {
		if path == "/" {
			return errors.PermissionDenied()
		}
		for p := range m.files {
			if parent(p) == path {
				return errors.Other("directory not empty")
			}
		}
		for p := range m.dirs {
			if p != path && strings.HasPrefix(p, path+"/") {
				return errors.Other("directory not empty")
			}
		}
		delete(m.dirs, path)
		return nil
	}
	return errors.NotFound()
}

func (m *FS) RemoveAll(path string) error {
	if err := validPath(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.files, path)
	for p := range m.files {
		if strings.HasPrefix(p, path+"/") {
			delete(m.files, p)
		}
	}
	if path != "/" {
		delete(m.dirs, path)
		for p := range m.dirs {
			if strings.HasPrefix(p, path+"/") {
				delete(m.dirs, p)
			}
		}
	}
	return nil
}

func (m *FS) Rename(oldPath, newPath string) error {
	if err := validPath(oldPath); err != nil {
		return err
	}
	if err := validPath(newPath); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.dirs[parent(newPath)]; !ok {
		return errors.NotFound()
	}
	if f, ok := m.files[oldPath]; ok {
		delete(m.files, oldPath)
		m.files[newPath] = f
		return nil
	}
	if d, ok := m.dirs[oldPath]; ok {
		delete(m.dirs, oldPath)
		m.dirs[newPath] = d
		prefix := oldPath + "/"
		for p, f := range m.files {
			if strings.HasPrefix(p, prefix) {
				delete(m.files, p)
				m.files[newPath+p[len(oldPath):]] = f
			}
		}
		for p, dd := range m.dirs {
			if strings.HasPrefix(p, prefix) {
				delete(m.dirs, p)
				m.dirs[newPath+p[len(oldPath):]] = dd
			}
		}
		return nil
	}
	return errors.NotFound()
}

func (m *FS) Chmod(path string, mode uint32) error {
	if err := validPath(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.files[path]; ok {
		f.mode = mode
		return nil
	}
	if d, ok := m.dirs[path]; ok {
		d.mode = mode
		return nil
	}
	return errors.NotFound()
}

// Sync is a no-op flush; it exists so handle sync calls have somewhere
// to land.
func (m *FS) Sync(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.statLocked(path); err != nil {
		return err
	}
	return nil
}

var (
	_ filesystem.FileSystem = (*FS)(nil)
	_ filesystem.Syncer     = (*FS)(nil)
)
