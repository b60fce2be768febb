package handle

import (
	"github.com/wippyai/fsplugin/filesystem"
)

// FS grafts handle support onto a stateless capability implementation.
// Plugins that implement filesystem.HandleFS themselves bypass this.
type FS struct {
	filesystem.FileSystem
	table *Table
}

// Wrap returns fs extended with table-backed handle semantics.
func Wrap(fs filesystem.FileSystem) *FS {
	return &FS{FileSystem: fs, table: NewTable(fs)}
}

// Table exposes the underlying handle table.
func (f *FS) Table() *Table {
	return f.table
}

func (f *FS) Open(path string, flags filesystem.OpenFlag, mode uint32) (string, error) {
	return f.table.Open(path, flags, mode)
}

func (f *FS) HandleRead(id string, buf []byte) (int, error) {
	return f.table.Read(id, buf)
}

func (f *FS) HandleReadAt(id string, buf []byte, offset int64) (int, error) {
	return f.table.ReadAt(id, buf, offset)
}

func (f *FS) HandleWrite(id string, data []byte) (int, error) {
	return f.table.Write(id, data)
}

func (f *FS) HandleWriteAt(id string, data []byte, offset int64) (int, error) {
	return f.table.WriteAt(id, data, offset)
}

func (f *FS) HandleSeek(id string, offset int64, whence int) (int64, error) {
	return f.table.Seek(id, offset, whence)
}

func (f *FS) HandleSync(id string) error {
	return f.table.Sync(id)
}

func (f *FS) HandleStat(id string) (filesystem.FileInfo, error) {
	return f.table.Stat(id)
}

func (f *FS) HandleInfo(id string) (string, filesystem.OpenFlag, error) {
	return f.table.Info(id)
}

func (f *FS) HandleClose(id string) error {
	return f.table.Close(id)
}

var _ filesystem.HandleFS = (*FS)(nil)
