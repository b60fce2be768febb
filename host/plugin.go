package host

import (
	"bytes"
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/fsplugin"
	"github.com/wippyai/fsplugin/boundary"
	"github.com/wippyai/fsplugin/codec"
	"github.com/wippyai/fsplugin/errors"
	"github.com/wippyai/fsplugin/filesystem"
)

// guestFunc is one resolved entry point. Multi-value returns do not
// occur on this boundary; the single result word is enough.
type guestFunc func(ctx context.Context, args ...uint64) (uint64, error)

func wrapFunc(fn api.Function) guestFunc {
	return func(ctx context.Context, args ...uint64) (uint64, error) {
		res, err := fn.Call(ctx, args...)
		if err != nil {
			return 0, errors.IO(err, "plugin call failed")
		}
		if len(res) == 0 {
			return 0, nil
		}
		return res[0], nil
	}
}

type runtimeCloser interface {
	Close(context.Context) error
}

// Plugin is a loaded plugin instance. All methods are safe for
// concurrent use; calls are serialized because arguments are staged
// through the shared input buffer.
type Plugin struct {
	mem     fsplugin.Memory
	alloc   fsplugin.Allocator
	funcs   map[string]guestFunc
	log     *zap.Logger
	runtime runtimeCloser
	mu      sync.Mutex
	inPtr   uint32
	outPtr  uint32
	bufSize uint32
}

// Close tears down the plugin's runtime. Call Shutdown first if the
// plugin was initialized.
func (p *Plugin) Close(ctx context.Context) error {
	if p.runtime == nil {
		return nil
	}
	return p.runtime.Close(ctx)
}

func (p *Plugin) call(ctx context.Context, name string, args ...uint64) (uint64, error) {
	fn, ok := p.funcs[name]
	if !ok {
		return 0, errors.Other("entry point %q not bound", name)
	}
	return fn(ctx, args...)
}

func (p *Plugin) discoverBuffers(ctx context.Context) error {
	in, err := p.call(ctx, fsplugin.ExportInputBufferPtr)
	if err != nil {
		return err
	}
	out, err := p.call(ctx, fsplugin.ExportOutputBufferPtr)
	if err != nil {
		return err
	}
	size, err := p.call(ctx, fsplugin.ExportSharedBufSize)
	if err != nil {
		return err
	}
	if in == 0 || out == 0 || size == 0 {
		return errors.Other("plugin reports no shared buffers")
	}
	p.inPtr, p.outPtr, p.bufSize = uint32(in), uint32(out), uint32(size)
	return nil
}

// frame stages call arguments in guest memory: through the shared input
// buffer while they fit, through guest malloc beyond that. close frees
// only what was malloced.
type frame struct {
	p      *Plugin
	allocs [][2]uint32
	used   uint32
}

func (p *Plugin) frame() *frame {
	return &frame{p: p}
}

func (f *frame) put(data []byte) (uint32, error) {
	size := uint32(len(data))
	if size == 0 {
		return 0, nil
	}
	if f.used+size <= f.p.bufSize {
		ptr := f.p.inPtr + f.used
		if err := f.p.mem.Write(ptr, data); err != nil {
			return 0, err
		}
		f.used += size
		return ptr, nil
	}
	ptr, err := f.p.alloc.Alloc(size)
	if err != nil {
		return 0, err
	}
	if err := f.p.mem.Write(ptr, data); err != nil {
		_ = f.p.alloc.Free(ptr, size)
		return 0, err
	}
	f.allocs = append(f.allocs, [2]uint32{ptr, size})
	return ptr, nil
}

func (f *frame) cstring(s string) (uint32, error) {
	return f.put(append([]byte(s), 0))
}

func (f *frame) bytes(b []byte) (uint32, uint32, error) {
	ptr, err := f.put(b)
	return ptr, uint32(len(b)), err
}

func (f *frame) close() {
	for _, a := range f.allocs {
		if err := f.p.alloc.Free(a[0], a[1]); err != nil {
			f.p.log.Warn("free staged argument", zap.Uint32("ptr", a[0]), zap.Error(err))
		}
	}
}

const cstringChunk = 256

// peekCString reads a null-terminated string without freeing it.
func (p *Plugin) peekCString(ptr uint32) (string, error) {
	var out []byte
	off := ptr
	for {
		chunk, err := p.mem.Read(off, cstringChunk)
		if err != nil {
			// Near the end of memory; fall back to single bytes.
			chunk, err = p.mem.Read(off, 1)
			if err != nil {
				return "", err
			}
		}
		if i := bytes.IndexByte(chunk, 0); i >= 0 {
			return string(append(out, chunk[:i]...)), nil
		}
		out = append(out, chunk...)
		off += uint32(len(chunk))
	}
}

// takeCString reads a guest-owned string and returns the allocation.
func (p *Plugin) takeCString(ptr uint32) (string, error) {
	s, err := p.peekCString(ptr)
	if ferr := p.alloc.Free(ptr, uint32(len(s))+1); ferr != nil && err == nil {
		err = ferr
	}
	return s, err
}

// takeError consumes an error pointer: nil on 0, a decoded wire error
// otherwise.
func (p *Plugin) takeError(ptr uint32) error {
	if ptr == 0 {
		return nil
	}
	msg, err := p.takeCString(ptr)
	if err != nil {
		return err
	}
	return errors.FromMessage(msg)
}

// takePrimary consumes a (resultPtr, errPtr) word.
func (p *Plugin) takePrimary(word uint64) (string, error) {
	hi, lo := boundary.Unpack(word)
	if hi == 0 {
		if lo == 0 {
			return "", errors.Other("plugin returned neither result nor error")
		}
		return "", p.takeError(lo)
	}
	return p.takeCString(hi)
}

// takeCount consumes a (count, errPtr) word.
func (p *Plugin) takeCount(word uint64) (uint32, error) {
	n, errPtr := boundary.Unpack(word)
	if errPtr != 0 {
		return 0, p.takeError(errPtr)
	}
	return n, nil
}

// Name returns the plugin identifier.
func (p *Plugin) Name(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ptr, err := p.call(ctx, fsplugin.ExportPluginName)
	if err != nil {
		return "", err
	}
	if ptr == 0 {
		return "", errors.Other("plugin returned no name")
	}
	return p.takeCString(uint32(ptr))
}

// Readme returns the plugin documentation.
func (p *Plugin) Readme(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ptr, err := p.call(ctx, fsplugin.ExportPluginReadme)
	if err != nil {
		return "", err
	}
	if ptr == 0 {
		return "", errors.Other("plugin returned no readme")
	}
	return p.takeCString(uint32(ptr))
}

// ConfigParams returns the plugin's declared configuration parameters.
func (p *Plugin) ConfigParams(ctx context.Context) ([]filesystem.ConfigParam, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	word, err := p.call(ctx, fsplugin.ExportPluginConfigParams)
	if err != nil {
		return nil, err
	}
	raw, err := p.takePrimary(word)
	if err != nil {
		return nil, err
	}
	return codec.DecodeConfigParams([]byte(raw))
}

func (p *Plugin) configCall(ctx context.Context, export string, cfg filesystem.Config) error {
	raw, err := codec.EncodeConfig(cfg)
	if err != nil {
		return err
	}
	f := p.frame()
	defer f.close()
	ptr, length, err := f.bytes(raw)
	if err != nil {
		return err
	}
	res, err := p.call(ctx, export, uint64(ptr), uint64(length))
	if err != nil {
		return err
	}
	return p.takeError(uint32(res))
}

// Validate asks the plugin to check a configuration.
func (p *Plugin) Validate(ctx context.Context, cfg filesystem.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.configCall(ctx, fsplugin.ExportPluginValidate, cfg)
}

// Initialize hands the plugin its configuration and enables filesystem
// operations.
func (p *Plugin) Initialize(ctx context.Context, cfg filesystem.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.configCall(ctx, fsplugin.ExportPluginInitialize, cfg)
}

// Shutdown stops the plugin instance.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, err := p.call(ctx, fsplugin.ExportPluginShutdown)
	if err != nil {
		return err
	}
	return p.takeError(uint32(res))
}

// Read returns up to size bytes of path starting at offset; size < 0
// reads to end.
func (p *Plugin) Read(ctx context.Context, path string, offset, size int64) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.frame()
	defer f.close()
	pathPtr, err := f.cstring(path)
	if err != nil {
		return nil, err
	}
	word, err := p.call(ctx, fsplugin.ExportFSRead, uint64(pathPtr), uint64(offset), uint64(size))
	if err != nil {
		return nil, err
	}
	if word == 0 {
		return nil, errors.IO(nil, "plugin read failed")
	}
	dataPtr, length := boundary.Unpack(word)
	data, err := p.mem.Read(dataPtr, length)
	if ferr := p.alloc.Free(dataPtr, length); ferr != nil && err == nil {
		err = ferr
	}
	return data, err
}

// Write writes data at offset; offset < 0 appends. Returns the number
// of bytes written.
func (p *Plugin) Write(ctx context.Context, path string, data []byte, offset int64, flags filesystem.WriteFlag) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.frame()
	defer f.close()
	pathPtr, err := f.cstring(path)
	if err != nil {
		return 0, err
	}
	dataPtr, dataLen, err := f.bytes(data)
	if err != nil {
		return 0, err
	}
	word, err := p.call(ctx, fsplugin.ExportFSWrite, uint64(pathPtr), uint64(dataPtr), uint64(dataLen), uint64(offset), uint64(flags))
	if err != nil {
		return 0, err
	}
	n, err := p.takeCount(word)
	return int64(n), err
}

// pathCall runs an error-only entry point taking a single path.
func (p *Plugin) pathCall(ctx context.Context, export, path string, extra ...uint64) error {
	f := p.frame()
	defer f.close()
	ptr, err := f.cstring(path)
	if err != nil {
		return err
	}
	args := append([]uint64{uint64(ptr)}, extra...)
	res, err := p.call(ctx, export, args...)
	if err != nil {
		return err
	}
	return p.takeError(uint32(res))
}

// Create creates an empty file.
func (p *Plugin) Create(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pathCall(ctx, fsplugin.ExportFSCreate, path)
}

// Mkdir creates a directory.
func (p *Plugin) Mkdir(ctx context.Context, path string, mode uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pathCall(ctx, fsplugin.ExportFSMkdir, path, uint64(mode))
}

// Remove removes a file or empty directory.
func (p *Plugin) Remove(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pathCall(ctx, fsplugin.ExportFSRemove, path)
}

// RemoveAll removes a path and any children.
func (p *Plugin) RemoveAll(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pathCall(ctx, fsplugin.ExportFSRemoveAll, path)
}

// Stat returns file information for path.
func (p *Plugin) Stat(ctx context.Context, path string) (filesystem.FileInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	raw, err := p.jsonPathCall(ctx, fsplugin.ExportFSStat, path)
	if err != nil {
		return filesystem.FileInfo{}, err
	}
	return codec.DecodeFileInfo(raw)
}

// Readdir lists the entries of a directory.
func (p *Plugin) Readdir(ctx context.Context, path string) ([]filesystem.FileInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	raw, err := p.jsonPathCall(ctx, fsplugin.ExportFSReaddir, path)
	if err != nil {
		return nil, err
	}
	return codec.DecodeFileInfos(raw)
}

func (p *Plugin) jsonPathCall(ctx context.Context, export, path string) ([]byte, error) {
	f := p.frame()
	defer f.close()
	ptr, err := f.cstring(path)
	if err != nil {
		return nil, err
	}
	word, err := p.call(ctx, export, uint64(ptr))
	if err != nil {
		return nil, err
	}
	raw, err := p.takePrimary(word)
	if err != nil {
		return nil, err
	}
	return []byte(raw), nil
}

// Rename moves a file or directory.
func (p *Plugin) Rename(ctx context.Context, oldPath, newPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.frame()
	defer f.close()
	oldPtr, err := f.cstring(oldPath)
	if err != nil {
		return err
	}
	newPtr, err := f.cstring(newPath)
	if err != nil {
		return err
	}
	res, err := p.call(ctx, fsplugin.ExportFSRename, uint64(oldPtr), uint64(newPtr))
	if err != nil {
		return err
	}
	return p.takeError(uint32(res))
}

// Chmod changes permission bits.
func (p *Plugin) Chmod(ctx context.Context, path string, mode uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pathCall(ctx, fsplugin.ExportFSChmod, path, uint64(mode))
}

// Open opens a handle on path and returns its token.
func (p *Plugin) Open(ctx context.Context, path string, flags filesystem.OpenFlag, mode uint32) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.frame()
	defer f.close()
	ptr, err := f.cstring(path)
	if err != nil {
		return "", err
	}
	word, err := p.call(ctx, fsplugin.ExportOpen, uint64(ptr), uint64(flags), uint64(mode))
	if err != nil {
		return "", err
	}
	return p.takePrimary(word)
}

// destBuf reserves size bytes of guest memory for the plugin to fill:
// the shared output buffer when it fits, a malloc otherwise. release is
// a no-op for the shared buffer.
func (p *Plugin) destBuf(size uint32) (ptr uint32, release func(), err error) {
	if size <= p.bufSize {
		return p.outPtr, func() {}, nil
	}
	ptr, err = p.alloc.Alloc(size)
	if err != nil {
		return 0, nil, err
	}
	return ptr, func() {
		if ferr := p.alloc.Free(ptr, size); ferr != nil {
			p.log.Warn("free read buffer", zap.Uint32("ptr", ptr), zap.Error(ferr))
		}
	}, nil
}

func (p *Plugin) handleReadCall(ctx context.Context, export, id string, size uint32, extra ...uint64) ([]byte, error) {
	f := p.frame()
	defer f.close()
	idPtr, err := f.cstring(id)
	if err != nil {
		return nil, err
	}
	bufPtr, release, err := p.destBuf(size)
	if err != nil {
		return nil, err
	}
	defer release()

	args := append([]uint64{uint64(idPtr), uint64(bufPtr), uint64(size)}, extra...)
	word, err := p.call(ctx, export, args...)
	if err != nil {
		return nil, err
	}
	n, err := p.takeCount(word)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	return p.mem.Read(bufPtr, n)
}

// HandleRead reads up to size bytes from the handle's position.
func (p *Plugin) HandleRead(ctx context.Context, id string, size uint32) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handleReadCall(ctx, fsplugin.ExportHandleRead, id, size)
}

// HandleReadAt reads up to size bytes at offset without moving the
// handle's position.
func (p *Plugin) HandleReadAt(ctx context.Context, id string, size uint32, offset int64) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handleReadCall(ctx, fsplugin.ExportHandleReadAt, id, size, uint64(offset))
}

func (p *Plugin) handleWriteCall(ctx context.Context, export, id string, data []byte, extra ...uint64) (int, error) {
	f := p.frame()
	defer f.close()
	idPtr, err := f.cstring(id)
	if err != nil {
		return 0, err
	}
	dataPtr, dataLen, err := f.bytes(data)
	if err != nil {
		return 0, err
	}
	args := append([]uint64{uint64(idPtr), uint64(dataPtr), uint64(dataLen)}, extra...)
	word, err := p.call(ctx, export, args...)
	if err != nil {
		return 0, err
	}
	n, err := p.takeCount(word)
	return int(n), err
}

// HandleWrite writes at the handle's position.
func (p *Plugin) HandleWrite(ctx context.Context, id string, data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handleWriteCall(ctx, fsplugin.ExportHandleWrite, id, data)
}

// HandleWriteAt writes at offset without moving the handle's position.
func (p *Plugin) HandleWriteAt(ctx context.Context, id string, data []byte, offset int64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handleWriteCall(ctx, fsplugin.ExportHandleWriteAt, id, data, uint64(offset))
}

// HandleSeek moves the handle's position. whence follows io.Seek
// conventions.
func (p *Plugin) HandleSeek(ctx context.Context, id string, offset int64, whence int) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.frame()
	defer f.close()
	idPtr, err := f.cstring(id)
	if err != nil {
		return 0, err
	}
	word, err := p.call(ctx, fsplugin.ExportHandleSeek, uint64(idPtr), uint64(offset), uint64(uint32(whence)))
	if err != nil {
		return 0, err
	}
	pos, err := p.takeCount(word)
	return int64(pos), err
}

func (p *Plugin) handleErrCall(ctx context.Context, export, id string) error {
	f := p.frame()
	defer f.close()
	idPtr, err := f.cstring(id)
	if err != nil {
		return err
	}
	res, err := p.call(ctx, export, uint64(idPtr))
	if err != nil {
		return err
	}
	return p.takeError(uint32(res))
}

// HandleSync flushes the handle.
func (p *Plugin) HandleSync(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handleErrCall(ctx, fsplugin.ExportHandleSync, id)
}

// HandleStat returns file information for the handle's path.
func (p *Plugin) HandleStat(ctx context.Context, id string) (filesystem.FileInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.frame()
	defer f.close()
	idPtr, err := f.cstring(id)
	if err != nil {
		return filesystem.FileInfo{}, err
	}
	word, err := p.call(ctx, fsplugin.ExportHandleStat, uint64(idPtr))
	if err != nil {
		return filesystem.FileInfo{}, err
	}
	raw, err := p.takePrimary(word)
	if err != nil {
		return filesystem.FileInfo{}, err
	}
	return codec.DecodeFileInfo([]byte(raw))
}

// HandleInfo returns the path and flags the handle was opened with.
func (p *Plugin) HandleInfo(ctx context.Context, id string) (string, filesystem.OpenFlag, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.frame()
	defer f.close()
	idPtr, err := f.cstring(id)
	if err != nil {
		return "", 0, err
	}
	word, err := p.call(ctx, fsplugin.ExportHandleInfo, uint64(idPtr))
	if err != nil {
		return "", 0, err
	}
	raw, err := p.takePrimary(word)
	if err != nil {
		return "", 0, err
	}
	return codec.DecodeHandleInfo([]byte(raw))
}

// HandleClose invalidates the handle token.
func (p *Plugin) HandleClose(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handleErrCall(ctx, fsplugin.ExportHandleClose, id)
}
