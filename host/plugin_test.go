package host

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wippyai/fsplugin"
	"github.com/wippyai/fsplugin/boundary"
	fserrors "github.com/wippyai/fsplugin/errors"
	"github.com/wippyai/fsplugin/filesystem"
	"github.com/wippyai/fsplugin/guest"
	"github.com/wippyai/fsplugin/memfs"
)

// The fake guest emulates the wasm ABI over a byte arena: same export
// names, same argument marshaling, same result words, but dispatching
// to a native guest.Dispatcher. It exercises the host driver end to end
// without a wasm build.

const (
	arenaSize  = 1 << 20
	fakeInPtr  = 4096
	fakeOutPtr = fakeInPtr + fsplugin.SharedBufferSize
	heapStart  = fakeOutPtr + fsplugin.SharedBufferSize
)

type arenaMemory struct {
	data []byte
}

func (m *arenaMemory) check(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.data)) {
		return fserrors.InvalidInput("memory access out of range: %d+%d", offset, length)
	}
	return nil
}

func (m *arenaMemory) Read(offset, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.data[offset:])
	return out, nil
}

func (m *arenaMemory) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *arenaMemory) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *arenaMemory) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[offset:]), nil
}

func (m *arenaMemory) WriteU32(offset, value uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[offset:], value)
	return nil
}

func (m *arenaMemory) WriteU64(offset uint32, value uint64) error {
	if err := m.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[offset:], value)
	return nil
}

// arenaAlloc is a bump allocator that counts live allocations so tests
// can assert the host frees everything it takes ownership of.
type arenaAlloc struct {
	mem  *arenaMemory
	next uint32
	live int
}

func (a *arenaAlloc) Alloc(size uint32) (uint32, error) {
	if size == 0 {
		return 0, nil
	}
	ptr := a.next
	a.next += (size + 7) &^ 7
	if err := a.mem.check(ptr, size); err != nil {
		return 0, err
	}
	a.live++
	return ptr, nil
}

func (a *arenaAlloc) Free(ptr, size uint32) error {
	if ptr == 0 {
		return nil
	}
	a.live--
	return nil
}

type fakeGuest struct {
	mem   *arenaMemory
	alloc *arenaAlloc
	d     *guest.Dispatcher
	fs    *memfs.FS
}

func newFakeGuest() *fakeGuest {
	mem := &arenaMemory{data: make([]byte, arenaSize)}
	fs := memfs.New()
	return &fakeGuest{
		mem:   mem,
		alloc: &arenaAlloc{mem: mem, next: heapStart},
		d:     guest.NewDispatcher(fs),
		fs:    fs,
	}
}

func (g *fakeGuest) cstr(s string) uint32 {
	ptr, err := g.alloc.Alloc(uint32(len(s)) + 1)
	if err != nil {
		panic(err)
	}
	if err := g.mem.Write(ptr, append([]byte(s), 0)); err != nil {
		panic(err)
	}
	return ptr
}

func (g *fakeGuest) readCStr(ptr uint32) string {
	for end := ptr; ; end++ {
		b, err := g.mem.Read(end, 1)
		if err != nil {
			panic(err)
		}
		if b[0] == 0 {
			raw, _ := g.mem.Read(ptr, end-ptr)
			return string(raw)
		}
	}
}

func (g *fakeGuest) readBytes(ptr, length uint32) []byte {
	raw, err := g.mem.Read(ptr, length)
	if err != nil {
		panic(err)
	}
	return raw
}

func (g *fakeGuest) errPtr(err error) uint64 {
	if err == nil {
		return 0
	}
	return uint64(g.cstr(err.Error()))
}

func (g *fakeGuest) packBytes(data []byte, err error) uint64 {
	if err != nil {
		return 0
	}
	size := uint32(len(data))
	alloc := size
	if alloc == 0 {
		alloc = 1
	}
	ptr, aerr := g.alloc.Alloc(alloc)
	if aerr != nil {
		return 0
	}
	if werr := g.mem.Write(ptr, data); werr != nil {
		return 0
	}
	return boundary.Pack(ptr, size)
}

func (g *fakeGuest) packPrimary(s string, err error) uint64 {
	if err != nil {
		return boundary.Pack(0, g.cstr(err.Error()))
	}
	return boundary.Pack(g.cstr(s), 0)
}

func (g *fakeGuest) packJSON(data []byte, err error) uint64 {
	return g.packPrimary(string(data), err)
}

func (g *fakeGuest) packCount(n int64, err error) uint64 {
	if err != nil {
		return boundary.Pack(0, g.cstr(err.Error()))
	}
	return boundary.Pack(uint32(n), 0)
}

func (g *fakeGuest) funcs() map[string]guestFunc {
	h := func(fn func(args ...uint64) uint64) guestFunc {
		return func(_ context.Context, args ...uint64) (uint64, error) {
			return fn(args...), nil
		}
	}
	return map[string]guestFunc{
		fsplugin.ExportPluginNew: h(func(...uint64) uint64 { return 1 }),
		fsplugin.ExportPluginName: h(func(...uint64) uint64 {
			return uint64(g.cstr(g.d.Name()))
		}),
		fsplugin.ExportPluginReadme: h(func(...uint64) uint64 {
			return uint64(g.cstr(g.d.Readme()))
		}),
		fsplugin.ExportPluginConfigParams: h(func(...uint64) uint64 {
			return g.packJSON(g.d.ConfigParams())
		}),
		fsplugin.ExportPluginValidate: h(func(a ...uint64) uint64 {
			return g.errPtr(g.d.Validate(g.readBytes(uint32(a[0]), uint32(a[1]))))
		}),
		fsplugin.ExportPluginInitialize: h(func(a ...uint64) uint64 {
			return g.errPtr(g.d.Initialize(g.readBytes(uint32(a[0]), uint32(a[1]))))
		}),
		fsplugin.ExportPluginShutdown: h(func(...uint64) uint64 {
			return g.errPtr(g.d.Shutdown())
		}),
		fsplugin.ExportFSRead: h(func(a ...uint64) uint64 {
			data, err := g.d.Read(g.readCStr(uint32(a[0])), int64(a[1]), int64(a[2]))
			return g.packBytes(data, err)
		}),
		fsplugin.ExportFSWrite: h(func(a ...uint64) uint64 {
			n, err := g.d.Write(g.readCStr(uint32(a[0])), g.readBytes(uint32(a[1]), uint32(a[2])), int64(a[3]), filesystem.WriteFlag(a[4]))
			return g.packCount(n, err)
		}),
		fsplugin.ExportFSCreate: h(func(a ...uint64) uint64 {
			return g.errPtr(g.d.Create(g.readCStr(uint32(a[0]))))
		}),
		fsplugin.ExportFSMkdir: h(func(a ...uint64) uint64 {
			return g.errPtr(g.d.Mkdir(g.readCStr(uint32(a[0])), uint32(a[1])))
		}),
		fsplugin.ExportFSRemove: h(func(a ...uint64) uint64 {
			return g.errPtr(g.d.Remove(g.readCStr(uint32(a[0]))))
		}),
		fsplugin.ExportFSRemoveAll: h(func(a ...uint64) uint64 {
			return g.errPtr(g.d.RemoveAll(g.readCStr(uint32(a[0]))))
		}),
		fsplugin.ExportFSStat: h(func(a ...uint64) uint64 {
			data, err := g.d.Stat(g.readCStr(uint32(a[0])))
			return g.packJSON(data, err)
		}),
		fsplugin.ExportFSReaddir: h(func(a ...uint64) uint64 {
			data, err := g.d.Readdir(g.readCStr(uint32(a[0])))
			return g.packJSON(data, err)
		}),
		fsplugin.ExportFSRename: h(func(a ...uint64) uint64 {
			return g.errPtr(g.d.Rename(g.readCStr(uint32(a[0])), g.readCStr(uint32(a[1]))))
		}),
		fsplugin.ExportFSChmod: h(func(a ...uint64) uint64 {
			return g.errPtr(g.d.Chmod(g.readCStr(uint32(a[0])), uint32(a[1])))
		}),
		fsplugin.ExportOpen: h(func(a ...uint64) uint64 {
			id, err := g.d.Open(g.readCStr(uint32(a[0])), filesystem.OpenFlag(a[1]), uint32(a[2]))
			return g.packPrimary(id, err)
		}),
		fsplugin.ExportHandleRead: h(func(a ...uint64) uint64 {
			buf := make([]byte, uint32(a[2]))
			n, err := g.d.HandleRead(g.readCStr(uint32(a[0])), buf)
			if err == nil {
				err = g.mem.Write(uint32(a[1]), buf[:n])
			}
			return g.packCount(int64(n), err)
		}),
		fsplugin.ExportHandleReadAt: h(func(a ...uint64) uint64 {
			buf := make([]byte, uint32(a[2]))
			n, err := g.d.HandleReadAt(g.readCStr(uint32(a[0])), buf, int64(a[3]))
			if err == nil {
				err = g.mem.Write(uint32(a[1]), buf[:n])
			}
			return g.packCount(int64(n), err)
		}),
		fsplugin.ExportHandleWrite: h(func(a ...uint64) uint64 {
			n, err := g.d.HandleWrite(g.readCStr(uint32(a[0])), g.readBytes(uint32(a[1]), uint32(a[2])))
			return g.packCount(int64(n), err)
		}),
		fsplugin.ExportHandleWriteAt: h(func(a ...uint64) uint64 {
			n, err := g.d.HandleWriteAt(g.readCStr(uint32(a[0])), g.readBytes(uint32(a[1]), uint32(a[2])), int64(a[3]))
			return g.packCount(int64(n), err)
		}),
		fsplugin.ExportHandleSeek: h(func(a ...uint64) uint64 {
			pos, err := g.d.HandleSeek(g.readCStr(uint32(a[0])), int64(a[1]), int(uint32(a[2])))
			return g.packCount(pos, err)
		}),
		fsplugin.ExportHandleSync: h(func(a ...uint64) uint64 {
			return g.errPtr(g.d.HandleSync(g.readCStr(uint32(a[0]))))
		}),
		fsplugin.ExportHandleStat: h(func(a ...uint64) uint64 {
			data, err := g.d.HandleStat(g.readCStr(uint32(a[0])))
			return g.packJSON(data, err)
		}),
		fsplugin.ExportHandleInfo: h(func(a ...uint64) uint64 {
			data, err := g.d.HandleInfo(g.readCStr(uint32(a[0])))
			return g.packJSON(data, err)
		}),
		fsplugin.ExportHandleClose: h(func(a ...uint64) uint64 {
			return g.errPtr(g.d.HandleClose(g.readCStr(uint32(a[0]))))
		}),
		fsplugin.ExportMalloc: h(func(a ...uint64) uint64 {
			ptr, err := g.alloc.Alloc(uint32(a[0]))
			if err != nil {
				return 0
			}
			return uint64(ptr)
		}),
		fsplugin.ExportFree: h(func(a ...uint64) uint64 {
			_ = g.alloc.Free(uint32(a[0]), uint32(a[1]))
			return 0
		}),
		fsplugin.ExportInputBufferPtr:  h(func(...uint64) uint64 { return fakeInPtr }),
		fsplugin.ExportOutputBufferPtr: h(func(...uint64) uint64 { return fakeOutPtr }),
		fsplugin.ExportSharedBufSize:   h(func(...uint64) uint64 { return fsplugin.SharedBufferSize }),
	}
}

func newTestPlugin(t *testing.T) (*Plugin, *fakeGuest) {
	t.Helper()
	g := newFakeGuest()
	p := &Plugin{
		mem:   g.mem,
		alloc: g.alloc,
		funcs: g.funcs(),
		log:   zap.NewNop(),
	}
	require.NoError(t, p.discoverBuffers(context.Background()))
	require.Equal(t, uint32(fakeInPtr), p.inPtr)
	require.Equal(t, uint32(fsplugin.SharedBufferSize), p.bufSize)
	return p, g
}

func initializedPlugin(t *testing.T) (*Plugin, *fakeGuest) {
	t.Helper()
	p, g := newTestPlugin(t)
	require.NoError(t, p.Initialize(context.Background(), nil))
	return p, g
}

func TestIdentity(t *testing.T) {
	p, _ := newTestPlugin(t)
	ctx := context.Background()

	name, err := p.Name(ctx)
	require.NoError(t, err)
	require.Equal(t, "memfs", name)

	readme, err := p.Readme(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, readme)

	params, err := p.ConfigParams(ctx)
	require.NoError(t, err)
	require.Empty(t, params)
}

func TestLifecycle(t *testing.T) {
	p, _ := newTestPlugin(t)
	ctx := context.Background()

	// Operations are rejected until Initialize opens the gate.
	_, err := p.Stat(ctx, "/")
	require.EqualError(t, err, "plugin not initialized")

	require.NoError(t, p.Validate(ctx, filesystem.Config{}))
	require.NoError(t, p.Initialize(ctx, filesystem.Config{}))
	_, err = p.Stat(ctx, "/")
	require.NoError(t, err)

	require.NoError(t, p.Shutdown(ctx))
	_, err = p.Stat(ctx, "/")
	require.Error(t, err)
}

func TestReadWriteAcrossBoundary(t *testing.T) {
	p, g := initializedPlugin(t)
	ctx := context.Background()

	n, err := p.Write(ctx, "/hello.txt", []byte("hello boundary"), 0, filesystem.WriteCreate)
	require.NoError(t, err)
	require.Equal(t, int64(14), n)

	data, err := p.Read(ctx, "/hello.txt", 0, -1)
	require.NoError(t, err)
	require.Equal(t, "hello boundary", string(data))

	data, err = p.Read(ctx, "/hello.txt", 6, 8)
	require.NoError(t, err)
	require.Equal(t, "boundary", string(data))

	// Every buffer the host took ownership of was returned.
	require.Zero(t, g.alloc.live)
}

func TestStatReaddirAcrossBoundary(t *testing.T) {
	p, _ := initializedPlugin(t)
	ctx := context.Background()

	require.NoError(t, p.Mkdir(ctx, "/docs", 0o755))
	require.NoError(t, p.Create(ctx, "/docs/a.txt"))

	fi, err := p.Stat(ctx, "/docs")
	require.NoError(t, err)
	require.True(t, fi.IsDir)
	require.Equal(t, "docs", fi.Name)

	infos, err := p.Readdir(ctx, "/docs")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "a.txt", infos[0].Name)
}

func TestErrorKindsSurviveTheBoundary(t *testing.T) {
	p, _ := initializedPlugin(t)
	ctx := context.Background()

	_, err := p.Stat(ctx, "/ghost")
	require.Equal(t, fserrors.KindNotFound, fserrors.KindOf(err))
	require.EqualError(t, err, "file not found")

	require.NoError(t, p.Mkdir(ctx, "/d", 0o755))
	err = p.Mkdir(ctx, "/d", 0o755)
	require.Equal(t, fserrors.KindAlreadyExists, fserrors.KindOf(err))

	_, err = p.Read(ctx, "/d", 0, -1)
	require.Equal(t, fserrors.KindIO, fserrors.KindOf(err))
}

func TestMutatingOps(t *testing.T) {
	p, _ := initializedPlugin(t)
	ctx := context.Background()

	require.NoError(t, p.Create(ctx, "/f"))
	require.NoError(t, p.Chmod(ctx, "/f", 0o600))
	require.NoError(t, p.Rename(ctx, "/f", "/g"))
	require.NoError(t, p.Remove(ctx, "/g"))

	require.NoError(t, p.Mkdir(ctx, "/tree", 0o755))
	require.NoError(t, p.Create(ctx, "/tree/leaf"))
	require.NoError(t, p.RemoveAll(ctx, "/tree"))
	_, err := p.Stat(ctx, "/tree")
	require.Equal(t, fserrors.KindNotFound, fserrors.KindOf(err))
}

func TestHandleLifecycleAcrossBoundary(t *testing.T) {
	p, g := initializedPlugin(t)
	ctx := context.Background()

	id, err := p.Open(ctx, "/log", filesystem.ReadWrite|filesystem.Create, 0o644)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	n, err := p.HandleWrite(ctx, id, []byte("0123456789"))
	require.NoError(t, err)
	require.Equal(t, 10, n)

	pos, err := p.HandleSeek(ctx, id, 0, 0)
	require.NoError(t, err)
	require.Zero(t, pos)

	data, err := p.HandleRead(ctx, id, 4)
	require.NoError(t, err)
	require.Equal(t, "0123", string(data))

	data, err = p.HandleReadAt(ctx, id, 4, 6)
	require.NoError(t, err)
	require.Equal(t, "6789", string(data))

	_, err = p.HandleWriteAt(ctx, id, []byte("AB"), 4)
	require.NoError(t, err)

	fi, err := p.HandleStat(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(10), fi.Size)

	path, flags, err := p.HandleInfo(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "/log", path)
	require.Equal(t, filesystem.ReadWrite|filesystem.Create, flags)

	require.NoError(t, p.HandleSync(ctx, id))
	require.NoError(t, p.HandleClose(ctx, id))

	err = p.HandleClose(ctx, id)
	require.Equal(t, fserrors.KindNotFound, fserrors.KindOf(err))

	require.Zero(t, g.alloc.live)
}

func TestLargePayloadFallsBackToMalloc(t *testing.T) {
	p, g := initializedPlugin(t)
	ctx := context.Background()

	// Shrink the scratch buffer so the path alone exhausts it.
	p.bufSize = 8

	payload := bytes36(512)
	n, err := p.Write(ctx, "/big", payload, 0, filesystem.WriteCreate)
	require.NoError(t, err)
	require.Equal(t, int64(512), n)

	data, err := p.Read(ctx, "/big", 0, -1)
	require.NoError(t, err)
	require.Equal(t, payload, data)

	// Reads larger than the scratch buffer allocate a guest destination.
	id, err := p.Open(ctx, "/big", filesystem.ReadOnly, 0)
	require.NoError(t, err)
	data, err = p.HandleRead(ctx, id, 512)
	require.NoError(t, err)
	require.Equal(t, payload, data)
	require.NoError(t, p.HandleClose(ctx, id))

	require.Zero(t, g.alloc.live)
}

func bytes36(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte('a' + i%26)
	}
	return out
}

func TestValidateErrorComesBack(t *testing.T) {
	p, _ := newTestPlugin(t)
	ctx := context.Background()

	// memfs accepts anything; feed the dispatcher malformed JSON through
	// the raw entry point instead.
	f := p.frame()
	defer f.close()
	ptr, length, err := f.bytes([]byte(`{broken`))
	require.NoError(t, err)
	res, err := p.call(ctx, fsplugin.ExportPluginValidate, uint64(ptr), uint64(length))
	require.NoError(t, err)
	err = p.takeError(uint32(res))
	require.Equal(t, fserrors.KindInvalidInput, fserrors.KindOf(err))
}
