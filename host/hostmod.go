package host

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/fsplugin"
	"github.com/wippyai/fsplugin/boundary"
	"github.com/wippyai/fsplugin/codec"
	"github.com/wippyai/fsplugin/errors"
	"github.com/wippyai/fsplugin/filesystem"
	"github.com/wippyai/fsplugin/hosthttp"
)

// hostEnv provides the env import module: host filesystem passthrough
// scoped to a root directory, and outbound HTTP. Both are disabled
// unless the plugin was loaded with the matching option; disabled calls
// fail permission-denied rather than trapping.
type hostEnv struct {
	client *http.Client
	log    *zap.Logger
	root   string
}

func (h *hostEnv) instantiate(ctx context.Context, r wazero.Runtime) error {
	i32 := api.ValueTypeI32
	i64 := api.ValueTypeI64

	b := r.NewHostModuleBuilder(fsplugin.HostModule)
	fn := func(name string, f api.GoModuleFunc, params, results []api.ValueType) {
		b.NewFunctionBuilder().WithGoModuleFunction(f, params, results).Export(name)
	}
	fn(fsplugin.HostFSRead, h.fsRead, []api.ValueType{i32, i32, i64, i64}, []api.ValueType{i64})
	fn(fsplugin.HostFSWrite, h.fsWrite, []api.ValueType{i32, i32, i32, i32, i64, i32}, []api.ValueType{i64})
	fn(fsplugin.HostFSStat, h.fsStat, []api.ValueType{i32, i32}, []api.ValueType{i64})
	fn(fsplugin.HostFSReaddir, h.fsReaddir, []api.ValueType{i32, i32}, []api.ValueType{i64})
	fn(fsplugin.HostFSCreate, h.fsCreate, []api.ValueType{i32, i32}, []api.ValueType{i32})
	fn(fsplugin.HostFSMkdir, h.fsMkdir, []api.ValueType{i32, i32, i32}, []api.ValueType{i32})
	fn(fsplugin.HostFSRemove, h.fsRemove, []api.ValueType{i32, i32}, []api.ValueType{i32})
	fn(fsplugin.HostFSRemoveAll, h.fsRemoveAll, []api.ValueType{i32, i32}, []api.ValueType{i32})
	fn(fsplugin.HostFSRename, h.fsRename, []api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32})
	fn(fsplugin.HostHTTPRequest, h.httpRequest, []api.ValueType{i32, i32}, []api.ValueType{i64})

	if _, err := b.Instantiate(ctx); err != nil {
		return errors.IO(err, "instantiate env module")
	}
	return nil
}

// resolve scopes a guest path to the configured root. The path is
// cleaned as absolute first, so no input can climb out of the root.
func (h *hostEnv) resolve(p string) (string, error) {
	if h.root == "" {
		return "", errors.PermissionDenied()
	}
	clean := filepath.Clean("/" + filepath.FromSlash(p))
	return filepath.Join(h.root, clean), nil
}

func osErr(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, fs.ErrNotExist):
		return errors.NotFound()
	case stderrors.Is(err, fs.ErrPermission):
		return errors.PermissionDenied()
	case stderrors.Is(err, fs.ErrExist):
		return errors.AlreadyExists()
	default:
		return errors.IO(err, "%v", err)
	}
}

func guestString(mod api.Module, ptr, length uint32) (string, bool) {
	if length == 0 {
		return "", true
	}
	raw, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return "", false
	}
	return string(raw), true
}

// guestAlloc writes data into fresh guest memory via the exported
// malloc. Failure here means the guest heap itself is broken; the panic
// surfaces as a call error on the host side.
func guestAlloc(ctx context.Context, mod api.Module, data []byte, terminate bool) uint32 {
	size := uint32(len(data))
	if terminate {
		size++
	}
	if size == 0 {
		size = 1
	}
	res, err := mod.ExportedFunction(fsplugin.ExportMalloc).Call(ctx, uint64(size))
	if err != nil || len(res) == 0 || res[0] == 0 {
		panic(errors.IO(err, "guest malloc of %d bytes failed", size))
	}
	ptr := uint32(res[0])
	buf := make([]byte, size)
	copy(buf, data)
	if !mod.Memory().Write(ptr, buf) {
		panic(errors.IO(nil, "guest memory write at %d failed", ptr))
	}
	return ptr
}

func errPtrFor(ctx context.Context, mod api.Module, err error) uint32 {
	if err == nil {
		return 0
	}
	return guestAlloc(ctx, mod, []byte(err.Error()), true)
}

func errWordFor(ctx context.Context, mod api.Module, err error) uint64 {
	return boundary.Pack(0, errPtrFor(ctx, mod, err))
}

func (h *hostEnv) fsRead(ctx context.Context, mod api.Module, stack []uint64) {
	path, ok := guestString(mod, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	offset, size := int64(stack[2]), int64(stack[3])
	if !ok {
		stack[0] = 0
		return
	}
	resolved, err := h.resolve(path)
	if err != nil {
		stack[0] = 0
		return
	}
	data, err := readHostFile(resolved, offset, size)
	if err != nil {
		h.log.Debug("host read failed", zap.String("path", path), zap.Error(err))
		stack[0] = 0
		return
	}
	ptr := guestAlloc(ctx, mod, data, false)
	stack[0] = boundary.Pack(ptr, uint32(len(data)))
}

func readHostFile(path string, offset, size int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, osErr(err)
	}
	defer f.Close()

	if size < 0 {
		if offset > 0 {
			if _, err := f.Seek(offset, io.SeekStart); err != nil {
				return nil, osErr(err)
			}
		}
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, osErr(err)
		}
		return data, nil
	}
	buf := make([]byte, size)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, osErr(err)
	}
	return buf[:n], nil
}

func (h *hostEnv) fsWrite(ctx context.Context, mod api.Module, stack []uint64) {
	path, pok := guestString(mod, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	dataPtr, dataLen := api.DecodeU32(stack[2]), api.DecodeU32(stack[3])
	offset := int64(stack[4])
	flags := filesystem.WriteFlag(api.DecodeU32(stack[5]))
	if !pok {
		stack[0] = errWordFor(ctx, mod, errors.InvalidInput("bad path argument"))
		return
	}
	var data []byte
	if dataLen > 0 {
		raw, ok := mod.Memory().Read(dataPtr, dataLen)
		if !ok {
			stack[0] = errWordFor(ctx, mod, errors.InvalidInput("bad data argument"))
			return
		}
		data = make([]byte, dataLen)
		copy(data, raw)
	}
	resolved, err := h.resolve(path)
	if err != nil {
		stack[0] = errWordFor(ctx, mod, err)
		return
	}
	n, err := writeHostFile(resolved, data, offset, flags)
	if err != nil {
		stack[0] = errWordFor(ctx, mod, err)
		return
	}
	stack[0] = boundary.Pack(uint32(n), 0)
}

func writeHostFile(path string, data []byte, offset int64, flags filesystem.WriteFlag) (int64, error) {
	oflags := os.O_WRONLY
	appendMode := offset < 0 || flags.Has(filesystem.WriteAppend)
	if appendMode {
		oflags |= os.O_APPEND
	}
	if flags.Has(filesystem.WriteCreate) {
		oflags |= os.O_CREATE
	}
	if flags.Has(filesystem.WriteExcl) {
		oflags |= os.O_EXCL
	}
	if flags.Has(filesystem.WriteTruncate) {
		oflags |= os.O_TRUNC
	}
	if flags.Has(filesystem.WriteSync) {
		oflags |= os.O_SYNC
	}
	f, err := os.OpenFile(path, oflags, 0o644)
	if err != nil {
		return 0, osErr(err)
	}
	defer f.Close()

	var n int
	if appendMode {
		n, err = f.Write(data)
	} else {
		n, err = f.WriteAt(data, offset)
	}
	if err != nil {
		return 0, osErr(err)
	}
	return int64(n), nil
}

func infoFromOS(name string, fi fs.FileInfo) filesystem.FileInfo {
	return filesystem.FileInfo{
		Name:    name,
		Size:    fi.Size(),
		Mode:    uint32(fi.Mode().Perm()),
		ModTime: fi.ModTime(),
		IsDir:   fi.IsDir(),
	}
}

func (h *hostEnv) fsStat(ctx context.Context, mod api.Module, stack []uint64) {
	path, ok := guestString(mod, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if !ok {
		stack[0] = errWordFor(ctx, mod, errors.InvalidInput("bad path argument"))
		return
	}
	resolved, err := h.resolve(path)
	if err != nil {
		stack[0] = errWordFor(ctx, mod, err)
		return
	}
	fi, err := os.Stat(resolved)
	if err != nil {
		stack[0] = errWordFor(ctx, mod, osErr(err))
		return
	}
	raw, err := codec.EncodeFileInfo(infoFromOS(filepath.Base(resolved), fi))
	if err != nil {
		stack[0] = errWordFor(ctx, mod, err)
		return
	}
	stack[0] = boundary.Pack(guestAlloc(ctx, mod, raw, true), 0)
}

func (h *hostEnv) fsReaddir(ctx context.Context, mod api.Module, stack []uint64) {
	path, ok := guestString(mod, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if !ok {
		stack[0] = errWordFor(ctx, mod, errors.InvalidInput("bad path argument"))
		return
	}
	resolved, err := h.resolve(path)
	if err != nil {
		stack[0] = errWordFor(ctx, mod, err)
		return
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		stack[0] = errWordFor(ctx, mod, osErr(err))
		return
	}
	infos := make([]filesystem.FileInfo, 0, len(entries))
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, infoFromOS(e.Name(), fi))
	}
	raw, err := codec.EncodeFileInfos(infos)
	if err != nil {
		stack[0] = errWordFor(ctx, mod, err)
		return
	}
	stack[0] = boundary.Pack(guestAlloc(ctx, mod, raw, true), 0)
}

// errOnlyOp adapts a path-taking operation to the bare-error-pointer
// channel.
func (h *hostEnv) errOnlyOp(ctx context.Context, mod api.Module, stack []uint64, op func(string) error) {
	path, ok := guestString(mod, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if !ok {
		stack[0] = uint64(errPtrFor(ctx, mod, errors.InvalidInput("bad path argument")))
		return
	}
	resolved, err := h.resolve(path)
	if err != nil {
		stack[0] = uint64(errPtrFor(ctx, mod, err))
		return
	}
	stack[0] = uint64(errPtrFor(ctx, mod, op(resolved)))
}

func (h *hostEnv) fsCreate(ctx context.Context, mod api.Module, stack []uint64) {
	h.errOnlyOp(ctx, mod, stack, func(p string) error {
		f, err := os.Create(p)
		if err != nil {
			return osErr(err)
		}
		return osErr(f.Close())
	})
}

func (h *hostEnv) fsMkdir(ctx context.Context, mod api.Module, stack []uint64) {
	mode := api.DecodeU32(stack[2])
	h.errOnlyOp(ctx, mod, stack, func(p string) error {
		return osErr(os.Mkdir(p, fs.FileMode(mode)))
	})
}

func (h *hostEnv) fsRemove(ctx context.Context, mod api.Module, stack []uint64) {
	h.errOnlyOp(ctx, mod, stack, func(p string) error {
		return osErr(os.Remove(p))
	})
}

func (h *hostEnv) fsRemoveAll(ctx context.Context, mod api.Module, stack []uint64) {
	h.errOnlyOp(ctx, mod, stack, func(p string) error {
		return osErr(os.RemoveAll(p))
	})
}

func (h *hostEnv) fsRename(ctx context.Context, mod api.Module, stack []uint64) {
	oldPath, ook := guestString(mod, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	newPath, nok := guestString(mod, api.DecodeU32(stack[2]), api.DecodeU32(stack[3]))
	if !ook || !nok {
		stack[0] = uint64(errPtrFor(ctx, mod, errors.InvalidInput("bad path argument")))
		return
	}
	oldResolved, err := h.resolve(oldPath)
	if err != nil {
		stack[0] = uint64(errPtrFor(ctx, mod, err))
		return
	}
	newResolved, err := h.resolve(newPath)
	if err != nil {
		stack[0] = uint64(errPtrFor(ctx, mod, err))
		return
	}
	stack[0] = uint64(errPtrFor(ctx, mod, osErr(os.Rename(oldResolved, newResolved))))
}

func (h *hostEnv) httpRequest(ctx context.Context, mod api.Module, stack []uint64) {
	raw, ok := guestString(mod, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if !ok {
		stack[0] = errWordFor(ctx, mod, errors.InvalidInput("bad request argument"))
		return
	}
	if h.client == nil {
		stack[0] = errWordFor(ctx, mod, errors.PermissionDenied())
		return
	}
	req, err := hosthttp.DecodeRequest([]byte(raw))
	if err != nil {
		stack[0] = errWordFor(ctx, mod, err)
		return
	}
	resp, err := h.doRequest(ctx, req)
	if err != nil {
		stack[0] = errWordFor(ctx, mod, err)
		return
	}
	payload, err := hosthttp.EncodeResponse(resp)
	if err != nil {
		stack[0] = errWordFor(ctx, mod, err)
		return
	}
	stack[0] = boundary.Pack(guestAlloc(ctx, mod, payload, true), 0)
}

func (h *hostEnv) doRequest(ctx context.Context, req hosthttp.Request) (hosthttp.Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return hosthttp.Response{}, errors.InvalidInput("bad request: %v", err)
	}
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}
	hresp, err := h.client.Do(hreq)
	if err != nil {
		return hosthttp.Response{}, errors.IO(err, "request failed")
	}
	defer hresp.Body.Close()

	payload, err := io.ReadAll(hresp.Body)
	if err != nil {
		return hosthttp.Response{}, errors.IO(err, "read response body")
	}
	headers := make(map[string]string, len(hresp.Header))
	for k := range hresp.Header {
		headers[k] = hresp.Header.Get(k)
	}
	return hosthttp.Response{Status: hresp.StatusCode, Headers: headers, Body: payload}, nil
}
