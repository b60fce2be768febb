//go:build wasm

package guest

import (
	"unsafe"

	"github.com/wippyai/fsplugin"
	"github.com/wippyai/fsplugin/boundary"
	"github.com/wippyai/fsplugin/filesystem"
)

// Export shims. Each unmarshals raw 32-bit arguments, calls the typed
// dispatcher method, and packs the result word for its channel. All
// returned pointers are owned by the host until it calls free.

// errWord renders an error as a bare owned message pointer, 0 on nil.
func errWord(err error) uint32 {
	if err != nil {
		return uint32(boundary.CString(err.Error()))
	}
	return 0
}

// packPrimary builds a (resultPtr, errPtr) word from a string result.
func packPrimary(s string, err error) uint64 {
	if err != nil {
		return boundary.PackError(err)
	}
	return boundary.PackCString(s)
}

// packJSON builds a (resultPtr, errPtr) word from an encoded payload.
func packJSON(data []byte, err error) uint64 {
	if err != nil {
		return boundary.PackError(err)
	}
	return boundary.PackCString(string(data))
}

// packCount builds a (count, errPtr) word.
func packCount(n int64, err error) uint64 {
	if err != nil {
		return boundary.PackError(err)
	}
	return boundary.PackCount(uint32(n))
}

// argString reads a null-terminated argument; the host keeps ownership.
func argString(ptr uint32) (string, error) {
	return boundary.GoString(boundary.AtAddr(ptr))
}

// argBuf aliases a host-provided buffer in place. Valid only for the
// duration of the call.
func argBuf(ptr, length uint32) []byte {
	if ptr == 0 || length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(boundary.AtAddr(ptr)), length)
}

//go:wasmexport plugin_new
func pluginNew() uint32 {
	if Registered() {
		return 1
	}
	return 0
}

//go:wasmexport plugin_name
func pluginName() uint32 {
	d, err := dispatcher()
	if err != nil {
		return 0
	}
	return uint32(boundary.CString(d.Name()))
}

//go:wasmexport plugin_get_readme
func pluginGetReadme() uint32 {
	d, err := dispatcher()
	if err != nil {
		return 0
	}
	return uint32(boundary.CString(d.Readme()))
}

//go:wasmexport plugin_get_config_params
func pluginGetConfigParams() uint64 {
	d, err := dispatcher()
	if err != nil {
		return boundary.PackError(err)
	}
	return packJSON(d.ConfigParams())
}

//go:wasmexport plugin_validate
func pluginValidate(cfgPtr, cfgLen uint32) uint32 {
	d, err := dispatcher()
	if err != nil {
		return errWord(err)
	}
	return errWord(d.Validate(boundary.GoBytes(boundary.AtAddr(cfgPtr), cfgLen)))
}

//go:wasmexport plugin_initialize
func pluginInitialize(cfgPtr, cfgLen uint32) uint32 {
	d, err := dispatcher()
	if err != nil {
		return errWord(err)
	}
	return errWord(d.Initialize(boundary.GoBytes(boundary.AtAddr(cfgPtr), cfgLen)))
}

//go:wasmexport plugin_shutdown
func pluginShutdown() uint32 {
	d, err := dispatcher()
	if err != nil {
		return errWord(err)
	}
	return errWord(d.Shutdown())
}

//go:wasmexport fs_read
func fsRead(pathPtr uint32, offset, size int64) uint64 {
	d, err := dispatcher()
	if err != nil {
		return 0
	}
	path, err := argString(pathPtr)
	if err != nil {
		return 0
	}
	data, err := d.Read(path, offset, size)
	if err != nil {
		return 0
	}
	return boundary.PackBytes(data)
}

//go:wasmexport fs_write
func fsWrite(pathPtr, dataPtr, dataLen uint32, offset int64, flags uint32) uint64 {
	d, err := dispatcher()
	if err != nil {
		return boundary.PackError(err)
	}
	path, err := argString(pathPtr)
	if err != nil {
		return boundary.PackError(err)
	}
	data := boundary.GoBytes(boundary.AtAddr(dataPtr), dataLen)
	n, err := d.Write(path, data, offset, filesystem.WriteFlag(flags))
	return packCount(n, err)
}

//go:wasmexport fs_create
func fsCreate(pathPtr uint32) uint32 {
	d, err := dispatcher()
	if err != nil {
		return errWord(err)
	}
	path, err := argString(pathPtr)
	if err != nil {
		return errWord(err)
	}
	return errWord(d.Create(path))
}

//go:wasmexport fs_mkdir
func fsMkdir(pathPtr, mode uint32) uint32 {
	d, err := dispatcher()
	if err != nil {
		return errWord(err)
	}
	path, err := argString(pathPtr)
	if err != nil {
		return errWord(err)
	}
	return errWord(d.Mkdir(path, mode))
}

//go:wasmexport fs_remove
func fsRemove(pathPtr uint32) uint32 {
	d, err := dispatcher()
	if err != nil {
		return errWord(err)
	}
	path, err := argString(pathPtr)
	if err != nil {
		return errWord(err)
	}
	return errWord(d.Remove(path))
}

//go:wasmexport fs_remove_all
func fsRemoveAll(pathPtr uint32) uint32 {
	d, err := dispatcher()
	if err != nil {
		return errWord(err)
	}
	path, err := argString(pathPtr)
	if err != nil {
		return errWord(err)
	}
	return errWord(d.RemoveAll(path))
}

//go:wasmexport fs_stat
func fsStat(pathPtr uint32) uint64 {
	d, err := dispatcher()
	if err != nil {
		return boundary.PackError(err)
	}
	path, err := argString(pathPtr)
	if err != nil {
		return boundary.PackError(err)
	}
	return packJSON(d.Stat(path))
}

//go:wasmexport fs_readdir
func fsReaddir(pathPtr uint32) uint64 {
	d, err := dispatcher()
	if err != nil {
		return boundary.PackError(err)
	}
	path, err := argString(pathPtr)
	if err != nil {
		return boundary.PackError(err)
	}
	return packJSON(d.Readdir(path))
}

//go:wasmexport fs_rename
func fsRename(oldPtr, newPtr uint32) uint32 {
	d, err := dispatcher()
	if err != nil {
		return errWord(err)
	}
	oldPath, err := argString(oldPtr)
	if err != nil {
		return errWord(err)
	}
	newPath, err := argString(newPtr)
	if err != nil {
		return errWord(err)
	}
	return errWord(d.Rename(oldPath, newPath))
}

//go:wasmexport fs_chmod
func fsChmod(pathPtr, mode uint32) uint32 {
	d, err := dispatcher()
	if err != nil {
		return errWord(err)
	}
	path, err := argString(pathPtr)
	if err != nil {
		return errWord(err)
	}
	return errWord(d.Chmod(path, mode))
}

//go:wasmexport fs_open
func fsOpen(pathPtr, flags, mode uint32) uint64 {
	d, err := dispatcher()
	if err != nil {
		return boundary.PackError(err)
	}
	path, err := argString(pathPtr)
	if err != nil {
		return boundary.PackError(err)
	}
	id, err := d.Open(path, filesystem.OpenFlag(flags), mode)
	return packPrimary(id, err)
}

//go:wasmexport fs_handle_read
func fsHandleRead(idPtr, bufPtr, bufLen uint32) uint64 {
	d, err := dispatcher()
	if err != nil {
		return boundary.PackError(err)
	}
	id, err := argString(idPtr)
	if err != nil {
		return boundary.PackError(err)
	}
	n, err := d.HandleRead(id, argBuf(bufPtr, bufLen))
	return packCount(int64(n), err)
}

//go:wasmexport fs_handle_read_at
func fsHandleReadAt(idPtr, bufPtr, bufLen uint32, offset int64) uint64 {
	d, err := dispatcher()
	if err != nil {
		return boundary.PackError(err)
	}
	id, err := argString(idPtr)
	if err != nil {
		return boundary.PackError(err)
	}
	n, err := d.HandleReadAt(id, argBuf(bufPtr, bufLen), offset)
	return packCount(int64(n), err)
}

//go:wasmexport fs_handle_write
func fsHandleWrite(idPtr, dataPtr, dataLen uint32) uint64 {
	d, err := dispatcher()
	if err != nil {
		return boundary.PackError(err)
	}
	id, err := argString(idPtr)
	if err != nil {
		return boundary.PackError(err)
	}
	data := boundary.GoBytes(boundary.AtAddr(dataPtr), dataLen)
	n, err := d.HandleWrite(id, data)
	return packCount(int64(n), err)
}

//go:wasmexport fs_handle_write_at
func fsHandleWriteAt(idPtr, dataPtr, dataLen uint32, offset int64) uint64 {
	d, err := dispatcher()
	if err != nil {
		return boundary.PackError(err)
	}
	id, err := argString(idPtr)
	if err != nil {
		return boundary.PackError(err)
	}
	data := boundary.GoBytes(boundary.AtAddr(dataPtr), dataLen)
	n, err := d.HandleWriteAt(id, data, offset)
	return packCount(int64(n), err)
}

//go:wasmexport fs_handle_seek
func fsHandleSeek(idPtr uint32, offset int64, whence uint32) uint64 {
	d, err := dispatcher()
	if err != nil {
		return boundary.PackError(err)
	}
	id, err := argString(idPtr)
	if err != nil {
		return boundary.PackError(err)
	}
	pos, err := d.HandleSeek(id, offset, int(whence))
	return packCount(pos, err)
}

//go:wasmexport fs_handle_sync
func fsHandleSync(idPtr uint32) uint32 {
	d, err := dispatcher()
	if err != nil {
		return errWord(err)
	}
	id, err := argString(idPtr)
	if err != nil {
		return errWord(err)
	}
	return errWord(d.HandleSync(id))
}

//go:wasmexport fs_handle_stat
func fsHandleStat(idPtr uint32) uint64 {
	d, err := dispatcher()
	if err != nil {
		return boundary.PackError(err)
	}
	id, err := argString(idPtr)
	if err != nil {
		return boundary.PackError(err)
	}
	return packJSON(d.HandleStat(id))
}

//go:wasmexport fs_handle_info
func fsHandleInfo(idPtr uint32) uint64 {
	d, err := dispatcher()
	if err != nil {
		return boundary.PackError(err)
	}
	id, err := argString(idPtr)
	if err != nil {
		return boundary.PackError(err)
	}
	return packJSON(d.HandleInfo(id))
}

//go:wasmexport fs_handle_close
func fsHandleClose(idPtr uint32) uint32 {
	d, err := dispatcher()
	if err != nil {
		return errWord(err)
	}
	id, err := argString(idPtr)
	if err != nil {
		return errWord(err)
	}
	return errWord(d.HandleClose(id))
}

//go:wasmexport malloc
func malloc(size uint32) uint32 {
	return uint32(boundary.Malloc(size))
}

//go:wasmexport free
func free(ptr, size uint32) {
	boundary.Free(uintptr(ptr), size)
}

//go:wasmexport get_input_buffer_ptr
func getInputBufferPtr() uint32 {
	return uint32(boundary.InputBufferPtr())
}

//go:wasmexport get_output_buffer_ptr
func getOutputBufferPtr() uint32 {
	return uint32(boundary.OutputBufferPtr())
}

//go:wasmexport get_shared_buffer_size
func getSharedBufferSize() uint32 {
	return fsplugin.SharedBufferSize
}
