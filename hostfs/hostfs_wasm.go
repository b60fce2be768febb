//go:build wasm

package hostfs

import (
	"runtime"
	"unsafe"

	"github.com/wippyai/fsplugin/boundary"
	"github.com/wippyai/fsplugin/codec"
	"github.com/wippyai/fsplugin/errors"
	"github.com/wippyai/fsplugin/filesystem"
)

//go:wasmimport env host_fs_read
func hostFSRead(pathPtr, pathLen uint32, offset, size int64) uint64

//go:wasmimport env host_fs_write
func hostFSWrite(pathPtr, pathLen, dataPtr, dataLen uint32, offset int64, flags uint32) uint64

//go:wasmimport env host_fs_stat
func hostFSStat(pathPtr, pathLen uint32) uint64

//go:wasmimport env host_fs_readdir
func hostFSReaddir(pathPtr, pathLen uint32) uint64

//go:wasmimport env host_fs_create
func hostFSCreate(pathPtr, pathLen uint32) uint32

//go:wasmimport env host_fs_mkdir
func hostFSMkdir(pathPtr, pathLen, mode uint32) uint32

//go:wasmimport env host_fs_remove
func hostFSRemove(pathPtr, pathLen uint32) uint32

//go:wasmimport env host_fs_remove_all
func hostFSRemoveAll(pathPtr, pathLen uint32) uint32

//go:wasmimport env host_fs_rename
func hostFSRename(oldPtr, oldLen, newPtr, newLen uint32) uint32

// strArg exposes s to the host for the duration of one call.
func strArg(s string) (uint32, uint32) {
	if len(s) == 0 {
		return 0, 0
	}
	return uint32(uintptr(unsafe.Pointer(unsafe.StringData(s)))), uint32(len(s))
}

func bufArg(b []byte) (uint32, uint32) {
	if len(b) == 0 {
		return 0, 0
	}
	return uint32(uintptr(unsafe.Pointer(&b[0]))), uint32(len(b))
}

// takeErr consumes a host-written error message. The host allocates it
// through the exported malloc, so the message lives in the pin table
// and is freed here after decoding.
func takeErr(ptr uint32) error {
	if ptr == 0 {
		return errors.Other("host call failed")
	}
	msg, err := boundary.GoString(boundary.AtAddr(ptr))
	boundary.Free(uintptr(ptr), 0)
	if err != nil {
		return err
	}
	return errors.FromMessage(msg)
}

func errOnly(ptr uint32) error {
	if ptr == 0 {
		return nil
	}
	return takeErr(ptr)
}

// takeJSON consumes a (resultPtr, errPtr) word whose primary is a
// null-terminated JSON document.
func takeJSON(word uint64) ([]byte, error) {
	hi, lo := boundary.Unpack(word)
	if hi == 0 {
		return nil, takeErr(lo)
	}
	s, err := boundary.GoString(boundary.AtAddr(hi))
	boundary.Free(uintptr(hi), 0)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// Read returns up to size bytes of a host file; size < 0 reads to end.
func Read(path string, offset, size int64) ([]byte, error) {
	pp, pl := strArg(path)
	word := hostFSRead(pp, pl, offset, size)
	runtime.KeepAlive(path)
	if word == 0 {
		return nil, errors.IO(nil, "host read failed")
	}
	ptr, length := boundary.Unpack(word)
	data := boundary.GoBytes(boundary.AtAddr(ptr), length)
	boundary.Free(uintptr(ptr), length)
	return data, nil
}

// Write writes data to a host file at offset; offset < 0 appends.
func Write(path string, data []byte, offset int64, flags filesystem.WriteFlag) (int64, error) {
	pp, pl := strArg(path)
	dp, dl := bufArg(data)
	word := hostFSWrite(pp, pl, dp, dl, offset, uint32(flags))
	runtime.KeepAlive(path)
	runtime.KeepAlive(data)
	n, errPtr := boundary.Unpack(word)
	if errPtr != 0 {
		return 0, takeErr(errPtr)
	}
	return int64(n), nil
}

// Stat returns file information for a host path.
func Stat(path string) (filesystem.FileInfo, error) {
	pp, pl := strArg(path)
	word := hostFSStat(pp, pl)
	runtime.KeepAlive(path)
	data, err := takeJSON(word)
	if err != nil {
		return filesystem.FileInfo{}, err
	}
	return codec.DecodeFileInfo(data)
}

// Readdir lists a host directory.
func Readdir(path string) ([]filesystem.FileInfo, error) {
	pp, pl := strArg(path)
	word := hostFSReaddir(pp, pl)
	runtime.KeepAlive(path)
	data, err := takeJSON(word)
	if err != nil {
		return nil, err
	}
	return codec.DecodeFileInfos(data)
}

// Create creates an empty host file.
func Create(path string) error {
	pp, pl := strArg(path)
	err := errOnly(hostFSCreate(pp, pl))
	runtime.KeepAlive(path)
	return err
}

// Mkdir creates a host directory.
func Mkdir(path string, mode uint32) error {
	pp, pl := strArg(path)
	err := errOnly(hostFSMkdir(pp, pl, mode))
	runtime.KeepAlive(path)
	return err
}

// Remove removes a host file or empty directory.
func Remove(path string) error {
	pp, pl := strArg(path)
	err := errOnly(hostFSRemove(pp, pl))
	runtime.KeepAlive(path)
	return err
}

// RemoveAll removes a host path and any children.
func RemoveAll(path string) error {
	pp, pl := strArg(path)
	err := errOnly(hostFSRemoveAll(pp, pl))
	runtime.KeepAlive(path)
	return err
}

// Rename moves a host file or directory.
func Rename(oldPath, newPath string) error {
	op, ol := strArg(oldPath)
	np, nl := strArg(newPath)
	err := errOnly(hostFSRename(op, ol, np, nl))
	runtime.KeepAlive(oldPath)
	runtime.KeepAlive(newPath)
	return err
}
