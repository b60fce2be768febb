//go:build wasm

package hosthttp

import (
	"runtime"
	"unsafe"

	"github.com/wippyai/fsplugin/boundary"
	"github.com/wippyai/fsplugin/errors"
)

//go:wasmimport env host_http_request
func hostHTTPRequest(reqPtr, reqLen uint32) uint64

// Do sends req through the host and returns its response. Plugins
// loaded without HTTP support get a permission-denied error.
func Do(req Request) (Response, error) {
	payload, err := EncodeRequest(req)
	if err != nil {
		return Response{}, err
	}
	var ptr, length uint32
	if len(payload) > 0 {
		ptr = uint32(uintptr(unsafe.Pointer(&payload[0])))
		length = uint32(len(payload))
	}
	word := hostHTTPRequest(ptr, length)
	runtime.KeepAlive(payload)

	hi, lo := boundary.Unpack(word)
	if hi == 0 {
		if lo == 0 {
			return Response{}, errors.Other("host call failed")
		}
		msg, gerr := boundary.GoString(boundary.AtAddr(lo))
		boundary.Free(uintptr(lo), 0)
		if gerr != nil {
			return Response{}, gerr
		}
		return Response{}, errors.FromMessage(msg)
	}
	raw, gerr := boundary.GoString(boundary.AtAddr(hi))
	boundary.Free(uintptr(hi), 0)
	if gerr != nil {
		return Response{}, gerr
	}
	return DecodeResponse([]byte(raw))
}
