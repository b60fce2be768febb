package boundary

import (
	"unsafe"

	"github.com/wippyai/fsplugin"
)

// Fixed scratch buffers at stable addresses. The host discovers them
// once through the buffer-pointer exports and reuses them for small
// payloads instead of paying a malloc round trip per call.
var (
	inputBuffer  [fsplugin.SharedBufferSize]byte
	outputBuffer [fsplugin.SharedBufferSize]byte
)

// InputBufferPtr returns the address of the shared input buffer.
func InputBufferPtr() uintptr {
	return uintptr(unsafe.Pointer(&inputBuffer[0]))
}

// OutputBufferPtr returns the address of the shared output buffer.
func OutputBufferPtr() uintptr {
	return uintptr(unsafe.Pointer(&outputBuffer[0]))
}

// InputBytes returns a copy of the first length bytes of the input
// buffer, clamped to its capacity.
func InputBytes(length uint32) []byte {
	if length > fsplugin.SharedBufferSize {
		length = fsplugin.SharedBufferSize
	}
	out := make([]byte, length)
	copy(out, inputBuffer[:length])
	return out
}

// WriteOutput copies data into the output buffer and reports how many
// bytes fit.
func WriteOutput(data []byte) uint32 {
	return uint32(copy(outputBuffer[:], data))
}
