package boundary

import (
	"unicode/utf8"
	"unsafe"

	"github.com/wippyai/fsplugin/errors"
)

// GoString copies a null-terminated string out of raw memory. Nil and
// non-UTF-8 input are rejected rather than trusted.
func GoString(ptr unsafe.Pointer) (string, error) {
	if ptr == nil {
		return "", errors.InvalidInput("nil string pointer")
	}
	n := 0
	for *(*byte)(unsafe.Add(ptr, n)) != 0 {
		n++
	}
	b := unsafe.Slice((*byte)(ptr), n)
	if !utf8.Valid(b) {
		return "", errors.InvalidInput("string argument is not valid UTF-8")
	}
	return string(b), nil
}

// GoBytes copies length bytes starting at ptr into Go-managed memory.
// A nil pointer or zero length yields an empty, non-nil slice: the
// boundary distinguishes "no buffer" errors before this point.
func GoBytes(ptr unsafe.Pointer, length uint32) []byte {
	if ptr == nil || length == 0 {
		return []byte{}
	}
	out := make([]byte, length)
	copy(out, unsafe.Slice((*byte)(ptr), length))
	return out
}

// CString copies s into a pinned null-terminated allocation and returns
// its address. The caller owns the allocation until it is freed.
func CString(s string) uintptr {
	ptr := Malloc(uint32(len(s)) + 1)
	buf := pinnedBytes(ptr)
	copy(buf, s)
	buf[len(s)] = 0
	return ptr
}
