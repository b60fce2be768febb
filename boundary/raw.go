package boundary

import "unsafe"

// Word-building helpers for the boundary's three result channels. They
// narrow addresses to the wire's 32 bits, which is only meaningful on
// wasm32 where the linear address space fits.

// AddrOf narrows a pointer to a linear-memory address.
func AddrOf(p unsafe.Pointer) uint32 {
	return uint32(uintptr(p))
}

// AtAddr widens a linear-memory address back to a pointer.
func AtAddr(addr uint32) unsafe.Pointer {
	return unsafe.Pointer(uintptr(addr))
}

// PackBytes transfers data to the caller as a packed (ptr, length)
// word. Empty payloads still carry a live allocation, keeping the zero
// word reserved for failure.
func PackBytes(data []byte) uint64 {
	ptr, size := NewOwned(data).IntoRaw()
	return Pack(uint32(ptr), size)
}

// PackCString transfers s as a null-terminated primary result with an
// empty error half.
func PackCString(s string) uint64 {
	return Pack(uint32(CString(s)), 0)
}

// PackError carries err's message in the error half of a result word.
// The primary half is zero.
func PackError(err error) uint64 {
	return Pack(0, uint32(CString(err.Error())))
}

// PackCount carries a bare count with an empty error half.
func PackCount(n uint32) uint64 {
	return Pack(n, 0)
}
