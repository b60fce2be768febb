package boundary

import (
	"sync"
	"unsafe"
)

// pinned keeps every allocation handed across the boundary reachable
// until the owner returns it through Free. Without this the collector
// would reclaim buffers the host still holds raw pointers into.
var (
	pinMu  sync.Mutex
	pinned = make(map[uintptr][]byte)
)

// Malloc allocates size bytes of zeroed memory pinned against
// collection. Returns 0 when size is 0.
func Malloc(size uint32) uintptr {
	if size == 0 {
		return 0
	}
	buf := make([]byte, size)
	ptr := uintptr(unsafe.Pointer(&buf[0]))
	pinMu.Lock()
	pinned[ptr] = buf
	pinMu.Unlock()
	return ptr
}

// Free releases a pinned allocation. Unknown pointers are ignored, so
// a double free cannot corrupt the table. The size argument mirrors the
// boundary signature; the table remembers the real length.
func Free(ptr uintptr, size uint32) {
	_ = size
	pinMu.Lock()
	delete(pinned, ptr)
	pinMu.Unlock()
}

// pinnedBytes returns the live slice behind a pinned pointer, or nil if
// the pointer does not belong to the table.
func pinnedBytes(ptr uintptr) []byte {
	pinMu.Lock()
	defer pinMu.Unlock()
	return pinned[ptr]
}

// PinnedCount reports live allocations, for leak checks in tests.
func PinnedCount() int {
	pinMu.Lock()
	defer pinMu.Unlock()
	return len(pinned)
}
