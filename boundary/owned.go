package boundary

// Owned is a pinned allocation whose ownership is about to transfer
// across the boundary. It surrenders its pointer exactly once: after
// IntoRaw the receiver is responsible for freeing it, and the Owned
// value is spent.
type Owned struct {
	ptr  uintptr
	size uint32
	done bool
}

// NewOwned copies data into a fresh pinned allocation. Empty payloads
// still get a one-byte allocation so the address is never zero.
func NewOwned(data []byte) *Owned {
	size := uint32(len(data))
	alloc := size
	if alloc == 0 {
		alloc = 1
	}
	ptr := Malloc(alloc)
	copy(pinnedBytes(ptr), data)
	return &Owned{ptr: ptr, size: size}
}

// NewOwnedString copies s into a pinned null-terminated allocation.
func NewOwnedString(s string) *Owned {
	return &Owned{ptr: CString(s), size: uint32(len(s))}
}

// IntoRaw surrenders the allocation and returns its address and payload
// length. Calling it twice panics: a transferred buffer has one owner.
func (o *Owned) IntoRaw() (uintptr, uint32) {
	if o.done {
		panic("boundary: ownership already transferred")
	}
	o.done = true
	return o.ptr, o.size
}

// Release frees the allocation without transferring it. Safe to call
// after IntoRaw; ownership rules make it a no-op then.
func (o *Owned) Release() {
	if o.done {
		return
	}
	o.done = true
	Free(o.ptr, o.size)
}
