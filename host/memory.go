package host

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/fsplugin"
	"github.com/wippyai/fsplugin/errors"
)

// wazeroMemory adapts wazero linear memory to fsplugin.Memory. Reads
// copy: wazero hands out views into the live memory, which the guest
// may grow and relocate on the next call.
type wazeroMemory struct {
	mem api.Memory
}

func (m wazeroMemory) Read(offset, length uint32) ([]byte, error) {
	view, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.InvalidInput("memory read out of range: %d+%d", offset, length)
	}
	out := make([]byte, length)
	copy(out, view)
	return out, nil
}

func (m wazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.InvalidInput("memory write out of range: %d+%d", offset, len(data))
	}
	return nil
}

func (m wazeroMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.InvalidInput("memory read out of range: %d", offset)
	}
	return v, nil
}

func (m wazeroMemory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.InvalidInput("memory read out of range: %d", offset)
	}
	return v, nil
}

func (m wazeroMemory) WriteU32(offset, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.InvalidInput("memory write out of range: %d", offset)
	}
	return nil
}

func (m wazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return errors.InvalidInput("memory write out of range: %d", offset)
	}
	return nil
}

// guestAllocator drives the plugin's exported malloc/free pair.
type guestAllocator struct {
	ctx    context.Context
	malloc api.Function
	free   api.Function
}

func (a guestAllocator) Alloc(size uint32) (uint32, error) {
	res, err := a.malloc.Call(a.ctx, uint64(size))
	if err != nil {
		return 0, errors.IO(err, "guest malloc failed")
	}
	ptr := uint32(res[0])
	if ptr == 0 && size > 0 {
		return 0, errors.IO(nil, "guest malloc returned null for %d bytes", size)
	}
	return ptr, nil
}

func (a guestAllocator) Free(ptr, size uint32) error {
	if ptr == 0 {
		return nil
	}
	if _, err := a.free.Call(a.ctx, uint64(ptr), uint64(size)); err != nil {
		return errors.IO(err, "guest free failed")
	}
	return nil
}

var (
	_ fsplugin.Memory    = wazeroMemory{}
	_ fsplugin.Allocator = guestAllocator{}
)
