package boundary

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	fserrors "github.com/wippyai/fsplugin/errors"
)

func TestPackUnpack(t *testing.T) {
	word := Pack(0xDEADBEEF, 0x00C0FFEE)
	require.Equal(t, uint64(0xDEADBEEF00C0FFEE), word)

	hi, lo := Unpack(word)
	require.Equal(t, uint32(0xDEADBEEF), hi)
	require.Equal(t, uint32(0x00C0FFEE), lo)

	hi, lo = Unpack(0)
	require.Zero(t, hi)
	require.Zero(t, lo)
}

func TestMallocFree(t *testing.T) {
	before := PinnedCount()

	ptr := Malloc(32)
	require.NotZero(t, ptr)
	require.Equal(t, before+1, PinnedCount())
	require.Len(t, pinnedBytes(ptr), 32)

	Free(ptr, 32)
	require.Equal(t, before, PinnedCount())
	require.Nil(t, pinnedBytes(ptr))

	// Freeing again is harmless.
	Free(ptr, 32)
	require.Equal(t, before, PinnedCount())

	require.Zero(t, Malloc(0))
}

func TestGoString(t *testing.T) {
	raw := []byte("hello\x00trailing garbage")
	s, err := GoString(unsafe.Pointer(&raw[0]))
	require.NoError(t, err)
	require.Equal(t, "hello", s)

	empty := []byte{0}
	s, err = GoString(unsafe.Pointer(&empty[0]))
	require.NoError(t, err)
	require.Equal(t, "", s)

	_, err = GoString(nil)
	require.Equal(t, fserrors.KindInvalidInput, fserrors.KindOf(err))

	bad := []byte{0xFF, 0xFE, 0}
	_, err = GoString(unsafe.Pointer(&bad[0]))
	require.Equal(t, fserrors.KindInvalidInput, fserrors.KindOf(err))
}

func TestGoBytesCopies(t *testing.T) {
	src := []byte("abcdef")
	got := GoBytes(unsafe.Pointer(&src[0]), 4)
	require.Equal(t, "abcd", string(got))

	src[0] = 'X'
	require.Equal(t, "abcd", string(got))

	require.Empty(t, GoBytes(nil, 10))
	require.Empty(t, GoBytes(unsafe.Pointer(&src[0]), 0))
}

func TestCStringRoundTrip(t *testing.T) {
	ptr := CString("handle_42")
	defer Free(ptr, 0)

	s, err := GoString(unsafe.Pointer(ptr))
	require.NoError(t, err)
	require.Equal(t, "handle_42", s)
}

func TestOwnedTransfer(t *testing.T) {
	o := NewOwned([]byte("payload"))
	ptr, size := o.IntoRaw()
	require.NotZero(t, ptr)
	require.Equal(t, uint32(7), size)
	require.Equal(t, "payload", string(pinnedBytes(ptr)))

	require.Panics(t, func() { o.IntoRaw() })

	// Release after transfer is a no-op; the receiver frees it.
	o.Release()
	require.Equal(t, "payload", string(pinnedBytes(ptr)))
	Free(ptr, size)
}

func TestOwnedEmptyStillAllocated(t *testing.T) {
	o := NewOwned(nil)
	ptr, size := o.IntoRaw()
	require.NotZero(t, ptr)
	require.Zero(t, size)
	Free(ptr, size)
}

func TestOwnedRelease(t *testing.T) {
	before := PinnedCount()
	o := NewOwnedString("ephemeral")
	require.Equal(t, before+1, PinnedCount())
	o.Release()
	require.Equal(t, before, PinnedCount())
}

func TestScratchBuffers(t *testing.T) {
	require.NotZero(t, InputBufferPtr())
	require.NotZero(t, OutputBufferPtr())
	require.NotEqual(t, InputBufferPtr(), OutputBufferPtr())

	n := WriteOutput([]byte("result"))
	require.Equal(t, uint32(6), n)

	copy(inputBuffer[:], "query")
	require.Equal(t, "query", string(InputBytes(5)))
}
