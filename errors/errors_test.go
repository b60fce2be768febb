package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessages(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{NotFound(), "file not found"},
		{PermissionDenied(), "permission denied"},
		{AlreadyExists(), "file already exists"},
		{IsDirectory(), "is a directory"},
		{NotDirectory(), "not a directory"},
		{ReadOnly(), "read-only filesystem"},
		{InvalidInput("bad path %q", "x"), `invalid input: bad path "x"`},
		{IO(nil, "short write"), "I/O error: short write"},
		{Other("remote fetch failed"), "remote fetch failed"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.err.Error())
	}
}

func TestFromMessageRoundTrip(t *testing.T) {
	errs := []*Error{
		NotFound(),
		PermissionDenied(),
		AlreadyExists(),
		IsDirectory(),
		NotDirectory(),
		ReadOnly(),
		InvalidInput("negative position"),
		IO(nil, "connection reset"),
		Other("boom"),
	}
	for _, e := range errs {
		got := FromMessage(e.Error())
		require.Equal(t, e.Kind, got.Kind, "message %q", e.Error())
		require.Equal(t, e.Error(), got.Error())
	}
}

func TestIsMatchesOnKind(t *testing.T) {
	err := InvalidInput("whence out of range")
	require.True(t, stderrors.Is(err, InvalidInput("")))
	require.False(t, stderrors.Is(err, NotFound()))

	wrapped := Wrap(KindIO, stderrors.New("eof"), "read chunk")
	require.True(t, stderrors.Is(wrapped, IO(nil, "")))
	require.Equal(t, "eof", stderrors.Unwrap(wrapped).Error())
}

func TestKindOf(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(nil))
	require.Equal(t, KindNotFound, KindOf(NotFound()))
	require.Equal(t, KindOther, KindOf(stderrors.New("plain")))
}
