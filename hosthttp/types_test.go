package hosthttp

import (
	"testing"

	"github.com/stretchr/testify/require"

	fserrors "github.com/wippyai/fsplugin/errors"
)

func TestRequestRoundTrip(t *testing.T) {
	req := Request{
		Method:  "POST",
		URL:     "https://api.example.com/items",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(`{"id":1}`),
	}
	data, err := EncodeRequest(req)
	require.NoError(t, err)

	got, err := DecodeRequest(data)
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestResponseRoundTrip(t *testing.T) {
	resp := Response{Status: 200, Body: []byte("ok")}
	data, err := EncodeResponse(resp)
	require.NoError(t, err)

	got, err := DecodeResponse(data)
	require.NoError(t, err)
	require.Equal(t, resp, got)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := DecodeRequest([]byte(`{`))
	require.Equal(t, fserrors.KindInvalidInput, fserrors.KindOf(err))
	_, err = DecodeResponse([]byte(`[]`))
	require.Equal(t, fserrors.KindInvalidInput, fserrors.KindOf(err))
}
