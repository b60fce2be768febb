//go:build !wasm

package hosthttp

import "github.com/wippyai/fsplugin/errors"

func Do(Request) (Response, error) {
	return Response{}, errors.Other("host HTTP is available only in wasm builds")
}
