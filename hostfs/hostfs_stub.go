//go:build !wasm

package hostfs

import (
	"github.com/wippyai/fsplugin/errors"
	"github.com/wippyai/fsplugin/filesystem"
)

func errNotWasm() error {
	return errors.Other("host filesystem passthrough is available only in wasm builds")
}

func Read(string, int64, int64) ([]byte, error) {
	return nil, errNotWasm()
}

func Write(string, []byte, int64, filesystem.WriteFlag) (int64, error) {
	return 0, errNotWasm()
}

func Stat(string) (filesystem.FileInfo, error) {
	return filesystem.FileInfo{}, errNotWasm()
}

func Readdir(string) ([]filesystem.FileInfo, error) {
	return nil, errNotWasm()
}

func Create(string) error {
	return errNotWasm()
}

func Mkdir(string, uint32) error {
	return errNotWasm()
}

func Remove(string) error {
	return errNotWasm()
}

func RemoveAll(string) error {
	return errNotWasm()
}

func Rename(string, string) error {
	return errNotWasm()
}
