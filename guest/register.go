package guest

import (
	"github.com/wippyai/fsplugin/errors"
	"github.com/wippyai/fsplugin/filesystem"
)

// current is the single plugin instance the exports dispatch to. One
// wasm binary carries one plugin.
var current *Dispatcher

// Register installs fs as the plugin served by the boundary exports.
// Call it from the plugin's init or main before the host attaches.
func Register(fs filesystem.FileSystem) {
	current = NewDispatcher(fs)
}

// Registered reports whether a plugin has been installed.
func Registered() bool {
	return current != nil
}

func dispatcher() (*Dispatcher, error) {
	if current == nil {
		return nil, errors.Other("no plugin registered")
	}
	return current, nil
}
