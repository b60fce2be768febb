// Package guest is the plugin-side SDK. A plugin implements
// filesystem.FileSystem (or filesystem.HandleFS), calls Register, and
// compiles to wasm; the package provides the exported entry points, the
// argument unmarshaling, and the result-word packing.
//
// The Dispatcher carries the full entry-point semantics on ordinary Go
// types, so plugins are tested natively; only the thin export shims are
// compiled for wasm.
package guest
