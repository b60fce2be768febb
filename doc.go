// Package fsplugin defines the boundary contract between a filesystem
// plugin compiled to WebAssembly and the host process that drives it.
//
// The boundary is deliberately narrow: a flat linear memory shared by both
// sides, a fixed set of exported functions, and nothing but 32/64-bit
// integers crossing the call frame. Structured values travel as JSON text
// in guest memory; multi-value results travel as a single packed 64-bit
// word (see the boundary package).
//
// Layering, leaves first:
//
//   - errors:     the error taxonomy shared by both sides of the boundary
//   - filesystem: the capability contract a plugin implements
//   - codec:      JSON wire encoding for metadata and configuration
//   - handle:     stateful open/read/write/seek/close on top of a
//     stateless capability implementation
//   - boundary:   raw-memory marshaling (the only package that touches
//     unchecked memory)
//   - guest:      the exported entry points, bound to one registered
//     plugin instance
//   - host:       wazero-backed loader implementing the host half of the
//     same conventions
//
// This root package holds only what both halves must agree on: export
// names, the scratch-buffer capacity, and the Memory/Allocator interfaces
// the host uses to reach guest memory.
package fsplugin
