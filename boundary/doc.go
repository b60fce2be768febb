// Package boundary implements the marshaling conventions of the plugin
// ABI: packed 64-bit result words, null-terminated strings, pinned
// guest allocations whose ownership transfers across the boundary, and
// the fixed shared scratch buffers.
//
// Everything here moves copies. Memory referenced by a raw pointer is
// copied into Go-managed memory on the way in, and copied into a pinned
// allocation on the way out; no returned value aliases caller memory.
package boundary
