// Package memfs is a writable in-memory filesystem capability. It backs
// the example plugins and the handle-table tests, and doubles as the
// reference implementation of the write-flag semantics.
package memfs
