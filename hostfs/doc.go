// Package hostfs gives guest plugins typed access to the host
// filesystem passthrough imports. The host scopes every path to a
// configured root directory; plugins loaded without one get a
// permission-denied error from each call.
//
// Outside wasm builds every function fails with an ordinary error, so
// plugins that use the passthrough still compile and test natively.
package hostfs
