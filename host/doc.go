// Package host loads filesystem plugins compiled to wasm and drives
// them through typed methods that mirror every boundary entry point.
// It owns the wazero runtime, adapts guest linear memory and the
// exported malloc/free pair, and provides the optional env import
// module (host filesystem passthrough, outbound HTTP).
package host
