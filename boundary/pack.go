package boundary

// Pack combines two 32-bit halves into the single 64-bit word the
// boundary returns: hi in the upper bits, lo in the lower.
func Pack(hi, lo uint32) uint64 {
	return uint64(hi)<<32 | uint64(lo)
}

// Unpack splits a result word back into its halves.
func Unpack(word uint64) (hi, lo uint32) {
	return uint32(word >> 32), uint32(word)
}
