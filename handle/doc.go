// Package handle turns the stateless capability contract into FUSE-like
// stateful file sessions: open issues an opaque token, reads and writes
// track a position per token, and close invalidates the token forever.
//
// The table itself never touches file content; every byte moved goes
// through the capability's Read/Write/Stat, so any filesystem gains
// handle support without implementing it.
package handle
