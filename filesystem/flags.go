package filesystem

// OpenFlag carries the open mode for stateful handles. The access mode
// occupies the low two bits; the remaining bits are independent flags.
type OpenFlag uint32

const (
	ReadOnly  OpenFlag = 0
	WriteOnly OpenFlag = 1
	ReadWrite OpenFlag = 2

	Append   OpenFlag = 1 << 3
	Create   OpenFlag = 1 << 4
	Excl     OpenFlag = 1 << 5
	Truncate OpenFlag = 1 << 6
)

const accessMask OpenFlag = 3

// Has reports whether flag is set. Only meaningful for the non-access
// bits; use AccessMode for the low two bits.
func (f OpenFlag) Has(flag OpenFlag) bool {
	return f&flag != 0
}

// AccessMode returns ReadOnly, WriteOnly, or ReadWrite.
func (f OpenFlag) AccessMode() OpenFlag {
	return f & accessMask
}

// Readable reports whether the handle may be read.
func (f OpenFlag) Readable() bool {
	m := f.AccessMode()
	return m == ReadOnly || m == ReadWrite
}

// Writable reports whether the handle may be written.
func (f OpenFlag) Writable() bool {
	m := f.AccessMode()
	return m == WriteOnly || m == ReadWrite
}

// WriteFlag carries advisory flags for stateless writes. The core passes
// them through unchanged; honoring them is the capability's business.
type WriteFlag uint32

const (
	WriteAppend   WriteFlag = 1 << 0
	WriteCreate   WriteFlag = 1 << 1
	WriteExcl     WriteFlag = 1 << 2
	WriteTruncate WriteFlag = 1 << 3
	WriteSync     WriteFlag = 1 << 4
)

// Has reports whether flag is set.
func (f WriteFlag) Has(flag WriteFlag) bool {
	return f&flag != 0
}
