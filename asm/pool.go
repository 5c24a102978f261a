package asm

import "strings"

// ConstantPool lays out .rodata: every inserted value is appended at the
// current length and its starting offset returned, mirroring as/as.go's
// p.a address-bumping discipline (store() advances p.a by cellSize) but
// for variable-length byte runs instead of fixed 32-bit cells.
type ConstantPool struct {
	bytes []byte
}

// Len reports the current size of .rodata in bytes.
func (cp *ConstantPool) Len() int {
	return len(cp.bytes)
}

// Bytes returns the accumulated .rodata contents.
func (cp *ConstantPool) Bytes() []byte {
	return cp.bytes
}

// InsertString lays out text repeated count times (spec §4.4's `* <int>`
// repetition directive) and returns (offset, size).
func (cp *ConstantPool) InsertString(text string, count int) (offset, size int) {
	offset = len(cp.bytes)
	repeated := strings.Repeat(text, count)
	cp.bytes = append(cp.bytes, repeated...)
	return offset, len(repeated)
}

// InsertAtom lays out an atom's bare name as bytes, the same way a string
// would be, distinguished only by the owning symbol's recorded type.
func (cp *ConstantPool) InsertAtom(name string) (offset, size int) {
	offset = len(cp.bytes)
	cp.bytes = append(cp.bytes, name...)
	return offset, len(name)
}
