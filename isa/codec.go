package isa

import "fmt"

// bit offsets of operand fields within a 64-bit instruction word, counted
// from the LSB.  The opcode always occupies bits [0:8).
const (
	offRA0  = 8
	offRA1  = 16
	offRA2  = 24
	offImm36 = 16
	offImm24 = 24
	offImm32 = 16

	widthImm36 = 36
	widthImm24 = 24
	widthImm32 = 32
)

// Instruction is the decoded form of one instruction word: an opcode plus
// whichever operands its format carries.  Not every field is meaningful
// for every format; Format tells the caller which ones are.
type Instruction struct {
	Opcode     Opcode
	Out, In    RegisterAccess // D, R, E, F formats
	Lhs, Rhs   RegisterAccess // T format (Out/Lhs/Rhs), S format (Out only)
	Operand    RegisterAccess // S format's single operand, aliases Out
	Immediate  int64          // sign-extended raw immediate bits, meaning is format-specific
}

// Format returns the format of the decoded instruction.
func (in Instruction) Format() Format {
	return FormatOf(in.Opcode)
}

func truncationError(format Format, bits int, v int64) error {
	return fmt.Errorf("isa: immediate %d does not fit %d-bit field of format %v", v, bits, format)
}

func fitsSigned(v int64, bits int) bool {
	lo := int64(-1) << (bits - 1)
	hi := (int64(1) << (bits - 1)) - 1
	return v >= lo && v <= hi
}

func fitsUnsigned(v int64, bits int) bool {
	if v < 0 {
		return false
	}
	hi := (int64(1) << bits) - 1
	return v <= hi
}

func maskBits(v int64, bits int) uint64 {
	return uint64(v) & ((uint64(1) << bits) - 1)
}

func signExtend(v uint64, bits int) int64 {
	shift := 64 - bits
	return int64(v<<shift) >> shift
}

// EncodeN encodes an N-format (no operand) instruction.
func EncodeN(op Opcode) uint64 {
	return uint64(op)
}

// EncodeS encodes an S-format (one register access) instruction.
func EncodeS(op Opcode, ra RegisterAccess) (uint64, error) {
	b, err := ra.Encode()
	if err != nil {
		return 0, err
	}
	return uint64(op) | uint64(b)<<offRA0, nil
}

// EncodeD encodes a D-format (out, in) instruction.
func EncodeD(op Opcode, out, in RegisterAccess) (uint64, error) {
	ob, err := out.Encode()
	if err != nil {
		return 0, err
	}
	ib, err := in.Encode()
	if err != nil {
		return 0, err
	}
	return uint64(op) | uint64(ob)<<offRA0 | uint64(ib)<<offRA1, nil
}

// EncodeT encodes a T-format (out, lhs, rhs) instruction.
func EncodeT(op Opcode, out, lhs, rhs RegisterAccess) (uint64, error) {
	ob, err := out.Encode()
	if err != nil {
		return 0, err
	}
	lb, err := lhs.Encode()
	if err != nil {
		return 0, err
	}
	rb, err := rhs.Encode()
	if err != nil {
		return 0, err
	}
	return uint64(op) | uint64(ob)<<offRA0 | uint64(lb)<<offRA1 | uint64(rb)<<offRA2, nil
}

// EncodeE encodes an E-format (out, 36-bit immediate) instruction.  imm is
// interpreted as signed for a bounds check that accepts both the signed
// and the equivalent unsigned 36-bit range, since LUI/LUIU share the
// encoding and differ only in how the executor extends the loaded value.
func EncodeE(op Opcode, out RegisterAccess, imm int64) (uint64, error) {
	if !fitsSigned(imm, widthImm36) && !fitsUnsigned(imm, widthImm36) {
		return 0, truncationError(FormatE, widthImm36, imm)
	}
	ob, err := out.Encode()
	if err != nil {
		return 0, err
	}
	return uint64(op) | uint64(ob)<<offRA0 | maskBits(imm, widthImm36)<<offImm36, nil
}

// EncodeR encodes an R-format (out, in, 24-bit immediate) instruction.
func EncodeR(op Opcode, out, in RegisterAccess, imm int64) (uint64, error) {
	if !fitsSigned(imm, widthImm24) && !fitsUnsigned(imm, widthImm24) {
		return 0, truncationError(FormatR, widthImm24, imm)
	}
	ob, err := out.Encode()
	if err != nil {
		return 0, err
	}
	ib, err := in.Encode()
	if err != nil {
		return 0, err
	}
	return uint64(op) | uint64(ob)<<offRA0 | uint64(ib)<<offRA1 | maskBits(imm, widthImm24)<<offImm24, nil
}

// EncodeF encodes an F-format (out, 32-bit immediate) instruction.
func EncodeF(op Opcode, out RegisterAccess, imm int64) (uint64, error) {
	if !fitsSigned(imm, widthImm32) && !fitsUnsigned(imm, widthImm32) {
		return 0, truncationError(FormatF, widthImm32, imm)
	}
	ob, err := out.Encode()
	if err != nil {
		return 0, err
	}
	return uint64(op) | uint64(ob)<<offRA0 | maskBits(imm, widthImm32)<<offImm32, nil
}

// Decode parses a 64-bit instruction word into its opcode and operands.
// Decode is the total inverse of the Encode* family: for every format F
// and field set S, Decode(Encode_F(S)) reproduces S.
func Decode(word uint64) (Instruction, error) {
	op := Opcode(word & OPCODE_MASK)
	format := FormatOf(op)

	switch format {
	case FormatN:
		return Instruction{Opcode: op}, nil
	case FormatS:
		ra := DecodeRegisterAccess(uint8(word >> offRA0))
		return Instruction{Opcode: op, Out: ra, Operand: ra}, nil
	case FormatD:
		out := DecodeRegisterAccess(uint8(word >> offRA0))
		in := DecodeRegisterAccess(uint8(word >> offRA1))
		return Instruction{Opcode: op, Out: out, In: in}, nil
	case FormatT:
		out := DecodeRegisterAccess(uint8(word >> offRA0))
		lhs := DecodeRegisterAccess(uint8(word >> offRA1))
		rhs := DecodeRegisterAccess(uint8(word >> offRA2))
		return Instruction{Opcode: op, Out: out, Lhs: lhs, Rhs: rhs}, nil
	case FormatE:
		out := DecodeRegisterAccess(uint8(word >> offRA0))
		imm := signExtend((word>>offImm36)&((1<<widthImm36)-1), widthImm36)
		return Instruction{Opcode: op, Out: out, Immediate: imm}, nil
	case FormatR:
		out := DecodeRegisterAccess(uint8(word >> offRA0))
		in := DecodeRegisterAccess(uint8(word >> offRA1))
		imm := signExtend((word>>offImm24)&((1<<widthImm24)-1), widthImm24)
		return Instruction{Opcode: op, Out: out, In: in, Immediate: imm}, nil
	case FormatF:
		out := DecodeRegisterAccess(uint8(word >> offRA0))
		imm := signExtend((word>>offImm32)&((1<<widthImm32)-1), widthImm32)
		return Instruction{Opcode: op, Out: out, Immediate: imm}, nil
	default:
		return Instruction{}, fmt.Errorf("isa: impossible format %#x", format)
	}
}

// String renders a one-line mnemonic for the decoded instruction, e.g.
// "addi %3, %1, 0x2a" — used by the disassembler and by trap messages.
func (in Instruction) String() string {
	name := Mnemonic(in.Opcode)
	switch in.Format() {
	case FormatN:
		return name
	case FormatS:
		return fmt.Sprintf("%s %s", name, in.Operand)
	case FormatD:
		return fmt.Sprintf("%s %s, %s", name, in.Out, in.In)
	case FormatT:
		return fmt.Sprintf("%s %s, %s, %s", name, in.Out, in.Lhs, in.Rhs)
	case FormatE, FormatF:
		return fmt.Sprintf("%s %s, %#x", name, in.Out, in.Immediate)
	case FormatR:
		return fmt.Sprintf("%s %s, %s, %#x", name, in.Out, in.In, in.Immediate)
	default:
		return name
	}
}
