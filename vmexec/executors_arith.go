package vmexec

import (
	"fmt"

	"viua/isa"
	"viua/vmproc"
)

// execBinaryT backs every T-format two-operand instruction (arithmetic,
// bitwise, and comparison): the opcode carries no signedness of its own (spec
// §4.9 reserves that distinction for the R-format I/IU pairs), so the result
// tag is propagated from whichever operand is unsigned or floating, falling
// back to signed.
func execBinaryT(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	lhs, err := p.Read(instr.Lhs)
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	rhs, err := p.Read(instr.Rhs)
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	op := instr.Opcode &^ isa.GREEDY

	var result vmproc.Value
	if isComparison(op) {
		result = compareValues(op, lhs, rhs)
	} else {
		result, err = arithValues(op, lhs, rhs)
		if err != nil {
			return ip, false, trap(ip, instr, err)
		}
	}
	if err := p.Write(instr.Out, result); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}

func isComparison(op isa.Opcode) bool {
	switch op {
	case isa.EQ, isa.LT, isa.LTE, isa.GT, isa.GTE:
		return true
	}
	return false
}

func widenFloat(v vmproc.Value) float64 {
	switch v.Tag() {
	case vmproc.FloatSingle:
		return float64(v.Float32())
	case vmproc.FloatDouble:
		return v.Float64()
	case vmproc.IntegerUnsigned:
		return float64(v.Uint64())
	default:
		return float64(v.Int64())
	}
}

func isFloaty(v vmproc.Value) bool {
	return v.Tag() == vmproc.FloatSingle || v.Tag() == vmproc.FloatDouble
}

func arithValues(op isa.Opcode, lhs, rhs vmproc.Value) (vmproc.Value, error) {
	switch {
	case lhs.Tag() == vmproc.FloatDouble || rhs.Tag() == vmproc.FloatDouble:
		r, err := floatArith(op, widenFloat(lhs), widenFloat(rhs))
		return vmproc.NewFloat64(r), err
	case isFloaty(lhs) || isFloaty(rhs):
		r, err := floatArith(op, widenFloat(lhs), widenFloat(rhs))
		return vmproc.NewFloat32(float32(r)), err
	case lhs.Tag() == vmproc.IntegerUnsigned || rhs.Tag() == vmproc.IntegerUnsigned:
		r, err := uintArith(op, lhs.Uint64(), rhs.Uint64())
		return vmproc.NewUint64(r), err
	default:
		r, err := intArith(op, lhs.Int64(), rhs.Int64())
		return vmproc.NewInt64(r), err
	}
}

func compareValues(op isa.Opcode, lhs, rhs vmproc.Value) vmproc.Value {
	var less, equal bool
	switch {
	case isFloaty(lhs) || isFloaty(rhs):
		a, b := widenFloat(lhs), widenFloat(rhs)
		less, equal = a < b, a == b
	case lhs.Tag() == vmproc.IntegerUnsigned || rhs.Tag() == vmproc.IntegerUnsigned:
		a, b := lhs.Uint64(), rhs.Uint64()
		less, equal = a < b, a == b
	default:
		a, b := lhs.Int64(), rhs.Int64()
		less, equal = a < b, a == b
	}
	var result bool
	switch op {
	case isa.EQ:
		result = equal
	case isa.LT:
		result = less
	case isa.LTE:
		result = less || equal
	case isa.GT:
		result = !less && !equal
	case isa.GTE:
		result = !less || equal
	}
	if result {
		return vmproc.NewUint64(1)
	}
	return vmproc.NewUint64(0)
}

func floatArith(op isa.Opcode, a, b float64) (float64, error) {
	switch op {
	case isa.ADD:
		return a + b, nil
	case isa.SUB:
		return a - b, nil
	case isa.MUL:
		return a * b, nil
	case isa.DIV:
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	default:
		return 0, fmt.Errorf("vmexec: %s is not valid on floating-point operands", isa.Mnemonic(op))
	}
}

func uintArith(op isa.Opcode, a, b uint64) (uint64, error) {
	switch op {
	case isa.ADD:
		return a + b, nil
	case isa.SUB:
		return a - b, nil
	case isa.MUL:
		return a * b, nil
	case isa.DIV:
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	case isa.MOD:
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a % b, nil
	case isa.BITAND:
		return a & b, nil
	case isa.BITOR:
		return a | b, nil
	case isa.BITXOR:
		return a ^ b, nil
	case isa.SHL:
		return a << (b & 63), nil
	case isa.SHR:
		return a >> (b & 63), nil
	default:
		return 0, fmt.Errorf("vmexec: unhandled opcode %s", isa.Mnemonic(op))
	}
}

func intArith(op isa.Opcode, a, b int64) (int64, error) {
	switch op {
	case isa.ADD:
		return a + b, nil
	case isa.SUB:
		return a - b, nil
	case isa.MUL:
		return a * b, nil
	case isa.DIV:
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	case isa.MOD:
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a % b, nil
	case isa.BITAND:
		return a & b, nil
	case isa.BITOR:
		return a | b, nil
	case isa.BITXOR:
		return a ^ b, nil
	case isa.SHL:
		return a << (uint64(b) & 63), nil
	case isa.SHR:
		return a >> (uint64(b) & 63), nil
	default:
		return 0, fmt.Errorf("vmexec: unhandled opcode %s", isa.Mnemonic(op))
	}
}

// execAA services AA: allocate Lhs bytes aligned to 1<<Rhs from the
// process heap, writing the resulting address into Out.
func execAA(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	size, err := p.Read(instr.Lhs)
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	align, err := p.Read(instr.Rhs)
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	addr, err := p.Allocate(size.Uint64(), uint8(align.Uint64()))
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	if err := p.Write(instr.Out, vmproc.NewUint64(addr)); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}

// typedBase maps an R-format signed/unsigned opcode pair onto the
// arithmetic operation it performs, so intArith/uintArith can be reused.
func typedBase(op isa.Opcode) isa.Opcode {
	switch op {
	case isa.ADDI, isa.ADDIU:
		return isa.ADD
	case isa.SUBI, isa.SUBIU:
		return isa.SUB
	case isa.MULI, isa.MULIU:
		return isa.MUL
	case isa.DIVI, isa.DIVIU:
		return isa.DIV
	default:
		return op
	}
}

const immWidthR = 24

// execTypedR backs ADDI/ADDIU/SUBI/SUBIU/MULI/MULIU/DIVI/DIVIU: unlike
// execBinaryT, the opcode itself fixes the result's signedness via
// isa.IsSigned, independent of In's own tag (spec §4.9).
func execTypedR(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	in, err := p.Read(instr.In)
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	op := instr.Opcode &^ isa.GREEDY
	base := typedBase(op)

	var result vmproc.Value
	if isa.IsSigned(op) {
		r, err := intArith(base, in.Int64(), instr.Immediate)
		if err != nil {
			return ip, false, trap(ip, instr, err)
		}
		result = vmproc.NewInt64(r)
	} else {
		raw := uint64(instr.Immediate) & ((1 << immWidthR) - 1)
		r, err := uintArith(base, in.Uint64(), raw)
		if err != nil {
			return ip, false, trap(ip, instr, err)
		}
		result = vmproc.NewUint64(r)
	}
	if err := p.Write(instr.Out, result); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}

const immWidthE = 36
const luiShift = 28

// execLUI backs both LUI (signed) and LUIU (unsigned): loads the encoded
// 36-bit immediate into the upper bits of Out, shifted left by the width of
// the low half ADDI/ADDIU fills in next (li's two-instruction sequence).
func execLUI(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	op := instr.Opcode &^ isa.GREEDY
	var v vmproc.Value
	if op == isa.LUI {
		v = vmproc.NewInt64(instr.Immediate << luiShift)
	} else {
		raw := uint64(instr.Immediate) & ((1 << immWidthE) - 1)
		v = vmproc.NewUint64(raw << luiShift)
	}
	if err := p.Write(instr.Out, v); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}
