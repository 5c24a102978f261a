package vmexec

import (
	"math"

	"viua/isa"
	"viua/vmproc"
)

func execNOP(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	return ip + 8, false, nil
}

func execHALT(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	return ip + 8, true, nil
}

// execEBREAK traps unconditionally: nothing in this toolchain attaches a
// debugger to catch it, so the only sound behavior is to surface it as a
// fatal condition rather than silently stepping over it.
func execEBREAK(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	return ip, false, trap(ip, instr, ErrBreakpoint)
}

// execRETURN pops the current frame and resumes the caller at its saved
// return IP, writing this call's result (the callee's LOCAL %0, by
// convention) into the register CALL asked to receive it. Returning from
// the entry frame halts the process.
func execRETURN(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	callee, ok := p.PopFrame()
	if !ok {
		return ip, false, trap(ip, instr, ErrNoActiveFrame)
	}
	if len(p.Frames) == 0 {
		return ip, true, nil
	}
	result, _ := callee.Locals.Get(0)
	if !callee.ResultSlot.IsVoid() {
		if err := p.Write(callee.ResultSlot, result); err != nil {
			return ip, false, trap(ip, instr, err)
		}
	}
	return callee.ReturnIP, false, nil
}

// execFLOAT loads a 32-bit immediate as the bit pattern of a single-
// precision float.
func execFLOAT(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	v := vmproc.NewFloat32(math.Float32frombits(uint32(instr.Immediate)))
	if err := p.Write(instr.Out, v); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}

// execDOUBLE widens the same 32-bit immediate a FLOAT literal would load
// into a double-precision register: the F format has no room for a true
// 64-bit double constant in one word, so DOUBLE is a convenience for values
// that already fit in 32 bits, not a general 64-bit literal loader (use LI
// by way of LUI/ADDI for that).
func execDOUBLE(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	f := math.Float32frombits(uint32(instr.Immediate))
	v := vmproc.NewFloat64(float64(f))
	if err := p.Write(instr.Out, v); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}

func execINTEGER(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	v := vmproc.NewInt64(instr.Immediate)
	if err := p.Write(instr.Out, v); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}

// execSYMHI loads the high 32 bits of a symbol index into Out, overwriting
// whatever the register held (isa.SYMHI's doc comment; always the GREEDY
// half of the SYMHI/SYMLO pair the assembler emits ahead of CALL/ATOM).
func execSYMHI(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	hi := uint64(uint32(instr.Immediate)) << 32
	if err := p.Write(instr.Out, vmproc.NewUint64(hi)); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}

// execSYMLO merges the low 32 bits into Out without disturbing the high
// half SYMHI already wrote.
func execSYMLO(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	cur, err := p.Read(instr.Out)
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	merged := (cur.Uint64() &^ 0xffffffff) | uint64(uint32(instr.Immediate))
	if err := p.Write(instr.Out, vmproc.NewUint64(merged)); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}
