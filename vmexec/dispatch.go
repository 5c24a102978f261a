package vmexec

import (
	"encoding/binary"
	"fmt"

	"viua/isa"
	"viua/vmproc"
)

// executor runs one decoded instruction against p and returns the next
// instruction pointer and whether the process halted. A non-nil error is
// always a *Trap.
type executor func(p *vmproc.Process, ip uint64, instr isa.Instruction) (next uint64, halted bool, err error)

// fetch reads the 8-byte little-endian word at ip from p.Text.
func fetch(p *vmproc.Process, ip uint64) (uint64, error) {
	if ip+8 > uint64(len(p.Text)) {
		return 0, fmt.Errorf("vmexec: instruction pointer %#x out of .text bounds (%d bytes)", ip, len(p.Text))
	}
	return binary.LittleEndian.Uint64(p.Text[ip : ip+8]), nil
}

// Step decodes and executes exactly one instruction at ip.
func Step(p *vmproc.Process, ip uint64) (next uint64, halted bool, err error) {
	word, err := fetch(p, ip)
	if err != nil {
		return ip, false, err
	}
	instr, err := isa.Decode(word)
	if err != nil {
		return ip, false, trap(ip, instr, fmt.Errorf("%w: %v", ErrIllegalInstruction, err))
	}
	exec, ok := executors[instr.Opcode&^isa.GREEDY]
	if !ok {
		return ip, false, trap(ip, instr, ErrIllegalInstruction)
	}
	return exec(p, ip, instr)
}

var executors = map[isa.Opcode]executor{
	isa.NOP:    execNOP,
	isa.HALT:   execHALT,
	isa.EBREAK: execEBREAK,
	isa.RETURN: execRETURN,

	isa.DELETE: execDELETE,
	isa.FRAME:  execFRAME,
	isa.STRING: execSTRING,
	isa.PRINT:  execPRINT,
	isa.ECHO:   execECHO,

	isa.MOVE:   execMOVE,
	isa.COPY:   execCOPY,
	isa.PTR:    execPTR,
	isa.BITNOT: execBITNOT,
	isa.NOT:    execNOT,
	isa.CALL:   execCALL,
	isa.ATOM:   execATOM,

	isa.ADD:    execBinaryT,
	isa.SUB:    execBinaryT,
	isa.MUL:    execBinaryT,
	isa.DIV:    execBinaryT,
	isa.MOD:    execBinaryT,
	isa.BITAND: execBinaryT,
	isa.BITOR:  execBinaryT,
	isa.BITXOR: execBinaryT,
	isa.SHL:    execBinaryT,
	isa.SHR:    execBinaryT,
	isa.EQ:     execBinaryT,
	isa.LT:     execBinaryT,
	isa.LTE:    execBinaryT,
	isa.GT:     execBinaryT,
	isa.GTE:    execBinaryT,
	isa.AA:     execAA,

	isa.LUI:  execLUI,
	isa.LUIU: execLUI,

	isa.ADDI:  execTypedR,
	isa.ADDIU: execTypedR,
	isa.SUBI:  execTypedR,
	isa.SUBIU: execTypedR,
	isa.MULI:  execTypedR,
	isa.MULIU: execTypedR,
	isa.DIVI:  execTypedR,
	isa.DIVIU: execTypedR,

	isa.FLOAT:   execFLOAT,
	isa.DOUBLE:  execDOUBLE,
	isa.INTEGER: execINTEGER,
	isa.SYMHI:   execSYMHI,
	isa.SYMLO:   execSYMLO,
}
