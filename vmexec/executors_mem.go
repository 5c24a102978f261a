package vmexec

import (
	"encoding/binary"
	"fmt"

	"viua/isa"
	"viua/vmproc"
)

func execDELETE(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	if err := p.Delete(instr.Operand); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}

// execFRAME reserves N argument slots ahead of a CALL, where N is carried
// in the operand's Index field rather than read from a register (viua-asm's
// `frame %N` convention -- see vmproc.RegisterFile.Clear).
func execFRAME(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	p.Arguments.Clear(int(instr.Operand.Index))
	return ip + 8, false, nil
}

// execSTRING materializes a boxed string in place: the register must
// already hold a resolved object-symbol index (placed there by a preceding
// SYMHI/SYMLO pair or an li-style literal load), and STRING replaces that
// same register's content with a Boxed string copied out of .rodata.
func execSTRING(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	v, err := p.Read(instr.Operand)
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	sym, err := p.Symbol(int(v.Int64()))
	if err != nil || sym.Type != vmproc.SymObject {
		return ip, false, trap(ip, instr, fmt.Errorf("%w: %d", ErrInvalidSymbol, v.Int64()))
	}
	data, err := rodataSlice(p, sym)
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	box := vmproc.NewStringBox(vmproc.BoxString, data)
	if err := p.Write(instr.Operand, vmproc.NewBoxed(box)); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}

func execPRINT(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	return printValue(p, ip, instr, true)
}

func execECHO(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	return printValue(p, ip, instr, false)
}

func printValue(p *vmproc.Process, ip uint64, instr isa.Instruction, newline bool) (uint64, bool, error) {
	v, err := p.Read(instr.Operand)
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	if p.Output != nil {
		s := v.Display()
		if newline {
			s += "\n"
		}
		fmt.Fprint(p.Output, s)
	}
	return ip + 8, false, nil
}

func execMOVE(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	if err := p.Move(instr.Out, instr.In); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}

func execCOPY(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	if err := p.Copy(instr.Out, instr.In); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}

func execBITNOT(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	v, err := p.Read(instr.In)
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	var out vmproc.Value
	if v.Tag() == vmproc.IntegerUnsigned {
		out = vmproc.NewUint64(^v.Uint64())
	} else {
		out = vmproc.NewInt64(^v.Int64())
	}
	if err := p.Write(instr.Out, out); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}

func execNOT(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	v, err := p.Read(instr.In)
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	result := uint64(0)
	if v.Uint64() == 0 {
		result = 1
	}
	if err := p.Write(instr.Out, vmproc.NewUint64(result)); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}

// execPTR dereferences a validated heap pointer, loading the little-endian
// 64-bit word stored at the address In holds into Out.
func execPTR(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	addrVal, err := p.Read(instr.In)
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	addr := addrVal.Uint64()
	if _, ok := p.Pointers.Validate(addr); !ok {
		return ip, false, trap(ip, instr, fmt.Errorf("%w: %#x", ErrInvalidPointer, addr))
	}
	bs, err := p.Heap.Bytes(addr, 8)
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	if err := p.Write(instr.Out, vmproc.NewUint64(binary.LittleEndian.Uint64(bs))); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}

// execCALL resolves the symbol index SYMHI/SYMLO materialized into In,
// pushes a new frame, and remembers Out as where this call's result should
// land once RETURN fires.
func execCALL(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	v, err := p.Read(instr.In)
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	sym, err := p.Symbol(int(v.Int64()))
	if err != nil || sym.Type != vmproc.SymFunc {
		return ip, false, trap(ip, instr, fmt.Errorf("%w: %d", ErrInvalidSymbol, v.Int64()))
	}
	frame := p.PushFrame(sym.Name, ip+8)
	frame.ResultSlot = instr.Out
	return sym.Value, false, nil
}

// execATOM resolves an object symbol the same way STRING does, but writes
// the boxed value into a distinct Out register rather than replacing In.
func execATOM(p *vmproc.Process, ip uint64, instr isa.Instruction) (uint64, bool, error) {
	v, err := p.Read(instr.In)
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	sym, err := p.Symbol(int(v.Int64()))
	if err != nil || sym.Type != vmproc.SymObject {
		return ip, false, trap(ip, instr, fmt.Errorf("%w: %d", ErrInvalidSymbol, v.Int64()))
	}
	data, err := rodataSlice(p, sym)
	if err != nil {
		return ip, false, trap(ip, instr, err)
	}
	box := vmproc.NewStringBox(vmproc.BoxAtom, data)
	if err := p.Write(instr.Out, vmproc.NewBoxed(box)); err != nil {
		return ip, false, trap(ip, instr, err)
	}
	return ip + 8, false, nil
}

func rodataSlice(p *vmproc.Process, sym vmproc.Symbol) ([]byte, error) {
	if sym.Value+sym.Size > uint64(len(p.Rodata)) {
		return nil, fmt.Errorf("vmexec: symbol %q range [%#x,%#x) out of .rodata bounds", sym.Name, sym.Value, sym.Value+sym.Size)
	}
	return p.Rodata[sym.Value : sym.Value+sym.Size], nil
}
