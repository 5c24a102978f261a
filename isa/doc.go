// Package isa defines the instruction set of the viua process VM: the
// 64-bit instruction word, its seven encodings, the register-access
// sub-word used by operands, and the opcode table.
//
// Every VM instruction occupies one 64-bit little-endian cell.  The low
// byte of the cell holds an opcode; FORMAT_MASK extracts the three-bit
// format tag from the opcode, and the high bits hold zero or more operands
// depending on format.  A single bit of the opcode, GREEDY, marks an
// instruction as part of a greedy bundle (see the vmexec package for the
// scheduler's preemption discipline around bundles).
//
// In the bit-field diagrams, bytes are listed from the least significant
// up: g = GREEDY, f = format tag, c = operation within the format.
//
//	N format: no operands beyond the opcode.
//		Bit field: gfff cccc  (unused upper bytes)
//		Used by: NOP, HALT, EBREAK, RETURN
//
//	S format: one register access.
//		Bit field: gfff cccc  rrrr rrrr  (unused upper bytes)
//		r...  = register access (see RegisterAccess)
//		Used by: DELETE, FRAME, STRING, PRINT, ECHO
//
//	D format: two register accesses, (out, in).
//		Bit field: gfff cccc  oooo oooo  iiii iiii
//		o...  = out register access
//		i...  = in register access
//		Used by: MOVE, COPY, PTR, BITNOT, NOT, CALL, ATOM
//
//	T format: three register accesses, (out, lhs, rhs).
//		Bit field: gfff cccc  oooo oooo  llll llll  rrrr rrrr
//		Used by: ADD, SUB, MUL, DIV, MOD, bitwise and compare ops, AA
//
//	E format: one register access plus a 36-bit immediate.
//		o...  = out register access
//		n...  = 36-bit immediate (sign- or zero-extended per opcode)
//		Used by: LUI (sign-extend), LUIU (zero-extend)
//
//	R format: two register accesses plus a 24-bit immediate.
//		Used by: ADDI/ADDIU and the rest of the *I/*IU family
//
//	F format: one register access plus a 32-bit immediate.
//		Used by: FLOAT, DOUBLE, INTEGER, and the SYMHI/SYMLO pair the
//		assembler emits ahead of every CALL/ATOM to carry a relocatable
//		symbol index (see the asm package's pseudo-instruction
//		expander).
//
// A register access names a register set (LOCAL, ARGUMENT, STATIC), a
// direct/indirect bit, and an index within that set.  The
// distinguished Void register access reads as zero of the result's
// signedness and discards writes.
package isa
