package asm

import (
	"fmt"

	"viua/internal/diag"
	"viua/isa"
)

// Word is one fully-resolved instruction, ready for the emitter: every
// operand is a concrete register access or immediate, no further symbol
// lookup is needed. It is the expander's output and the emitter's input.
type Word struct {
	Op        isa.Opcode
	Out       isa.RegisterAccess
	In        isa.RegisterAccess
	Lhs, Rhs  isa.RegisterAccess
	Immediate int64
	Loc       Location

	// IsCallSite marks SYMHI/SYMLO pairs the expander emitted ahead of a
	// CALL or ATOM, so the relocation builder (asm/reloc.go) can find
	// them without re-deriving intent from the opcode sequence alone.
	IsCallSite bool
	Symbol     int // resolved symbol table index, valid when IsCallSite
	RelocKind  RelocKind
}

// RelocKind distinguishes the two VM-specific relocation types.
type RelocKind int

const (
	RelocNone RelocKind = iota
	RelocJumpSlot
	RelocObject
)

// scratch registers reserved by pseudo-instruction lowering. Register 31 is
// never assigned by the parser's own `%N` syntax in generated test/sample
// sources, by convention; a real toolchain would reserve these via the
// calling convention rather than a bare index, but the spec does not
// define one, so this is recorded as a design choice, not inferred from
// operand syntax.
var (
	scratch1 = isa.RegisterAccess{Set: isa.LOCAL, Index: 30}
	scratch2 = isa.RegisterAccess{Set: isa.LOCAL, Index: 31}
	scratch3 = isa.RegisterAccess{Set: isa.LOCAL, Index: 29}
)

const liDivisor = 16

// Expander lowers a parsed function body into a flat []Word, expanding
// `li`, `call`, and `atom` pseudo-instructions and leaving every other
// mnemonic as a direct encode of its opcode. It mirrors as/as.go's
// p.literal()'s shift-search, generalized from a single-shift Forth cell
// literal to the spec's LUI+ADDI(+MUL) sequence for a 64-bit register.
type Expander struct {
	Symbols *SymbolTable
}

// ExpandFunction lowers fn's instruction list and sets each InstrNode's
// PhysicalIndex to the index of its first lowered Word, so callers can map
// Words back to source locations.
func (ex *Expander) ExpandFunction(fn *FunctionNode) ([]Word, error) {
	var words []Word
	for _, instr := range fn.Instrs {
		lowered, err := ex.expandInstr(fn.Name, instr)
		if err != nil {
			return nil, err
		}
		instr.PhysicalIndex = len(words)
		words = append(words, lowered...)
	}
	return words, nil
}

func (ex *Expander) errAt(loc Location, function, format string, args ...any) error {
	return diag.New(loc, function, fmt.Errorf(format, args...))
}

func (ex *Expander) expandInstr(function string, instr *InstrNode) ([]Word, error) {
	switch instr.Mnemonic {
	case "li", "liu":
		return ex.expandLi(function, instr)
	case "call":
		return ex.expandCallOrAtom(function, instr, isa.CALL, RelocJumpSlot)
	case "atom":
		return ex.expandCallOrAtom(function, instr, isa.ATOM, RelocObject)
	case "string":
		return ex.expandString(function, instr)
	default:
		return ex.expandPlain(function, instr)
	}
}

// expandLi implements spec §4.4's li algorithm.
func (ex *Expander) expandLi(function string, instr *InstrNode) ([]Word, error) {
	if len(instr.Operands) != 2 || instr.Operands[0].Kind != OperandRegister || instr.Operands[1].Kind != OperandImmediate {
		return nil, ex.errAt(instr.Loc, function, "li expects <reg>, <imm64>")
	}
	dst := instr.Operands[0].Reg
	v := uint64(instr.Operands[1].Int)
	signed := instr.Mnemonic == "li"

	const lowBits = 28
	const lowMask = 1<<lowBits - 1
	top := int64(v >> lowBits)
	low := int64(v & lowMask)

	// The low part is a non-negative bit pattern below 1<<28, so it is
	// always added with ADDIU: ADDI would sign-extend a 24-bit immediate
	// whose bit 23 is set. Only the upper load depends on li vs liu.
	upperOp := isa.LUIU
	addOp := isa.ADDIU
	if signed {
		upperOp = isa.LUI
	}

	var words []Word
	haveTop := top != 0
	if haveTop {
		word, err := ex.wordE(instr.Loc, upperOp, dst, top)
		if err != nil {
			return nil, ex.errAt(instr.Loc, function, "li: %v", err)
		}
		words = append(words, word)
	}

	in := isa.Void
	if haveTop {
		in = dst
	}

	if fits24(low) {
		word, err := ex.wordR(instr.Loc, addOp, dst, in, low)
		if err != nil {
			return nil, ex.errAt(instr.Loc, function, "li: %v", err)
		}
		words = append(words, word)
		return words, nil
	}

	// Low part needs the divisor/MUL sequence.
	quotient := low / liDivisor
	remainder := low % liDivisor

	// The scratch-register arithmetic that reconstructs the low part is
	// plain unsigned bit-pattern math regardless of whether li or liu was
	// written, like the single ADDIU of the short path above.
	w1, _ := ex.wordR(instr.Loc, isa.ADDIU, scratch1, isa.Void, quotient)
	w1.Op = isa.WithGreedy(w1.Op, true)
	words = append(words, w1)

	w2, _ := ex.wordR(instr.Loc, isa.ADDIU, scratch2, isa.Void, liDivisor)
	w2.Op = isa.WithGreedy(w2.Op, true)
	words = append(words, w2)

	w3, err := ex.wordT(instr.Loc, isa.MUL, scratch1, scratch1, scratch2)
	if err != nil {
		return nil, ex.errAt(instr.Loc, function, "li: %v", err)
	}
	w3.Op = isa.WithGreedy(w3.Op, true)
	words = append(words, w3)

	w4, _ := ex.wordR(instr.Loc, isa.ADDIU, scratch2, isa.Void, remainder)
	w4.Op = isa.WithGreedy(w4.Op, true)
	words = append(words, w4)

	w5, err := ex.wordT(instr.Loc, isa.ADD, scratch1, scratch1, scratch2)
	if err != nil {
		return nil, ex.errAt(instr.Loc, function, "li: %v", err)
	}
	w5.Op = isa.WithGreedy(w5.Op, true)
	words = append(words, w5)

	w6, err := ex.wordT(instr.Loc, isa.ADD, dst, in, scratch1)
	if err != nil {
		return nil, ex.errAt(instr.Loc, function, "li: %v", err)
	}
	words = append(words, w6)
	return words, nil
}

func fits24(v int64) bool {
	return v >= -(1<<23) && v <= 1<<24-1
}

func (ex *Expander) wordE(loc Location, op isa.Opcode, out isa.RegisterAccess, imm int64) (Word, error) {
	if _, err := isa.EncodeE(op, out, imm); err != nil {
		return Word{}, err
	}
	return Word{Op: op, Out: out, Immediate: imm, Loc: loc}, nil
}

func (ex *Expander) wordR(loc Location, op isa.Opcode, out, in isa.RegisterAccess, imm int64) (Word, error) {
	if _, err := isa.EncodeR(op, out, in, imm); err != nil {
		return Word{}, err
	}
	return Word{Op: op, Out: out, In: in, Immediate: imm, Loc: loc}, nil
}

func (ex *Expander) wordT(loc Location, op isa.Opcode, out, lhs, rhs isa.RegisterAccess) (Word, error) {
	if _, err := isa.EncodeT(op, out, lhs, rhs); err != nil {
		return Word{}, err
	}
	return Word{Op: op, Out: out, Lhs: lhs, Rhs: rhs, Loc: loc}, nil
}

// expandCallOrAtom lowers `call <label>` / `call <reg>, <label>` and the
// `atom` equivalent to a SYMHI/SYMLO pair (always emitted, regardless of
// the value, per DESIGN.md Open Question 4) followed by the real
// instruction.
func (ex *Expander) expandCallOrAtom(function string, instr *InstrNode, op isa.Opcode, kind RelocKind) ([]Word, error) {
	var out isa.RegisterAccess
	var labelOperand Operand
	switch len(instr.Operands) {
	case 1:
		out = isa.Void
		labelOperand = instr.Operands[0]
	case 2:
		if instr.Operands[0].Kind != OperandRegister {
			return nil, ex.errAt(instr.Loc, function, "%s: first operand must be a register", instr.Mnemonic)
		}
		out = instr.Operands[0].Reg
		labelOperand = instr.Operands[1]
	default:
		return nil, ex.errAt(instr.Loc, function, "%s expects <label> or <reg>, <label>", instr.Mnemonic)
	}
	if labelOperand.Kind != OperandLabel {
		return nil, ex.errAt(instr.Loc, function, "%s: expected a label reference", instr.Mnemonic)
	}
	idx, ok := ex.Symbols.Lookup(labelOperand.Label)
	if !ok {
		return nil, ex.errAt(labelOperand.Loc, function, "undefined symbol %q", labelOperand.Label)
	}

	hi := int64(uint32(uint64(idx) >> 32))
	lo := int64(uint32(uint64(idx)))

	hiWord, err := ex.wordF(instr.Loc, isa.WithGreedy(isa.SYMHI, true), scratch3, hi)
	if err != nil {
		return nil, ex.errAt(instr.Loc, function, "%s: %v", instr.Mnemonic, err)
	}
	hiWord.IsCallSite = true
	hiWord.Symbol = idx
	hiWord.RelocKind = kind

	loWord, err := ex.wordF(instr.Loc, isa.SYMLO, scratch3, lo)
	if err != nil {
		return nil, ex.errAt(instr.Loc, function, "%s: %v", instr.Mnemonic, err)
	}

	callWord, err := ex.wordD(instr.Loc, op, out, scratch3)
	if err != nil {
		return nil, ex.errAt(instr.Loc, function, "%s: %v", instr.Mnemonic, err)
	}
	return []Word{hiWord, loWord, callWord}, nil
}

// expandString lowers `string <reg>, <label>` to a SYMHI/SYMLO pair that
// materializes the label's object-symbol index directly into <reg>,
// followed by the STRING instruction proper -- which reuses that same
// register as both the index it reads and the boxed value it writes back.
// Unlike call/atom, there is no separate scratch register here: STRING's
// S-format has room for only one operand, so the index has to land where
// the result will overwrite it.
func (ex *Expander) expandString(function string, instr *InstrNode) ([]Word, error) {
	if len(instr.Operands) != 2 || instr.Operands[0].Kind != OperandRegister || instr.Operands[1].Kind != OperandLabel {
		return nil, ex.errAt(instr.Loc, function, "string expects <reg>, <label>")
	}
	dst := instr.Operands[0].Reg
	labelOperand := instr.Operands[1]

	idx, ok := ex.Symbols.Lookup(labelOperand.Label)
	if !ok {
		return nil, ex.errAt(labelOperand.Loc, function, "undefined symbol %q", labelOperand.Label)
	}

	hi := int64(uint32(uint64(idx) >> 32))
	lo := int64(uint32(uint64(idx)))

	hiWord, err := ex.wordF(instr.Loc, isa.WithGreedy(isa.SYMHI, true), dst, hi)
	if err != nil {
		return nil, ex.errAt(instr.Loc, function, "string: %v", err)
	}
	hiWord.IsCallSite = true
	hiWord.Symbol = idx
	hiWord.RelocKind = RelocObject

	loWord, err := ex.wordF(instr.Loc, isa.SYMLO, dst, lo)
	if err != nil {
		return nil, ex.errAt(instr.Loc, function, "string: %v", err)
	}

	strWord, err := ex.wordS(instr.Loc, isa.STRING, dst)
	if err != nil {
		return nil, ex.errAt(instr.Loc, function, "string: %v", err)
	}
	return []Word{hiWord, loWord, strWord}, nil
}

func (ex *Expander) wordS(loc Location, op isa.Opcode, out isa.RegisterAccess) (Word, error) {
	if _, err := isa.EncodeS(op, out); err != nil {
		return Word{}, err
	}
	return Word{Op: op, Out: out, Loc: loc}, nil
}

func (ex *Expander) wordF(loc Location, op isa.Opcode, out isa.RegisterAccess, imm int64) (Word, error) {
	if _, err := isa.EncodeF(op, out, imm); err != nil {
		return Word{}, err
	}
	return Word{Op: op, Out: out, Immediate: imm, Loc: loc}, nil
}

func (ex *Expander) wordD(loc Location, op isa.Opcode, out, in isa.RegisterAccess) (Word, error) {
	if _, err := isa.EncodeD(op, out, in); err != nil {
		return Word{}, err
	}
	return Word{Op: op, Out: out, In: in, Loc: loc}, nil
}

// plainOpcodes maps every non-pseudo mnemonic to its opcode and format
// arity, so expandPlain can validate operand counts before encoding.
var plainOpcodes = map[string]isa.Opcode{
	"nop": isa.NOP, "halt": isa.HALT, "ebreak": isa.EBREAK, "return": isa.RETURN,

	"delete": isa.DELETE, "frame": isa.FRAME, "print": isa.PRINT, "echo": isa.ECHO,

	"move": isa.MOVE, "copy": isa.COPY, "ptr": isa.PTR, "bitnot": isa.BITNOT, "not": isa.NOT,

	"add": isa.ADD, "sub": isa.SUB, "mul": isa.MUL, "div": isa.DIV, "mod": isa.MOD,
	"and": isa.BITAND, "or": isa.BITOR, "xor": isa.BITXOR, "shl": isa.SHL, "shr": isa.SHR,
	"eq": isa.EQ, "lt": isa.LT, "lte": isa.LTE, "gt": isa.GT, "gte": isa.GTE, "aa": isa.AA,

	"addi": isa.ADDI, "addiu": isa.ADDIU, "subi": isa.SUBI, "subiu": isa.SUBIU,
	"muli": isa.MULI, "muliu": isa.MULIU, "divi": isa.DIVI, "diviu": isa.DIVIU,

	"float": isa.FLOAT, "double": isa.DOUBLE, "integer": isa.INTEGER,
}

func (ex *Expander) expandPlain(function string, instr *InstrNode) ([]Word, error) {
	op, ok := plainOpcodes[instr.Mnemonic]
	if !ok {
		return nil, ex.errAt(instr.Loc, function, "unknown mnemonic %q", instr.Mnemonic)
	}
	loc := instr.Loc
	ops := instr.Operands
	reg := func(i int) (isa.RegisterAccess, error) {
		if i >= len(ops) || ops[i].Kind != OperandRegister {
			return isa.RegisterAccess{}, fmt.Errorf("%s: expected a register operand at position %d", instr.Mnemonic, i+1)
		}
		return ops[i].Reg, nil
	}
	imm := func(i int) (int64, error) {
		if i >= len(ops) || (ops[i].Kind != OperandImmediate && ops[i].Kind != OperandFloat) {
			return 0, fmt.Errorf("%s: expected an immediate operand at position %d", instr.Mnemonic, i+1)
		}
		if ops[i].Kind == OperandFloat {
			return int64(ops[i].Float), nil
		}
		return ops[i].Int, nil
	}

	switch isa.FormatOf(op) {
	case isa.FormatN:
		if len(ops) != 0 {
			return nil, ex.errAt(loc, function, "%s takes no operands", instr.Mnemonic)
		}
		return []Word{{Op: op, Loc: loc}}, nil
	case isa.FormatS:
		if len(ops) != 1 {
			return nil, ex.errAt(loc, function, "%s expects one register operand", instr.Mnemonic)
		}
		r, err := reg(0)
		if err != nil {
			return nil, ex.errAt(loc, function, "%v", err)
		}
		return []Word{{Op: op, Out: r, Loc: loc}}, nil
	case isa.FormatD:
		if len(ops) != 2 {
			return nil, ex.errAt(loc, function, "%s expects two register operands", instr.Mnemonic)
		}
		o, err := reg(0)
		if err != nil {
			return nil, ex.errAt(loc, function, "%v", err)
		}
		i, err := reg(1)
		if err != nil {
			return nil, ex.errAt(loc, function, "%v", err)
		}
		return []Word{{Op: op, Out: o, In: i, Loc: loc}}, nil
	case isa.FormatT:
		if len(ops) != 3 {
			return nil, ex.errAt(loc, function, "%s expects three register operands", instr.Mnemonic)
		}
		o, err := reg(0)
		if err != nil {
			return nil, ex.errAt(loc, function, "%v", err)
		}
		l, err := reg(1)
		if err != nil {
			return nil, ex.errAt(loc, function, "%v", err)
		}
		r, err := reg(2)
		if err != nil {
			return nil, ex.errAt(loc, function, "%v", err)
		}
		return []Word{{Op: op, Out: o, Lhs: l, Rhs: r, Loc: loc}}, nil
	case isa.FormatR:
		if len(ops) != 3 {
			return nil, ex.errAt(loc, function, "%s expects <reg>, <reg>, <imm24>", instr.Mnemonic)
		}
		o, err := reg(0)
		if err != nil {
			return nil, ex.errAt(loc, function, "%v", err)
		}
		i, err := reg(1)
		if err != nil {
			return nil, ex.errAt(loc, function, "%v", err)
		}
		n, err := imm(2)
		if err != nil {
			return nil, ex.errAt(loc, function, "%v", err)
		}
		w, err := ex.wordR(loc, op, o, i, n)
		if err != nil {
			return nil, ex.errAt(loc, function, "%v", err)
		}
		return []Word{w}, nil
	case isa.FormatE:
		if len(ops) != 2 {
			return nil, ex.errAt(loc, function, "%s expects <reg>, <imm36>", instr.Mnemonic)
		}
		o, err := reg(0)
		if err != nil {
			return nil, ex.errAt(loc, function, "%v", err)
		}
		n, err := imm(1)
		if err != nil {
			return nil, ex.errAt(loc, function, "%v", err)
		}
		w, err := ex.wordE(loc, op, o, n)
		if err != nil {
			return nil, ex.errAt(loc, function, "%v", err)
		}
		return []Word{w}, nil
	case isa.FormatF:
		if len(ops) != 2 {
			return nil, ex.errAt(loc, function, "%s expects <reg>, <imm32>", instr.Mnemonic)
		}
		o, err := reg(0)
		if err != nil {
			return nil, ex.errAt(loc, function, "%v", err)
		}
		n, err := imm(1)
		if err != nil {
			return nil, ex.errAt(loc, function, "%v", err)
		}
		w, err := ex.wordF(loc, op, o, n)
		if err != nil {
			return nil, ex.errAt(loc, function, "%v", err)
		}
		return []Word{w}, nil
	default:
		return nil, ex.errAt(loc, function, "internal: opcode %v has no format", op)
	}
}
