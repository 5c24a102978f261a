package asm

import "viua/isa"

// EmittedFunction records where one function's expanded body landed in the
// concatenated .text image, for symbol patch-up (spec §4.5).
type EmittedFunction struct {
	Name        string
	SymbolIndex int
	Offset      int // byte offset of the first instruction, (1+accumulated)*8
	Size        int // byte length of the function body
	Words       []Word
}

// Emitter concatenates expanded function bodies into one .text image. The
// first word is always a reserved HALT (spec §4.5), so real code starts at
// byte offset 8; this mirrors as/as.go's p.a running address but for a
// whole-program image instead of one line at a time.
type Emitter struct {
	Text      []byte
	Functions []EmittedFunction
}

// NewEmitter returns an Emitter with the reserved leading HALT already
// written.
func NewEmitter() *Emitter {
	e := &Emitter{}
	e.Text = appendWord(e.Text, isa.EncodeN(isa.HALT))
	return e
}

func appendWord(buf []byte, w uint64) []byte {
	return append(buf,
		byte(w), byte(w>>8), byte(w>>16), byte(w>>24),
		byte(w>>32), byte(w>>40), byte(w>>48), byte(w>>56),
	)
}

// EmitFunction encodes every Word of an expanded function body and appends
// it to .text, recording the function's offset/size for symbol patch-up.
// extern functions contribute no bytes: their symbol keeps st_value==0,
// st_size==0 per spec §4.5.
func (e *Emitter) EmitFunction(name string, symbolIndex int, extern bool, words []Word) (EmittedFunction, error) {
	ef := EmittedFunction{Name: name, SymbolIndex: symbolIndex}
	if extern {
		return ef, nil
	}
	ef.Offset = len(e.Text)
	for i := range words {
		w := &words[i]
		word, err := encodeWord(*w)
		if err != nil {
			return EmittedFunction{}, err
		}
		e.Text = appendWord(e.Text, word)
	}
	ef.Size = len(e.Text) - ef.Offset
	ef.Words = words
	e.Functions = append(e.Functions, ef)
	return ef, nil
}

func encodeWord(w Word) (uint64, error) {
	switch isa.FormatOf(w.Op) {
	case isa.FormatN:
		return isa.EncodeN(w.Op), nil
	case isa.FormatS:
		return isa.EncodeS(w.Op, w.Out)
	case isa.FormatD:
		return isa.EncodeD(w.Op, w.Out, w.In)
	case isa.FormatT:
		return isa.EncodeT(w.Op, w.Out, w.Lhs, w.Rhs)
	case isa.FormatE:
		return isa.EncodeE(w.Op, w.Out, w.Immediate)
	case isa.FormatR:
		return isa.EncodeR(w.Op, w.Out, w.In, w.Immediate)
	case isa.FormatF:
		return isa.EncodeF(w.Op, w.Out, w.Immediate)
	default:
		return 0, &badFormatError{w.Op}
	}
}

type badFormatError struct{ op isa.Opcode }

func (e *badFormatError) Error() string {
	return "asm: internal: opcode has no known format: " + isa.Mnemonic(e.op)
}
