package asm

import (
	"fmt"
	"strconv"
	"strings"

	"viua/internal/diag"
	"viua/isa"
)

// Parser groups a token stream into the function/label AST described in
// spec §4.3. It is a straightforward recursive-descent reader over the
// flat Lexer output, in the same spirit as as/as.go's doLine dispatch
// (switch on the leading token's text) but operating on a pre-lexed
// stream instead of re-splitting each line with strings.Fields.
type Parser struct {
	toks []Token
	pos  int
	file string
}

// NewParser wraps a token stream produced by Lexer.Tokens.
func NewParser(file string, toks []Token) *Parser {
	return &Parser{toks: toks, file: file}
}

func (p *Parser) cur() Token {
	return p.toks[p.pos]
}

func (p *Parser) next() Token {
	t := p.toks[p.pos]
	if t.Kind != KindEOF {
		p.pos++
	}
	return t
}

func (p *Parser) errAt(loc Location, format string, args ...any) error {
	return diag.New(loc, "", fmt.Errorf(format, args...))
}

// skipNewlines consumes any run of KindNewline tokens, treating blank
// statement separators as insignificant between two real statements.
func (p *Parser) skipNewlines() {
	for p.cur().Kind == KindNewline {
		p.pos++
	}
}

// Parse consumes the whole token stream and returns the resulting
// Program, or the first error encountered.
func (p *Parser) Parse() (*Program, error) {
	prog := &Program{}
	var pending []string // attribute tags collected ahead of the next directive

	for {
		p.skipNewlines()
		tok := p.cur()
		if tok.Kind == KindEOF {
			break
		}
		switch tok.Kind {
		case KindAttribute:
			pending = append(pending, tok.Text)
			p.next()
			continue
		case KindDirective:
			switch tok.Text {
			case ".function:":
				fn, err := p.parseFunction(pending)
				pending = nil
				if err != nil {
					return nil, err
				}
				if fn.EntryPoint {
					if prog.EntryPoint != "" {
						return nil, p.errAt(tok.Loc, "duplicate [[entry_point]]: %s and %s both tagged", prog.EntryPoint, fn.Name)
					}
					prog.EntryPoint = fn.Name
				}
				prog.Functions = append(prog.Functions, fn)
				continue
			case ".label:":
				lbl, err := p.parseLabel(pending)
				pending = nil
				if err != nil {
					return nil, err
				}
				prog.Labels = append(prog.Labels, lbl)
				continue
			default:
				return nil, p.errAt(tok.Loc, "unexpected directive %q at top level", tok.Text)
			}
		default:
			return nil, p.errAt(tok.Loc, "unexpected %s %q at top level", tok.Kind, tok.Text)
		}
	}
	return prog, nil
}

func hasAttr(attrs []string, name string) bool {
	for _, a := range attrs {
		if a == name {
			return true
		}
	}
	return false
}

func (p *Parser) parseFunction(attrs []string) (*FunctionNode, error) {
	start := p.cur().Loc
	p.next() // '.function:'
	nameTok := p.next()
	if nameTok.Kind != KindIdent {
		return nil, p.errAt(nameTok.Loc, "expected function name, got %s %q", nameTok.Kind, nameTok.Text)
	}
	fn := &FunctionNode{
		Name:       nameTok.Text,
		Extern:     hasAttr(attrs, "extern"),
		EntryPoint: hasAttr(attrs, "entry_point"),
		Loc:        start,
	}
	p.skipNewlines()

	for {
		tok := p.cur()
		if tok.Kind == KindDirective && tok.Text == ".end" {
			p.next()
			return fn, nil
		}
		if tok.Kind == KindEOF {
			return nil, p.errAt(tok.Loc, "unexpected end of file: unterminated .function: %s", fn.Name)
		}
		instr, err := p.parseInstr(fn.Name)
		if err != nil {
			return nil, err
		}
		fn.Instrs = append(fn.Instrs, instr)
		p.skipNewlines()
	}
}

func (p *Parser) parseInstr(function string) (*InstrNode, error) {
	mn := p.next()
	if mn.Kind != KindIdent {
		return nil, p.errAt(mn.Loc, "expected mnemonic, got %s %q", mn.Kind, mn.Text)
	}
	in := &InstrNode{Mnemonic: strings.ToLower(mn.Text), Loc: mn.Loc}

	if p.atStatementEnd() {
		return in, nil
	}
	for {
		op, err := p.parseOperand(function)
		if err != nil {
			return nil, err
		}
		in.Operands = append(in.Operands, op)
		if p.cur().Kind == KindComma {
			p.next()
			continue
		}
		break
	}
	if !p.atStatementEnd() {
		tok := p.cur()
		return nil, p.errAt(tok.Loc, "expected end of instruction, got %s %q", tok.Kind, tok.Text)
	}
	return in, nil
}

func (p *Parser) atStatementEnd() bool {
	k := p.cur().Kind
	return k == KindNewline || k == KindEOF
}

func (p *Parser) parseOperand(function string) (Operand, error) {
	tok := p.next()
	switch tok.Kind {
	case KindRegister:
		ra, err := parseRegisterText(tok.Text)
		if err != nil {
			return Operand{}, p.errAt(tok.Loc, "%v", err)
		}
		return Operand{Kind: OperandRegister, Reg: ra, Loc: tok.Loc}, nil
	case KindInt:
		v, err := parseIntText(tok.Text)
		if err != nil {
			return Operand{}, p.errAt(tok.Loc, "malformed integer %q: %v", tok.Text, err)
		}
		return Operand{Kind: OperandImmediate, Int: v, Loc: tok.Loc}, nil
	case KindFloat:
		v, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return Operand{}, p.errAt(tok.Loc, "malformed float %q: %v", tok.Text, err)
		}
		return Operand{Kind: OperandFloat, Float: v, Loc: tok.Loc}, nil
	case KindIdent:
		return Operand{Kind: OperandLabel, Label: tok.Text, Loc: tok.Loc}, nil
	default:
		return Operand{}, p.errAt(tok.Loc, "expected operand, got %s %q", tok.Kind, tok.Text)
	}
}

func parseIntText(text string) (int64, error) {
	neg := false
	if strings.HasPrefix(text, "-") {
		neg = true
		text = text[1:]
	}
	v, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		return -int64(v), nil
	}
	return int64(v), nil
}

// parseRegisterText decodes a register-access literal: "void", "%3",
// "*3", "%3.arguments", "*3.static", etc.
func parseRegisterText(text string) (isa.RegisterAccess, error) {
	if text == "void" {
		return isa.Void, nil
	}
	if len(text) == 0 {
		return isa.RegisterAccess{}, fmt.Errorf("empty register literal")
	}
	indirect := text[0] == '*'
	if !indirect && text[0] != '%' {
		return isa.RegisterAccess{}, fmt.Errorf("malformed register literal %q", text)
	}
	rest := text[1:]
	set := isa.LOCAL
	if dot := strings.IndexByte(rest, '.'); dot >= 0 {
		setName := rest[dot+1:]
		rest = rest[:dot]
		switch setName {
		case "local":
			set = isa.LOCAL
		case "arguments":
			set = isa.ARGUMENT
		case "static":
			set = isa.STATIC
		default:
			return isa.RegisterAccess{}, fmt.Errorf("unknown register set %q", setName)
		}
	}
	idx, err := strconv.ParseUint(rest, 10, 8)
	if err != nil {
		return isa.RegisterAccess{}, fmt.Errorf("malformed register index in %q: %v", text, err)
	}
	return isa.RegisterAccess{Set: set, Indirect: indirect, Index: uint8(idx)}, nil
}

func (p *Parser) parseLabel(attrs []string) (*LabelNode, error) {
	start := p.cur().Loc
	p.next() // '.label:'
	nameTok := p.next()
	if nameTok.Kind != KindIdent {
		return nil, p.errAt(nameTok.Loc, "expected label name, got %s %q", nameTok.Kind, nameTok.Text)
	}
	lbl := &LabelNode{Name: nameTok.Text, Extern: hasAttr(attrs, "extern"), Repeat: 1, Loc: start}

	kindTok := p.next()
	switch kindTok.Text {
	case "string":
		lbl.Type = LabelString
		valTok := p.next()
		if valTok.Kind != KindString {
			return nil, p.errAt(valTok.Loc, "expected string literal after 'string', got %s %q", valTok.Kind, valTok.Text)
		}
		lbl.Literal = valTok.Text
	case "atom":
		lbl.Type = LabelAtom
		valTok := p.next()
		if valTok.Kind != KindAtom && valTok.Kind != KindIdent {
			return nil, p.errAt(valTok.Loc, "expected atom literal after 'atom', got %s %q", valTok.Kind, valTok.Text)
		}
		lbl.Literal = valTok.Text
	default:
		return nil, p.errAt(kindTok.Loc, "expected 'string' or 'atom', got %q", kindTok.Text)
	}

	if p.cur().Kind == KindStar {
		p.next()
		countTok := p.next()
		if countTok.Kind != KindInt {
			return nil, p.errAt(countTok.Loc, "expected integer repetition count after '*', got %s %q", countTok.Kind, countTok.Text)
		}
		n, err := parseIntText(countTok.Text)
		if err != nil || n < 0 {
			return nil, p.errAt(countTok.Loc, "invalid repetition count %q", countTok.Text)
		}
		lbl.Repeat = int(n)
	} else if !p.atStatementEnd() {
		tok := p.cur()
		return nil, p.errAt(tok.Loc, "unexpected %s %q after label body; only '* <count>' may follow", tok.Kind, tok.Text)
	}
	return lbl, nil
}
