package asm

import "fmt"

// Location pinpoints a token in the source file: line and column are
// 1-based, offset is the 0-based byte offset from the start of the file.
type Location struct {
	File   string
	Line   int
	Column int
	Offset int
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// At implements diag.Locatable.
func (l Location) At() (file string, line, column, offset int) {
	return l.File, l.Line, l.Column, l.Offset
}

// Kind discriminates a Token's syntactic category.
type Kind int

const (
	KindEOF Kind = iota
	KindDirective      // .function:  .end  .label:
	KindAttribute      // [[entry_point]]  [[extern]]
	KindMnemonic       // not produced by Lexer: mnemonics lex as KindIdent
	KindRegister       // %3  %3.arguments  *3  void
	KindIdent          // bare name: label or function reference
	KindInt            // 0xdeadbeef, 42, -7
	KindFloat          // 3.14
	KindString         // "literal text"
	KindAtom           // 'atom-name
	KindStar           // the `*` repetition operator in string labels
	KindComma
	KindColon
	KindNewline // statement terminator
)

func (k Kind) String() string {
	switch k {
	case KindEOF:
		return "EOF"
	case KindDirective:
		return "directive"
	case KindAttribute:
		return "attribute"
	case KindMnemonic:
		return "mnemonic"
	case KindRegister:
		return "register"
	case KindIdent:
		return "identifier"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindAtom:
		return "atom"
	case KindStar:
		return "*"
	case KindComma:
		return ","
	case KindColon:
		return ":"
	case KindNewline:
		return "newline"
	default:
		return "unknown"
	}
}

// Token is one lexical unit together with its source location.  Text is
// the raw source text for idents/mnemonics/directives, the decoded value
// for strings, and the literal digits for numbers.
type Token struct {
	Kind Kind
	Text string
	Loc  Location
}
