// Package diag formats the location-tagged diagnostics shared by the
// lexer, parser, and pseudo-instruction expander: one concrete error type
// carrying file/line/column/offset and, when the error occurred inside a
// function body, that function's name.
package diag

import "fmt"

// Located is an error tied to a point in source text, optionally inside a
// named function.  It is the assembler-side counterpart of vmexec.Trap.
type Located struct {
	File     string
	Line     int
	Column   int
	Offset   int
	Function string // empty outside a function body
	Err      error
}

func (l *Located) Error() string {
	if l.Function != "" {
		return fmt.Sprintf("%s:%d:%d: in %s: %v", l.File, l.Line, l.Column, l.Function, l.Err)
	}
	return fmt.Sprintf("%s:%d:%d: %v", l.File, l.Line, l.Column, l.Err)
}

func (l *Located) Unwrap() error {
	return l.Err
}

// Locatable is satisfied by anything carrying a source location, such as
// asm.Token or asm.Location itself.
type Locatable interface {
	At() (file string, line, column, offset int)
}

// New builds a Located error from anything satisfying Locatable.
func New(loc Locatable, function string, err error) *Located {
	file, line, column, offset := loc.At()
	return &Located{File: file, Line: line, Column: column, Offset: offset, Function: function, Err: err}
}
