package asm

import "testing"

func parse(t *testing.T, src string) *Program {
	t.Helper()
	toks, err := NewLexer("t.via", src).Tokens()
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	prog, err := NewParser("t.via", toks).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return prog
}

func TestParserFunctionBody(t *testing.T) {
	prog := parse(t, "[[entry_point]]\n.function: main\n  li %1, 42\n  return\n.end\n")
	if len(prog.Functions) != 1 {
		t.Fatalf("got %d functions", len(prog.Functions))
	}
	fn := prog.Functions[0]
	if fn.Name != "main" || !fn.EntryPoint {
		t.Fatalf("fn = %+v", fn)
	}
	if prog.EntryPoint != "main" {
		t.Fatalf("EntryPoint = %q", prog.EntryPoint)
	}
	if len(fn.Instrs) != 2 {
		t.Fatalf("got %d instrs", len(fn.Instrs))
	}
	if fn.Instrs[0].Mnemonic != "li" || len(fn.Instrs[0].Operands) != 2 {
		t.Fatalf("instr 0 = %+v", fn.Instrs[0])
	}
}

func TestParserDuplicateEntryPointIsError(t *testing.T) {
	src := "[[entry_point]]\n.function: a\n  return\n.end\n" +
		"[[entry_point]]\n.function: b\n  return\n.end\n"
	toks, err := NewLexer("t.via", src).Tokens()
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	_, err = NewParser("t.via", toks).Parse()
	if err == nil {
		t.Fatal("expected duplicate entry point error")
	}
}

func TestParserLabelStringWithRepeat(t *testing.T) {
	prog := parse(t, `.label: greeting string "hi" * 3`+"\n")
	if len(prog.Labels) != 1 {
		t.Fatalf("got %d labels", len(prog.Labels))
	}
	lbl := prog.Labels[0]
	if lbl.Name != "greeting" || lbl.Type != LabelString || lbl.Literal != "hi" || lbl.Repeat != 3 {
		t.Fatalf("lbl = %+v", lbl)
	}
}

func TestParserLabelAtomNoRepeat(t *testing.T) {
	prog := parse(t, ".label: k atom foo\n")
	lbl := prog.Labels[0]
	if lbl.Type != LabelAtom || lbl.Literal != "foo" || lbl.Repeat != 1 {
		t.Fatalf("lbl = %+v", lbl)
	}
}

func TestParserExternFunction(t *testing.T) {
	prog := parse(t, "[[extern]]\n.function: lib_fn\n.end\n")
	if !prog.Functions[0].Extern {
		t.Fatalf("fn = %+v", prog.Functions[0])
	}
}

func TestParserRegisterOperands(t *testing.T) {
	prog := parse(t, ".function: f\n  add %1, %2.arguments, *3\n.end\n")
	instr := prog.Functions[0].Instrs[0]
	if len(instr.Operands) != 3 {
		t.Fatalf("operands = %+v", instr.Operands)
	}
	if instr.Operands[1].Reg.Set.String() != "arguments" {
		t.Fatalf("operand 1 = %+v", instr.Operands[1])
	}
	if !instr.Operands[2].Reg.Indirect {
		t.Fatalf("operand 2 not indirect: %+v", instr.Operands[2])
	}
}

func TestParserUnexpectedTokenAtTopLevel(t *testing.T) {
	toks, err := NewLexer("t.via", "garbage\n").Tokens()
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	_, err = NewParser("t.via", toks).Parse()
	if err == nil {
		t.Fatal("expected parse error")
	}
}
