package asm

import "testing"

func TestLexerTokenizesBasicProgram(t *testing.T) {
	src := "[[entry_point]]\n.function: main\n  return\n.end\n"
	toks, err := NewLexer("t.via", src).Tokens()
	if err != nil {
		t.Fatalf("Tokens: %v", err)
	}
	var kinds []Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	want := []Kind{
		KindAttribute, KindNewline,
		KindDirective, KindIdent, KindNewline,
		KindIdent, KindNewline,
		KindDirective, KindNewline,
		KindEOF,
	}
	if len(kinds) != len(want) {
		t.Fatalf("token count = %d, want %d (%v)", len(kinds), len(want), kinds)
	}
	for i, k := range want {
		if kinds[i] != k {
			t.Errorf("token %d: kind = %v, want %v", i, kinds[i], k)
		}
	}
}

func TestLexerRegisterForms(t *testing.T) {
	cases := []string{"%3", "*3", "%3.arguments", "*3.static", "void"}
	for _, c := range cases {
		toks, err := NewLexer("t.via", c).Tokens()
		if err != nil {
			t.Fatalf("%s: Tokens: %v", c, err)
		}
		if len(toks) != 2 || toks[0].Kind != KindRegister {
			t.Fatalf("%s: got %v", c, toks)
		}
		if toks[0].Text != c {
			t.Errorf("%s: text = %q", c, toks[0].Text)
		}
	}
}

func TestLexerString(t *testing.T) {
	toks, err := NewLexer("t.via", `"hi\n"`).Tokens()
	if err != nil {
		t.Fatalf("Tokens: %v", err)
	}
	if toks[0].Kind != KindString || toks[0].Text != "hi\n" {
		t.Fatalf("got %+v", toks[0])
	}
}

func TestLexerStarVsRepetitionOperator(t *testing.T) {
	toks, err := NewLexer("t.via", `"hi" * 3`).Tokens()
	if err != nil {
		t.Fatalf("Tokens: %v", err)
	}
	if toks[0].Kind != KindString || toks[1].Kind != KindStar || toks[2].Kind != KindInt {
		t.Fatalf("got %+v", toks)
	}
}

func TestLexerComment(t *testing.T) {
	toks, err := NewLexer("t.via", "nop ; a comment\nhalt\n").Tokens()
	if err != nil {
		t.Fatalf("Tokens: %v", err)
	}
	var idents []string
	for _, tok := range toks {
		if tok.Kind == KindIdent {
			idents = append(idents, tok.Text)
		}
	}
	if len(idents) != 2 || idents[0] != "nop" || idents[1] != "halt" {
		t.Fatalf("got %v", idents)
	}
}

func TestLexerIllegalCharacter(t *testing.T) {
	_, err := NewLexer("t.via", "nop #\n").Tokens()
	if err == nil {
		t.Fatal("expected error for illegal character")
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	_, err := NewLexer("t.via", `"unterminated`).Tokens()
	if err == nil {
		t.Fatal("expected error for unterminated string")
	}
}
