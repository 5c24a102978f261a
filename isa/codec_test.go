package isa

import "testing"

func TestFormatTagExtraction(t *testing.T) {
	ops := []Opcode{
		NOP, HALT, EBREAK, RETURN,
		DELETE, FRAME, STRING, PRINT, ECHO,
		MOVE, COPY, PTR, BITNOT, NOT, CALL,
		ADD, SUB, MUL, DIV, MOD, BITAND, BITOR, BITXOR, SHL, SHR, EQ, LT, LTE, GT, GTE, AA,
		LUI, LUIU,
		ADDI, ADDIU, SUBI, SUBIU, MULI, MULIU, DIVI, DIVIU,
		FLOAT, DOUBLE, INTEGER,
	}
	seen := map[Format]map[Opcode]bool{}
	for _, op := range ops {
		f := FormatOf(op)
		if seen[f] == nil {
			seen[f] = map[Opcode]bool{}
		}
		if seen[f][op] {
			t.Fatalf("opcode %v duplicated within format %v", op, f)
		}
		seen[f][op] = true
		if got := FormatOf(WithGreedy(op, true)); got != f {
			t.Errorf("GREEDY flag changed format of %v: got %v, want %v", op, got, f)
		}
	}
}

func TestCodecRoundTripN(t *testing.T) {
	for _, op := range []Opcode{NOP, HALT, EBREAK, RETURN} {
		word := EncodeN(op)
		in, err := Decode(word)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if in.Opcode != op {
			t.Errorf("N round-trip: got opcode %v, want %v", in.Opcode, op)
		}
	}
}

func TestCodecRoundTripS(t *testing.T) {
	ras := []RegisterAccess{
		{Set: LOCAL, Index: 0},
		{Set: LOCAL, Index: 31, Indirect: true},
		{Set: ARGUMENT, Index: 7},
		{Set: STATIC, Index: 1, Indirect: true},
		Void,
	}
	for _, ra := range ras {
		word, err := EncodeS(DELETE, ra)
		if err != nil {
			t.Fatalf("EncodeS(%v): %v", ra, err)
		}
		in, err := Decode(word)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if in.Operand != ra {
			t.Errorf("S round-trip: got %v, want %v", in.Operand, ra)
		}
	}
}

func TestCodecRoundTripD(t *testing.T) {
	out := RegisterAccess{Set: LOCAL, Index: 3}
	in := RegisterAccess{Set: ARGUMENT, Index: 5, Indirect: true}
	word, err := EncodeD(MOVE, out, in)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(word)
	if err != nil {
		t.Fatal(err)
	}
	if got.Out != out || got.In != in {
		t.Errorf("D round-trip: got out=%v in=%v, want out=%v in=%v", got.Out, got.In, out, in)
	}
}

func TestCodecRoundTripT(t *testing.T) {
	out := RegisterAccess{Set: LOCAL, Index: 1}
	lhs := RegisterAccess{Set: LOCAL, Index: 2}
	rhs := RegisterAccess{Set: LOCAL, Index: 3}
	word, err := EncodeT(ADD, out, lhs, rhs)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(word)
	if err != nil {
		t.Fatal(err)
	}
	if got.Out != out || got.Lhs != lhs || got.Rhs != rhs {
		t.Errorf("T round-trip mismatch: %+v", got)
	}
}

func TestCodecRoundTripE(t *testing.T) {
	out := RegisterAccess{Set: LOCAL, Index: 4}
	for _, imm := range []int64{0, 1, -1, 0x7ffffffff, -0x800000000} {
		word, err := EncodeE(LUI, out, imm)
		if err != nil {
			t.Fatalf("EncodeE(%d): %v", imm, err)
		}
		got, err := Decode(word)
		if err != nil {
			t.Fatal(err)
		}
		if got.Immediate != imm {
			t.Errorf("E round-trip(%d): got %d", imm, got.Immediate)
		}
	}
}

func TestCodecRoundTripR(t *testing.T) {
	out := RegisterAccess{Set: LOCAL, Index: 1}
	in := RegisterAccess{Set: LOCAL, Index: 2}
	for _, imm := range []int64{0, 1, -1, 0x7fffff, -0x800000} {
		word, err := EncodeR(ADDI, out, in, imm)
		if err != nil {
			t.Fatalf("EncodeR(%d): %v", imm, err)
		}
		got, err := Decode(word)
		if err != nil {
			t.Fatal(err)
		}
		if got.Immediate != imm || got.Out != out || got.In != in {
			t.Errorf("R round-trip(%d): got %+v", imm, got)
		}
	}
}

func TestCodecRoundTripF(t *testing.T) {
	out := RegisterAccess{Set: LOCAL, Index: 9}
	for _, imm := range []int64{0, 1, -1, 0x7fffffff, -0x80000000} {
		word, err := EncodeF(INTEGER, out, imm)
		if err != nil {
			t.Fatalf("EncodeF(%d): %v", imm, err)
		}
		got, err := Decode(word)
		if err != nil {
			t.Fatal(err)
		}
		if got.Immediate != imm {
			t.Errorf("F round-trip(%d): got %d", imm, got.Immediate)
		}
	}
}

func TestEncodeImmediateOverflowDetected(t *testing.T) {
	out := RegisterAccess{Set: LOCAL, Index: 0}
	if _, err := EncodeR(ADDI, out, out, 0x1000000); err == nil {
		t.Error("EncodeR: expected overflow error for 24-bit immediate 0x1000000")
	}
	if _, err := EncodeF(INTEGER, out, 0x100000000); err == nil {
		t.Error("EncodeF: expected overflow error for 32-bit immediate overflow")
	}
}

func TestEncodeRegisterIndexOverflowDetected(t *testing.T) {
	bad := RegisterAccess{Set: LOCAL, Index: 32}
	if _, err := bad.Encode(); err == nil {
		t.Error("expected error for register index 32 (5-bit field max is 31)")
	}
}

func TestVoidReadsAsZeroAndDiscardsWrites(t *testing.T) {
	if !Void.IsVoid() {
		t.Fatal("Void.IsVoid() == false")
	}
	b, err := Void.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if got := DecodeRegisterAccess(b); !got.IsVoid() {
		t.Errorf("decoded void byte %#x is not void: %+v", b, got)
	}
}
