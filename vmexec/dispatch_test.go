package vmexec

import (
	"encoding/binary"
	"errors"
	"testing"

	"viua/isa"
	"viua/vmproc"
)

func reg(idx uint8) isa.RegisterAccess {
	return isa.RegisterAccess{Set: isa.LOCAL, Index: idx}
}

func asmWords(t *testing.T, words ...uint64) []byte {
	t.Helper()
	buf := make([]byte, 8*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[i*8:], w)
	}
	return buf
}

func newTestProcess(t *testing.T, text, rodata []byte, symbols []vmproc.Symbol) *vmproc.Process {
	t.Helper()
	p, err := vmproc.NewProcess(text, rodata, nil, symbols)
	if err != nil {
		t.Fatalf("NewProcess: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	p.PushFrame("main", 0)
	return p
}

func TestNopAdvancesIP(t *testing.T) {
	text := asmWords(t, isa.EncodeN(isa.NOP))
	p := newTestProcess(t, text, nil, nil)

	next, halted, err := Step(p, 0)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if halted {
		t.Fatal("NOP must not halt")
	}
	if next != 8 {
		t.Fatalf("next = %#x, want 8", next)
	}
}

func TestHaltStopsExecution(t *testing.T) {
	text := asmWords(t, isa.EncodeN(isa.HALT))
	p := newTestProcess(t, text, nil, nil)

	_, halted, err := Step(p, 0)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !halted {
		t.Fatal("HALT must halt")
	}
}

func TestDivisionByZeroTraps(t *testing.T) {
	word, err := isa.EncodeT(isa.DIV, reg(0), reg(1), reg(2))
	if err != nil {
		t.Fatalf("EncodeT: %v", err)
	}
	text := asmWords(t, word)
	p := newTestProcess(t, text, nil, nil)
	p.Write(reg(1), vmproc.NewInt64(10))
	p.Write(reg(2), vmproc.NewInt64(0))

	_, _, err = Step(p, 0)
	if err == nil {
		t.Fatal("expected a trap dividing by zero")
	}
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("err = %v, want ErrDivisionByZero", err)
	}
	var tr *Trap
	if !errors.As(err, &tr) {
		t.Fatalf("err = %v, want a *Trap", err)
	}
	if tr.IP != 0 {
		t.Fatalf("trap IP = %#x, want 0", tr.IP)
	}
}

func TestAddPropagatesUnsignedTag(t *testing.T) {
	word, err := isa.EncodeT(isa.ADD, reg(0), reg(1), reg(2))
	if err != nil {
		t.Fatalf("EncodeT: %v", err)
	}
	text := asmWords(t, word)
	p := newTestProcess(t, text, nil, nil)
	p.Write(reg(1), vmproc.NewUint64(4))
	p.Write(reg(2), vmproc.NewInt64(5))

	if _, _, err := Step(p, 0); err != nil {
		t.Fatalf("Step: %v", err)
	}
	out, _ := p.Read(reg(0))
	if out.Tag() != vmproc.IntegerUnsigned || out.Uint64() != 9 {
		t.Fatalf("out = %v, want unsigned 9", out)
	}
}

func TestMoveExecutorClearsSource(t *testing.T) {
	word, err := isa.EncodeD(isa.MOVE, reg(1), reg(0))
	if err != nil {
		t.Fatalf("EncodeD: %v", err)
	}
	text := asmWords(t, word)
	p := newTestProcess(t, text, nil, nil)
	p.Write(reg(0), vmproc.NewInt64(42))

	if _, _, err := Step(p, 0); err != nil {
		t.Fatalf("Step: %v", err)
	}
	dst, _ := p.Read(reg(1))
	if dst.Int64() != 42 {
		t.Fatalf("dst = %v, want 42", dst)
	}
	src, _ := p.Read(reg(0))
	if !src.IsVoid() {
		t.Fatal("MOVE must leave the source register Void")
	}
}

func TestStringMaterializesBoxedValueInPlace(t *testing.T) {
	word, err := isa.EncodeS(isa.STRING, reg(0))
	if err != nil {
		t.Fatalf("EncodeS: %v", err)
	}
	text := asmWords(t, word)
	rodata := []byte("hello")
	symbols := []vmproc.Symbol{
		{Name: "greeting", Type: vmproc.SymObject, Value: 0, Size: 5},
	}
	p := newTestProcess(t, text, rodata, symbols)
	p.Write(reg(0), vmproc.NewInt64(0))

	if _, _, err := Step(p, 0); err != nil {
		t.Fatalf("Step: %v", err)
	}
	v, _ := p.Read(reg(0))
	if v.Tag() != vmproc.Boxed || v.Display() != "hello" {
		t.Fatalf("register = %v, want boxed \"hello\"", v)
	}
}

func TestCallReturnRoundTrip(t *testing.T) {
	callWord, err := isa.EncodeD(isa.CALL, reg(0), reg(5))
	if err != nil {
		t.Fatalf("EncodeD: %v", err)
	}
	haltWord := isa.EncodeN(isa.HALT)
	literalWord, err := isa.EncodeF(isa.INTEGER, reg(0), 99)
	if err != nil {
		t.Fatalf("EncodeF: %v", err)
	}
	returnWord := isa.EncodeN(isa.RETURN)

	text := asmWords(t, callWord, haltWord, literalWord, returnWord)
	symbols := []vmproc.Symbol{
		{Name: "main", Type: vmproc.SymFunc, Value: 0},
		{Name: "callee", Type: vmproc.SymFunc, Value: 16},
	}
	p := newTestProcess(t, text, nil, symbols)
	p.Write(reg(5), vmproc.NewInt64(1)) // symbol index of "callee"

	ip := uint64(0)
	halted := false
	for steps := 0; !halted; steps++ {
		if steps > 10 {
			t.Fatal("round trip did not halt in time")
		}
		var serr error
		ip, halted, serr = Step(p, ip)
		if serr != nil {
			t.Fatalf("Step at %#x: %v", ip, serr)
		}
	}

	result, err := p.Read(reg(0))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if result.Int64() != 99 {
		t.Fatalf("caller's result register = %v, want 99", result)
	}
}
