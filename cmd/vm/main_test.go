package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"viua/asm"
	"viua/elf"
)

// buildImage assembles src and writes the resulting ELF-64 image to a
// temporary file, returning its path.
func buildImage(t *testing.T, src string) string {
	t.Helper()
	a := &asm.Assembler{}
	assembled, err := a.Assemble("t.via", src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	w := &elf.Writer{}
	image, err := w.Write(assembled)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	path := filepath.Join(t.TempDir(), "a.out")
	if err := os.WriteFile(path, image, 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// TestRunEmptyProgram is end-to-end scenario 1: the shortest possible
// program (a bare `return`) assembles, loads, and halts cleanly.
func TestRunEmptyProgram(t *testing.T) {
	path := buildImage(t, "[[entry_point]]\n.function: main\n  return\n.end\n")
	var out bytes.Buffer
	if err := run(path, 2, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("output = %q, want empty", out.String())
	}
}

// TestRunPrintsStringAndCallResult exercises the full toolchain: assembling
// a string materialization, a nested call with a return value, and output
// via PRINT/ECHO, matching testdata/hello.via.
func TestRunPrintsStringAndCallResult(t *testing.T) {
	src, err := os.ReadFile("../../testdata/hello.via")
	if err != nil {
		t.Fatalf("read testdata: %v", err)
	}
	path := buildImage(t, string(src))
	var out bytes.Buffer
	if err := run(path, 64, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "hello, viua\n42"
	if out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}
}

// TestRunDivisionByZeroTrap is end-to-end scenario 4: a division by zero
// surfaces as a *vmexec.Trap from run, not a panic.
func TestRunDivisionByZeroTrap(t *testing.T) {
	src := "[[entry_point]]\n.function: main\n" +
		"  integer %1, 10\n" +
		"  integer %2, 0\n" +
		"  div %3, %1, %2\n" +
		"  return\n" +
		".end\n"
	path := buildImage(t, src)
	var out bytes.Buffer
	err := run(path, 64, &out)
	if err == nil {
		t.Fatal("expected a trap, got nil error")
	}
}
