package elf

import (
	"os"
	"path/filepath"
	"testing"

	"viua/asm"
)

func writeFixtureFile(t *testing.T) string {
	t.Helper()
	a := &asm.Assembler{}
	out, err := a.Assemble("t.via", "[[entry_point]]\n.function: main\n  return\n.end\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	w := &Writer{}
	file, err := w.Write(out)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "a.out")
	if err := os.WriteFile(path, file, 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoaderLoadFile(t *testing.T) {
	path := writeFixtureFile(t)
	l := &Loader{}
	img, err := l.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	off, ok := img.Functions["main"]
	if !ok {
		t.Fatal("function \"main\" not found in loaded image")
	}
	if off != 8 {
		t.Fatalf("main offset = %d, want 8", off)
	}
	if img.Header.Entry == 0 {
		t.Fatal("e_entry is zero for an executable image")
	}
}

func TestLoaderRejectsBadMagic(t *testing.T) {
	l := &Loader{}
	_, err := l.Load([]byte("not an elf file at all"))
	if err == nil {
		t.Fatal("expected error for malformed input")
	}
}

func TestLoaderRejectsCorruptedViuaMagic(t *testing.T) {
	a := &asm.Assembler{}
	out, err := a.Assemble("t.via", "[[entry_point]]\n.function: main\n  return\n.end\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	w := &Writer{}
	file, err := w.Write(out)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	// Corrupt the .viua.magic bytes in place: they sit right after the
	// ELF header/phdr/shdr prelude as the first section's content.
	l := &Loader{}
	img, err := l.Load(file)
	if err != nil {
		t.Fatalf("Load (uncorrupted): %v", err)
	}
	_ = img

	corrupted := append([]byte(nil), file...)
	for i := range corrupted {
		if i+8 <= len(corrupted) && string(corrupted[i:i+5]) == "\x7fVIUA" {
			corrupted[i] = 'X'
			break
		}
	}
	if _, err := l.Load(corrupted); err == nil {
		t.Fatal("expected error for corrupted .viua.magic")
	}
}
