package elf

import (
	"bytes"
	"testing"

	"viua/asm"
)

func assembleFixture(t *testing.T) *asm.Assembled {
	t.Helper()
	a := &asm.Assembler{}
	src := "[[entry_point]]\n.function: main\n  call f\n  return\n.end\n" +
		".function: f\n  return\n.end\n" +
		`.label: greeting string "hi" * 2` + "\n"
	out, err := a.Assemble("t.via", src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return out
}

func TestWriterProducesValidHeader(t *testing.T) {
	out := assembleFixture(t)
	w := &Writer{}
	file, err := w.Write(out)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(file) < EhdrSize {
		t.Fatalf("file too small: %d bytes", len(file))
	}
	if file[0] != ELFMAG0 || file[1] != ELFMAG1 || file[2] != ELFMAG2 || file[3] != ELFMAG3 {
		t.Fatalf("bad magic: % x", file[:4])
	}
	if file[4] != ELFCLASS64 {
		t.Fatalf("EI_CLASS = %d, want ELFCLASS64", file[4])
	}
	if file[7] != ELFOSABISTANDALONE {
		t.Fatalf("EI_OSABI = %d, want ELFOSABI_STANDALONE", file[7])
	}
}

func TestWriterShstrtabIsLastSection(t *testing.T) {
	out := assembleFixture(t)
	w := &Writer{}
	file, err := w.Write(out)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	l := &Loader{}
	img, err := l.Load(file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if int(img.Header.Shstrndx) != int(img.Header.Shnum)-1 {
		t.Fatalf(".shstrtab index = %d, want the last section (%d)", img.Header.Shstrndx, img.Header.Shnum-1)
	}
	if !bytes.Equal(img.Text, out.Text) {
		t.Fatalf("Text round-trip mismatch")
	}
	if !bytes.Equal(img.Rodata, out.Rodata) {
		t.Fatalf("Rodata round-trip mismatch")
	}
}

func TestWriterRelocationsRoundTrip(t *testing.T) {
	out := assembleFixture(t)
	w := &Writer{}
	file, err := w.Write(out)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	l := &Loader{}
	img, err := l.Load(file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(img.Relocations) != len(out.Relocations) {
		t.Fatalf("got %d relocations, want %d", len(img.Relocations), len(out.Relocations))
	}
	rel := img.Relocations[0]
	if RType(rel.Info) != RVIUAJumpSlot {
		t.Fatalf("relocation type = %d, want R_VIUA_JUMP_SLOT", RType(rel.Info))
	}
}
