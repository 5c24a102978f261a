package elf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Image is the loader's output: the decoded header, the mapped .text and
// .rodata regions, and the reconstructed function table (spec §4.7).
type Image struct {
	Header Header
	Text   []byte
	Rodata []byte

	// Functions maps a function name to its byte offset within Text,
	// reconstructed by scanning .symtab for STT_FUNC entries.
	Functions map[string]uint64
	Symbols   []Sym
	SymNames  []string
	Relocations []Rel

	// EntryOffset is Header.Entry translated from a file-absolute address
	// to an offset within Text, valid iff Header.Type == ETExec. The
	// Writer computes e_entry as the .text section's file offset plus the
	// entry function's offset within it; the loader undoes that so
	// callers can index directly into Text.
	EntryOffset uint64
}

// Loader validates and maps an ELF-64 image produced by this package's
// Writer. It maps .text and .rodata with golang.org/x/sys/unix.Mmap
// rather than a plain read, grounded on the PROT_READ/PROT_WRITE page-flag
// usage in other_examples/jam-duna-jamduna__pvmgo.go (SPEC_FULL.md §2.2).
type Loader struct{}

// LoadFile opens path, validates its ELF and VIUA signatures, and returns
// the mapped image.
func (l *Loader) LoadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elf: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("elf: stat %s: %w", path, err)
	}
	size := int(info.Size())
	if size == 0 {
		return nil, fmt.Errorf("elf: %s is empty", path)
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("elf: mmap %s: %w", path, err)
	}
	return l.Load(mapped)
}

// Load validates and parses raw, an already-mapped or in-memory ELF image.
func (l *Loader) Load(raw []byte) (*Image, error) {
	if len(raw) < EhdrSize {
		return nil, fmt.Errorf("elf: file too small for an ELF header")
	}
	var hdr Header
	if err := binary.Read(bytes.NewReader(raw[:EhdrSize]), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("elf: read header: %w", err)
	}
	if hdr.Ident[0] != ELFMAG0 || hdr.Ident[1] != ELFMAG1 || hdr.Ident[2] != ELFMAG2 || hdr.Ident[3] != ELFMAG3 {
		return nil, fmt.Errorf("elf: bad magic")
	}
	if hdr.Ident[4] != ELFCLASS64 {
		return nil, fmt.Errorf("elf: not ELFCLASS64")
	}
	if hdr.Ident[7] != ELFOSABISTANDALONE {
		return nil, fmt.Errorf("elf: unexpected OSABI %d, want ELFOSABI_STANDALONE", hdr.Ident[7])
	}
	if hdr.Type != ETExec && hdr.Type != ETRel {
		return nil, fmt.Errorf("elf: unexpected e_type %d", hdr.Type)
	}

	shdrs, err := readSectionHeaders(raw, hdr)
	if err != nil {
		return nil, err
	}
	shstrtab := sectionBytes(raw, shdrs[hdr.Shstrndx])

	var (
		textIdx, rodataIdx, symtabIdx, strtabIdx, relIdx, magicIdx = -1, -1, -1, -1, -1, -1
	)
	for i, sh := range shdrs {
		switch sectionName(shstrtab, sh.Name) {
		case ".text":
			textIdx = i
		case ".rodata":
			rodataIdx = i
		case ".symtab":
			symtabIdx = i
		case ".strtab":
			strtabIdx = i
		case ".rel":
			relIdx = i
		case ".viua.magic":
			magicIdx = i
		}
	}
	if magicIdx < 0 {
		return nil, fmt.Errorf("elf: missing .viua.magic section")
	}
	magic := sectionBytes(raw, shdrs[magicIdx])
	if len(magic) != len(MagicSignature) || !bytes.Equal(magic, MagicSignature[:]) {
		return nil, fmt.Errorf("elf: bad .viua.magic signature")
	}
	if textIdx < 0 {
		return nil, fmt.Errorf("elf: missing .text section")
	}
	if symtabIdx < 0 || strtabIdx < 0 {
		return nil, fmt.Errorf("elf: missing .symtab/.strtab")
	}

	img := &Image{Header: hdr, Text: sectionBytes(raw, shdrs[textIdx])}
	if rodataIdx >= 0 {
		img.Rodata = sectionBytes(raw, shdrs[rodataIdx])
	}
	if hdr.Type == ETExec {
		img.EntryOffset = hdr.Entry - shdrs[textIdx].Offset
	}

	strtabBytes := sectionBytes(raw, shdrs[strtabIdx])
	syms, names, err := readSymbols(sectionBytes(raw, shdrs[symtabIdx]), strtabBytes)
	if err != nil {
		return nil, err
	}
	img.Symbols = syms
	img.SymNames = names

	img.Functions = make(map[string]uint64)
	for i, sym := range syms {
		if sym.Info&0xf == SttFunc && names[i] != "" {
			img.Functions[names[i]] = sym.Value
		}
	}

	if relIdx >= 0 {
		relBytes := sectionBytes(raw, shdrs[relIdx])
		rels, err := readRelocations(relBytes)
		if err != nil {
			return nil, err
		}
		img.Relocations = rels
	}

	return img, nil
}

func readSectionHeaders(raw []byte, hdr Header) ([]SectionHeader, error) {
	shdrs := make([]SectionHeader, hdr.Shnum)
	r := bytes.NewReader(raw[hdr.Shoff:])
	for i := range shdrs {
		if err := binary.Read(r, binary.LittleEndian, &shdrs[i]); err != nil {
			return nil, fmt.Errorf("elf: read section header %d: %w", i, err)
		}
	}
	return shdrs, nil
}

func sectionBytes(raw []byte, sh SectionHeader) []byte {
	if sh.Type == SHTNull {
		return nil
	}
	return raw[sh.Offset : sh.Offset+sh.Size]
}

func sectionName(shstrtab []byte, off uint32) string {
	return cString(shstrtab, off)
}

func cString(b []byte, off uint32) string {
	if int(off) >= len(b) {
		return ""
	}
	end := off
	for end < uint32(len(b)) && b[end] != 0 {
		end++
	}
	return string(b[off:end])
}

func readSymbols(data, strtabBytes []byte) ([]Sym, []string, error) {
	n := len(data) / SymSize
	syms := make([]Sym, n)
	names := make([]string, n)
	r := bytes.NewReader(data)
	for i := 0; i < n; i++ {
		if err := binary.Read(r, binary.LittleEndian, &syms[i]); err != nil {
			return nil, nil, fmt.Errorf("elf: read symbol %d: %w", i, err)
		}
		names[i] = cString(strtabBytes, syms[i].Name)
	}
	return syms, names, nil
}

func readRelocations(data []byte) ([]Rel, error) {
	n := len(data) / RelSize
	rels := make([]Rel, n)
	r := bytes.NewReader(data)
	for i := 0; i < n; i++ {
		if err := binary.Read(r, binary.LittleEndian, &rels[i]); err != nil {
			return nil, fmt.Errorf("elf: read relocation %d: %w", i, err)
		}
	}
	return rels, nil
}
