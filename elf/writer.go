package elf

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"viua/asm"
)

// strtab accumulates a standard ELF string table: starts with a NUL byte,
// every inserted name is followed by a NUL, and repeated names are
// deduplicated by reusing the earlier offset.
type strtab struct {
	buf     []byte
	offsets map[string]uint32
}

func newStrtab() *strtab {
	return &strtab{buf: []byte{0}, offsets: map[string]uint32{"": 0}}
}

func (s *strtab) insert(name string) uint32 {
	if off, ok := s.offsets[name]; ok {
		return off
	}
	off := uint32(len(s.buf))
	s.buf = append(s.buf, name...)
	s.buf = append(s.buf, 0)
	s.offsets[name] = off
	return off
}

// section is a writer-internal section description paired with its final
// content; sizes and offsets are filled in as layout proceeds.
type section struct {
	name  string
	hdr   SectionHeader
	data  []byte
	phdr  *ProgramHeader // non-nil if this section also needs a PT_LOAD/PT_NULL/PT_INTERP entry
}

// Writer assembles one ELF-64 file from an assembled program. The
// algorithm follows spec §4.6's seven steps and tinyrange-rtg's
// elf_x64.go shape: build descriptors, size them, compute the prelude,
// assign offsets monotonically, patch links, compute e_entry, then
// serialize header/phdrs/shdrs/sections in that order.
type Writer struct {
	Interp string // PT_INTERP content, defaults to "/usr/bin/viua-vm"
}

func (w *Writer) interp() string {
	if w.Interp != "" {
		return w.Interp
	}
	return "/usr/bin/viua-vm"
}

// Write serializes out into a complete ELF-64 image.
func (w *Writer) Write(out *asm.Assembled) ([]byte, error) {
	shstrtab := newStrtab()
	strtabSym := newStrtab()

	// Step (i): build every section descriptor. Order matters: it is the
	// file's declaration order, and .shstrtab must be last (spec §4.6).
	var secs []section
	secs = append(secs, section{name: "", hdr: SectionHeader{Type: SHTNull}})

	magicSec := section{
		name: ".viua.magic",
		hdr:  SectionHeader{Type: SHTProgbits, Flags: SHFAlloc, Addralign: 1},
		data: MagicSignature[:],
		phdr: &ProgramHeader{Type: PTNull},
	}
	secs = append(secs, magicSec)

	interpBytes := append([]byte(w.interp()), 0)
	interpSec := section{
		name: ".interp",
		hdr:  SectionHeader{Type: SHTProgbits, Flags: SHFAlloc, Addralign: 1},
		data: interpBytes,
		phdr: &ProgramHeader{Type: PTInterp, Flags: PFRead},
	}
	secs = append(secs, interpSec)

	textSec := section{
		name: ".text",
		hdr:  SectionHeader{Type: SHTProgbits, Flags: SHFAlloc | SHFExec, Addralign: 8},
		data: out.Text,
		phdr: &ProgramHeader{Type: PTLoad, Flags: PFRead | PFExec, Align: 8},
	}
	secs = append(secs, textSec)

	rodataSec := section{
		name: ".rodata",
		hdr:  SectionHeader{Type: SHTProgbits, Flags: SHFAlloc, Addralign: 1},
		data: out.Rodata,
		phdr: &ProgramHeader{Type: PTLoad, Flags: PFRead, Align: 1},
	}
	secs = append(secs, rodataSec)

	commentSec := section{
		name: ".comment",
		hdr:  SectionHeader{Type: SHTProgbits, Addralign: 1},
		data: append([]byte("viua-asm 1.0"), 0),
	}
	secs = append(secs, commentSec)

	textShndx := uint16(textSecIndex(secs))
	rodataShndx := uint16(rodataSecIndex(secs))
	symData, err := encodeSymbols(out.Symbols, strtabSym, textShndx, rodataShndx)
	if err != nil {
		return nil, err
	}
	symtabIdx := len(secs)
	secs = append(secs, section{
		name: ".symtab",
		hdr:  SectionHeader{Type: SHTSymtab, Entsize: SymSize},
		data: symData,
	})

	strtabIdx := len(secs)
	secs = append(secs, section{name: ".strtab", hdr: SectionHeader{Type: SHTStrtab}, data: strtabSym.buf})

	var relIdx = -1
	if len(out.Relocations) > 0 {
		relIdx = len(secs)
		secs = append(secs, section{
			name: ".rel",
			hdr:  SectionHeader{Type: SHTRel, Entsize: RelSize},
			data: encodeRelocations(out.Relocations),
		})
	}

	shstrtabIdx := len(secs)
	secs = append(secs, section{name: ".shstrtab"}) // content filled in once names are final

	// Step (ii): size sections (data already final); name offsets.
	for i := range secs {
		secs[i].hdr.Name = shstrtab.insert(secs[i].name)
		secs[i].hdr.Size = uint64(len(secs[i].data))
	}
	secs[shstrtabIdx].data = shstrtab.buf
	secs[shstrtabIdx].hdr.Type = SHTStrtab
	secs[shstrtabIdx].hdr.Size = uint64(len(shstrtab.buf))

	// Step (iii): compute the prelude length (header + phdrs + shdrs).
	var phdrCount int
	for _, s := range secs {
		if s.phdr != nil {
			phdrCount++
		}
	}
	prelude := EhdrSize + phdrCount*PhdrSize + len(secs)*ShdrSize

	// Step (iv): assign file offsets monotonically.
	offset := prelude
	phdrs := make([]ProgramHeader, 0, phdrCount)
	for i := range secs {
		s := &secs[i]
		if s.hdr.Type == SHTNull {
			continue
		}
		s.hdr.Offset = uint64(offset)
		if s.phdr != nil {
			s.phdr.Offset = uint64(offset)
			s.phdr.Filesz = uint64(len(s.data))
			s.phdr.Memsz = uint64(len(s.data))
			phdrs = append(phdrs, *s.phdr)
		}
		offset += len(s.data)
	}

	// Step (v): patch sh_link / sh_info.
	secs[symtabIdx].hdr.Link = uint32(strtabIdx)
	if relIdx >= 0 {
		secs[relIdx].hdr.Link = uint32(symtabIdx)
		secs[relIdx].hdr.Info = uint32(textSecIndex(secs))
	}

	// Step (vi): compute e_entry. textSec is a snapshot copy from before
	// the offset-assignment loop patched the live section.hdr; only the
	// slice element carries the real offset.
	var entry uint64
	if out.Executable {
		entry = secs[textSecIndex(secs)].hdr.Offset + uint64(out.EntryOffset)
	}

	hdr := Header{
		Ident:     identBytes(),
		Type:      ETRel,
		Machine:   EMNone,
		Version:   EVCurrent,
		Entry:     entry,
		Phoff:     EhdrSize,
		Shoff:     uint64(EhdrSize + phdrCount*PhdrSize),
		Ehsize:    EhdrSize,
		Phentsize: PhdrSize,
		Phnum:     uint16(phdrCount),
		Shentsize: ShdrSize,
		Shnum:     uint16(len(secs)),
		Shstrndx:  uint16(shstrtabIdx),
	}
	if out.Executable {
		hdr.Type = ETExec
	}

	// Step (vii): serialize header, phdrs, shdrs, then section contents.
	var buf bytes.Buffer
	if err := writeHeader(&buf, hdr); err != nil {
		return nil, err
	}
	for _, ph := range phdrs {
		if err := writeProgramHeader(&buf, ph); err != nil {
			return nil, err
		}
	}
	for _, s := range secs {
		if err := writeSectionHeader(&buf, s.hdr); err != nil {
			return nil, err
		}
	}
	for _, s := range secs {
		buf.Write(s.data)
	}
	return buf.Bytes(), nil
}

func textSecIndex(secs []section) int {
	for i, s := range secs {
		if s.name == ".text" {
			return i
		}
	}
	return -1
}

func rodataSecIndex(secs []section) int {
	for i, s := range secs {
		if s.name == ".rodata" {
			return i
		}
	}
	return -1
}

func identBytes() [16]byte {
	var b [16]byte
	b[0], b[1], b[2], b[3] = ELFMAG0, ELFMAG1, ELFMAG2, ELFMAG3
	b[4] = ELFCLASS64
	b[5] = ELFDATA2LSB
	b[6] = EVCurrent
	b[7] = ELFOSABISTANDALONE
	return b
}

// encodeSymbols lays out .symtab and patches st_shndx per spec §4.6:
// STT_FUNC symbols point at .text's section index, STT_OBJECT at
// .rodata's.
func encodeSymbols(syms []asm.Symbol, strtab *strtab, textShndx, rodataShndx uint16) ([]byte, error) {
	var buf bytes.Buffer
	for _, sym := range syms {
		typ := uint8(SttNotype)
		shndx := uint16(0)
		switch sym.Type {
		case asm.SttFunc:
			typ = SttFunc
			shndx = textShndx
		case asm.SttObject:
			typ = SttObject
			shndx = rodataShndx
		case asm.SttFile:
			typ = SttFile
		}
		bind := uint8(STBLocal)
		if sym.Binding == asm.BindGlobal {
			bind = STBGlobal
		}
		rec := Sym{
			Value: sym.Value,
			Size:  sym.Size,
			Name:  strtab.insert(sym.Name),
			Info:  StInfo(bind, typ),
			Shndx: shndx,
		}
		if err := binary.Write(&buf, binary.LittleEndian, rec); err != nil {
			return nil, fmt.Errorf("elf: encode symbol %q: %w", sym.Name, err)
		}
	}
	return buf.Bytes(), nil
}

func encodeRelocations(relocs []asm.Relocation) []byte {
	var buf bytes.Buffer
	for _, r := range relocs {
		rec := Rel{Offset: uint64(r.Offset), Info: RInfo(uint32(r.Symbol), r.Kind.TypeCode())}
		binary.Write(&buf, binary.LittleEndian, rec)
	}
	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, h Header) error {
	return binary.Write(buf, binary.LittleEndian, h)
}

func writeProgramHeader(buf *bytes.Buffer, ph ProgramHeader) error {
	return binary.Write(buf, binary.LittleEndian, ph)
}

func writeSectionHeader(buf *bytes.Buffer, sh SectionHeader) error {
	return binary.Write(buf, binary.LittleEndian, sh)
}
