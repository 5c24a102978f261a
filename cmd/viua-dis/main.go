// Command viua-dis disassembles a VIUA executable or relocatable image: a
// symbol table summary followed by one decoded mnemonic per .text word —
// the binary-format analogue of forth/vm.go's dump primitive.
package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"

	"viua/elf"
	"viua/isa"
)

func main() {
	logger := log.New(os.Stderr, "viua-dis: ", 0)

	if len(os.Args) != 2 {
		logger.Fatalln("usage: viua-dis <executable>")
	}

	loader := &elf.Loader{}
	img, err := loader.LoadFile(os.Args[1])
	if err != nil {
		logger.Fatalln(err)
	}

	fmt.Printf("symbols (%d):\n", len(img.Symbols))
	for i, sym := range img.Symbols {
		name := ""
		if i < len(img.SymNames) {
			name = img.SymNames[i]
		}
		kind := "object"
		if sym.Info&0xf == elf.SttFunc {
			kind = "func"
		}
		fmt.Printf("  [%2d] %-8s %-16s value=%#06x size=%d\n", i, kind, name, sym.Value, sym.Size)
	}

	fmt.Printf("\n.text (%d bytes):\n", len(img.Text))
	for off := 0; off+8 <= len(img.Text); off += 8 {
		word := binary.LittleEndian.Uint64(img.Text[off : off+8])
		instr, err := isa.Decode(word)
		if err != nil {
			fmt.Printf("  %#06x: <%v>\n", off, err)
			continue
		}
		fmt.Printf("  %#06x: %s\n", off, instr)
	}
}
