package asm

// Assembled is the full output of one assembler run: everything the ELF
// writer (package elf) needs to lay out an object or executable file.
type Assembled struct {
	Text         []byte
	Rodata       []byte
	Symbols      []Symbol
	Relocations  []Relocation
	Executable   bool // ET_EXEC vs ET_REL, see DESIGN.md Open Question 2
	EntryOffset  int  // byte offset of the entry function's first instruction, valid iff Executable
	EntrySymbol  int
}

// Assembler drives the full pipeline: lex, parse, build the constant pool
// and symbol table, expand pseudo-instructions, emit .text, and scan for
// relocations. It is the package's single public entry point, playing the
// role as/as.go's main() plays for the Forth toolchain.
type Assembler struct {
	// Relocatable forces ET_REL even when an [[entry_point]] function is
	// present, the asm CLI's `-c` flag.
	Relocatable bool
}

// Assemble runs the whole pipeline over src (attributed to file for
// diagnostics) and returns the assembled image.
func (a *Assembler) Assemble(file, src string) (*Assembled, error) {
	toks, err := NewLexer(file, src).Tokens()
	if err != nil {
		return nil, err
	}
	prog, err := NewParser(file, toks).Parse()
	if err != nil {
		return nil, err
	}
	if err := a.verify(prog); err != nil {
		return nil, err
	}

	symbols := NewSymbolTable(file)
	pool := &ConstantPool{}

	// Pass 1: register every function and object symbol up front, so
	// call/atom lowering in pass 2 can resolve any forward reference.
	funcSymIdx := make(map[string]int, len(prog.Functions))
	for _, fn := range prog.Functions {
		binding := BindGlobal
		sym := Symbol{Name: fn.Name, Type: SttFunc, Binding: binding}
		idx := symbols.Add(sym)
		funcSymIdx[fn.Name] = idx
	}
	for _, lbl := range prog.Labels {
		var offset, size int
		if !lbl.Extern {
			switch lbl.Type {
			case LabelString:
				offset, size = pool.InsertString(lbl.Literal, lbl.Repeat)
			case LabelAtom:
				offset, size = pool.InsertAtom(lbl.Literal)
			}
		}
		symbols.Add(Symbol{
			Name:    lbl.Name,
			Type:    SttObject,
			Binding: BindGlobal,
			Value:   uint64(offset),
			Size:    uint64(size),
		})
	}

	expander := &Expander{Symbols: symbols}
	emitter := NewEmitter()
	for _, fn := range prog.Functions {
		words, err := expander.ExpandFunction(fn)
		if err != nil {
			return nil, err
		}
		idx := funcSymIdx[fn.Name]
		ef, err := emitter.EmitFunction(fn.Name, idx, fn.Extern, words)
		if err != nil {
			return nil, err
		}
		if !fn.Extern {
			symbols.Symbols[idx].Value = uint64(ef.Offset)
			symbols.Symbols[idx].Size = uint64(ef.Size)
		}
	}

	relocations := BuildRelocations(emitter.Functions)

	out := &Assembled{
		Text:        emitter.Text,
		Rodata:      pool.Bytes(),
		Symbols:     symbols.Symbols,
		Relocations: relocations,
	}

	entryExtern := false
	for _, fn := range prog.Functions {
		if fn.Name == prog.EntryPoint && fn.Extern {
			entryExtern = true
		}
	}
	if prog.EntryPoint != "" && !entryExtern && !a.Relocatable {
		idx := funcSymIdx[prog.EntryPoint]
		out.Executable = true
		out.EntryOffset = int(symbols.Symbols[idx].Value)
		out.EntrySymbol = idx
	}
	return out, nil
}

// verify implements the supplemented [[entry_point]] enforcement
// (SPEC_FULL.md §11): a source file that defines no entry point must be
// assembled in relocatable mode.
func (a *Assembler) verify(prog *Program) error {
	if prog.EntryPoint == "" && !a.Relocatable {
		return ErrNoEntryPoint
	}
	return nil
}
