// Command vm loads and runs a VIUA executable image.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"viua/elf"
	"viua/vmexec"
	"viua/vmproc"
)

func main() {
	logger := log.New(os.Stderr, "vm: ", 0)

	quantum := flag.Int("quantum", vmexec.DefaultPreemptionThreshold, "instructions per scheduling quantum")
	flag.Parse()

	path := "./a.out"
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}

	if err := run(path, *quantum, os.Stdout); err != nil {
		var tr *vmexec.Trap
		if errors.As(err, &tr) {
			logger.Println(tr.Error())
			os.Exit(1)
		}
		logger.Fatalln(err)
	}
}

func run(path string, quantum int, output io.Writer) error {
	loader := &elf.Loader{}
	img, err := loader.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	p, err := vmproc.NewProcess(img.Text, img.Rodata, img.Functions, symbolsOf(img))
	if err != nil {
		return fmt.Errorf("start process: %w", err)
	}
	defer p.Close()
	p.Output = output

	p.PushFrame("_entry", 0)

	s := &vmexec.Scheduler{PreemptionThreshold: quantum}
	return s.Run(p, img.EntryOffset)
}

// symbolsOf translates the loader's raw ELF symbol records into the form
// vmproc.Process resolves CALL/ATOM/STRING symbol indices against.
func symbolsOf(img *elf.Image) []vmproc.Symbol {
	out := make([]vmproc.Symbol, len(img.Symbols))
	for i, sym := range img.Symbols {
		typ := vmproc.SymObject
		if sym.Info&0xf == elf.SttFunc {
			typ = vmproc.SymFunc
		}
		name := ""
		if i < len(img.SymNames) {
			name = img.SymNames[i]
		}
		out[i] = vmproc.Symbol{Name: name, Type: typ, Value: sym.Value, Size: sym.Size}
	}
	return out
}
