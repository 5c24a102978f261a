// Command asm assembles a textual VIUA source file into an ELF-64 image.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"syscall"

	"viua/asm"
	"viua/elf"
)

const version = "viua-asm 1.0"

func main() {
	logger := log.New(os.Stderr, "asm: ", 0)

	fs := flag.NewFlagSet("asm", flag.ContinueOnError)
	out := fs.String("o", "a.out", "output file")
	verbose := fs.Bool("v", false, "verbose")
	fs.BoolVar(verbose, "verbose", false, "verbose")
	showVersion := fs.Bool("version", false, "print version and exit")
	help := fs.Bool("help", false, "show the manual")
	relocatable := fs.Bool("c", false, "assemble relocatable (no entry point required)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	if *help {
		showManual(fs)
		return
	}
	if *showVersion {
		fmt.Println(version)
		return
	}
	if fs.NArg() != 1 {
		logger.Fatalln("usage: asm [-o out] [-c] [-v] <source.via>")
	}

	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		logger.Fatalln(err)
	}

	a := &asm.Assembler{Relocatable: *relocatable}
	assembled, err := a.Assemble(fs.Arg(0), string(src))
	if err != nil {
		logger.Fatalln(err)
	}
	if *verbose {
		logger.Printf("%d bytes .text, %d bytes .rodata, %d symbols, %d relocations",
			len(assembled.Text), len(assembled.Rodata), len(assembled.Symbols), len(assembled.Relocations))
	}

	w := &elf.Writer{}
	image, err := w.Write(assembled)
	if err != nil {
		logger.Fatalln(err)
	}
	if err := os.WriteFile(*out, image, 0o755); err != nil {
		logger.Fatalln(err)
	}
}

// showManual execs `man 1 asm` for `--help`. If man is not on $PATH or
// cannot be executed, it prints the asm flag usage instead; once man runs,
// a missing page is reported by man itself.
func showManual(fs *flag.FlagSet) {
	path, err := exec.LookPath("man")
	if err == nil {
		argv := []string{"man", "1", "asm"}
		if err := syscall.Exec(path, argv, os.Environ()); err == nil {
			return
		}
	}
	fs.Usage()
}
