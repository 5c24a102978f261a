package asm

import "errors"

// ErrNoEntryPoint is returned by Assembler.Assemble (from its verify step) when a source defines no
// [[entry_point]] function and relocatable mode was not requested — the
// supplemented link-time check from SPEC_FULL.md §11, folded from the
// original implementation's assembler verification pass.
var ErrNoEntryPoint = errors.New("asm: no [[entry_point]] function defined; pass -c to build a relocatable object")
