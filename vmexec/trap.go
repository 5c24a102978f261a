// Package vmexec decodes instruction words and dispatches them to executors
// operating on a vmproc.Process, and drives a single process through quanta
// of such execution with cooperative preemption.
package vmexec

import (
	"errors"
	"fmt"

	"viua/isa"
)

// Sentinel reasons an executor wraps into a Trap. Compare against these with
// errors.Is through Trap.Unwrap.
var (
	ErrDivisionByZero     = errors.New("division by zero")
	ErrInvalidSymbol      = errors.New("invalid or wrong-kind symbol index")
	ErrInvalidPointer     = errors.New("pointer not registered or already freed")
	ErrNoActiveFrame      = errors.New("no active frame")
	ErrBreakpoint         = errors.New("breakpoint")
	ErrIllegalInstruction = errors.New("illegal instruction")
)

// Trap is a fatal runtime condition raised by an executor: it carries the
// instruction pointer and decoded instruction that caused it, the same way
// forth/error.go's Error pairs a Cell program counter with the offending
// Instr. A Trap always terminates the process that raised it (spec §4.9's
// Faulting -> Terminated transition).
type Trap struct {
	IP     uint64
	Instr  isa.Instruction
	Reason error
}

func (t *Trap) Error() string {
	return fmt.Sprintf("trap at %#06x (%s): %v", t.IP, t.Instr, t.Reason)
}

func (t *Trap) Unwrap() error { return t.Reason }

func trap(ip uint64, instr isa.Instruction, reason error) error {
	return &Trap{IP: ip, Instr: instr, Reason: reason}
}
