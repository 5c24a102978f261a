package vmexec

import (
	"viua/isa"
	"viua/vmproc"
)

// DefaultPreemptionThreshold is the reference quantum: a process executing
// only non-greedy instructions yields control after this many (spec §5).
const DefaultPreemptionThreshold = 2

// Scheduler drives a process's instruction stream quantum by quantum,
// implementing cooperative preemption: within a quantum it executes up to
// PreemptionThreshold instructions, except that a run of GREEDY-flagged
// instructions plus the non-greedy instruction that closes it is executed
// atomically and its whole length is charged against the quantum at once,
// even if that overshoots it (spec §5: "a bundle longer than the quantum
// preempts immediately after completion").
type Scheduler struct {
	PreemptionThreshold int
}

// NewScheduler returns a Scheduler using DefaultPreemptionThreshold.
func NewScheduler() *Scheduler {
	return &Scheduler{PreemptionThreshold: DefaultPreemptionThreshold}
}

func (s *Scheduler) threshold() int {
	if s.PreemptionThreshold > 0 {
		return s.PreemptionThreshold
	}
	return DefaultPreemptionThreshold
}

// runBundle executes one greedy bundle starting at ip: the initial run of
// GREEDY instructions, plus the single non-greedy instruction that
// terminates it (or just that one instruction, if it isn't greedy at all).
// It reports how many instructions it executed.
func (s *Scheduler) runBundle(p *vmproc.Process, ip uint64) (count int, next uint64, halted bool, err error) {
	for {
		word, ferr := fetch(p, ip)
		if ferr != nil {
			return count, ip, false, ferr
		}
		op := isa.Opcode(word & 0xff)
		nextIP, h, eerr := Step(p, ip)
		count++
		if eerr != nil {
			return count, ip, false, eerr
		}
		if h {
			return count, nextIP, true, nil
		}
		if !isa.IsGreedy(op) {
			return count, nextIP, false, nil
		}
		ip = nextIP
	}
}

// RunQuantum executes at most one quantum's worth of instructions (subject
// to the greedy-bundle overshoot rule above), starting at ip, and returns
// where execution left off.
func (s *Scheduler) RunQuantum(p *vmproc.Process, ip uint64) (next uint64, halted bool, err error) {
	remaining := s.threshold()
	for remaining > 0 {
		if ip >= uint64(len(p.Text)) {
			return ip, true, nil
		}
		n, nextIP, h, e := s.runBundle(p, ip)
		if e != nil {
			return ip, false, e
		}
		ip = nextIP
		if h {
			return ip, true, nil
		}
		remaining -= n
	}
	return ip, false, nil
}

// Run drives p to completion (HALT, an empty RETURN of the entry frame, or
// running off the end of .text), alternating quanta the way a multi-process
// scheduler would round-robin them for a single process.
func (s *Scheduler) Run(p *vmproc.Process, entryIP uint64) error {
	ip := entryIP
	for {
		next, halted, err := s.RunQuantum(p, ip)
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
		ip = next
	}
}
