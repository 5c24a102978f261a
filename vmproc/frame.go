package vmproc

import "viua/isa"

// Frame is one call-frame: its own LOCAL register set, the instruction
// pointer to resume the caller at on RETURN, and the caller-side register
// CALL asked to receive this call's result (spec §3 Lifecycles: "A frame is
// created by FRAME/CALL, dropped by RETURN; its local register set dies
// with it").
//
// ResultSlot is resolved lazily, at RETURN time, against whichever frame is
// current after this one is popped -- i.e. the caller's frame -- so a
// LOCAL-set access in it correctly reaches the caller's registers rather
// than the callee's. By convention the callee leaves its result in its own
// LOCAL %0 before executing RETURN.
type Frame struct {
	Function   string
	Locals     RegisterFile
	ReturnIP   uint64
	ResultSlot isa.RegisterAccess
}
