package vmproc

// PointerRegistry records the live ranges handed out by AA, so a PTR
// dereference can be validated instead of
// trusting an arbitrary integer the program computed (spec §3: "a pointer
// registry recording live raw-pointer values for validity checks").
type PointerRegistry struct {
	live map[uint64]uint64 // address -> allocation size
}

// NewPointerRegistry returns an empty registry.
func NewPointerRegistry() *PointerRegistry {
	return &PointerRegistry{live: make(map[uint64]uint64)}
}

// Register marks addr as a live allocation of size bytes.
func (r *PointerRegistry) Register(addr, size uint64) {
	r.live[addr] = size
}

// Unregister drops addr; a later Validate of it fails.
func (r *PointerRegistry) Unregister(addr uint64) {
	delete(r.live, addr)
}

// Validate reports whether addr is a live pointer previously handed out by
// AA (and not yet unregistered), and its allocation size.
func (r *PointerRegistry) Validate(addr uint64) (size uint64, ok bool) {
	size, ok = r.live[addr]
	return
}
