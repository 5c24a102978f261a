package vmproc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// defaultHeapSize is the size of the anonymous mapping backing a process's
// heap; AA allocations bump a break within it (spec §3/§9).
const defaultHeapSize = 1 << 20

// Heap is a process's bump-allocated memory region, backed by an anonymous
// golang.org/x/sys/unix.Mmap mapping rather than a plain Go slice, grounded
// on the PROT_READ/PROT_WRITE page-flag usage in
// other_examples/jam-duna-jamduna__pvmgo.go (SPEC_FULL.md §2.2's domain
// stack requirement).
type Heap struct {
	mem []byte
	brk uint64
}

// NewHeap maps a region of size bytes (defaultHeapSize if size <= 0).
func NewHeap(size int) (*Heap, error) {
	if size <= 0 {
		size = defaultHeapSize
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("vmproc: mmap heap: %w", err)
	}
	return &Heap{mem: mem}, nil
}

// Close unmaps h's backing region. Safe to call on a zero Heap.
func (h *Heap) Close() error {
	if h == nil || h.mem == nil {
		return nil
	}
	err := unix.Munmap(h.mem)
	h.mem = nil
	return err
}

// Allocate services the AA instruction: round the current break up to
// 1<<alignExp, bump it by size, and return the aligned address. Spec §9
// flags the reference implementation's AA as computing the alignment but
// never enforcing it on the returned address; this rounds the break
// instead of reproducing that bug.
func (h *Heap) Allocate(size uint64, alignExp uint8) (uint64, error) {
	align := uint64(1) << alignExp
	aligned := (h.brk + align - 1) &^ (align - 1)
	if aligned+size > uint64(len(h.mem)) {
		return 0, fmt.Errorf("vmproc: heap exhausted: need %d bytes at %#x, capacity %d", size, aligned, len(h.mem))
	}
	h.brk = aligned + size
	return aligned, nil
}

// Bytes returns the live slice backing [addr, addr+size) for a
// dereferencing executor (e.g. PTR) to read or write through.
func (h *Heap) Bytes(addr, size uint64) ([]byte, error) {
	if addr+size > uint64(len(h.mem)) || addr+size < addr {
		return nil, fmt.Errorf("vmproc: address range [%#x,%#x) out of heap bounds", addr, addr+size)
	}
	return h.mem[addr : addr+size], nil
}
