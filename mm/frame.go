package mm

import (
	"errors"
	"fmt"

	"hartos/kernel"
	"hartos/sync"
)

var (
	ErrOutOfFrames = errors.New("mm: out of physical frames")
	ErrUnmapped    = errors.New("mm: address not mapped")
	ErrOverlap     = errors.New("mm: area overlaps an existing mapping")
	ErrBadLength   = errors.New("mm: negative length")
)

// PhysMem is simulated physical memory. RAM frames are backed on allocation;
// device ranges alias a driver-owned buffer so user mappings reach it
// directly.
type PhysMem struct {
	pages map[PPN][]byte
}

func NewPhysMem() *PhysMem {
	return &PhysMem{pages: make(map[PPN][]byte)}
}

// Page returns the backing bytes of a frame, or nil if nothing backs it.
func (m *PhysMem) Page(ppn PPN) []byte { return m.pages[ppn] }

// MapDevice aliases buf at base and returns the frames it covers. A short
// final page is padded so every frame is PageSize long.
func (m *PhysMem) MapDevice(base PhysAddr, buf []byte) PPNRange {
	r := PPNRange{Start: base.Floor(), End: (base + PhysAddr(len(buf))).Ceil()}
	for i := 0; i < r.Len(); i++ {
		lo := i * PageSize
		hi := lo + PageSize
		if hi <= len(buf) {
			m.pages[r.Start+PPN(i)] = buf[lo:hi:hi]
			continue
		}
		page := make([]byte, PageSize)
		copy(page, buf[lo:])
		m.pages[r.Start+PPN(i)] = page
	}
	return r
}

type frameState struct {
	current   PPN
	end       PPN
	recycled  []PPN
	allocated map[PPN]bool
}

// FrameAllocator hands out RAM frames from [start, end), reusing freed
// frames first.
type FrameAllocator struct {
	mem   *PhysMem
	state *sync.Cell[frameState]

	trampoline *FrameTracker
}

// NewFrameAllocator manages the frames between start and end.
func NewFrameAllocator(m *sync.Masking, mem *PhysMem, start, end PhysAddr) *FrameAllocator {
	return &FrameAllocator{
		mem: mem,
		state: sync.NewCell(m, frameState{
			current:   start.Ceil(),
			end:       end.Floor(),
			allocated: make(map[PPN]bool),
		}),
	}
}

// Mem returns the physical memory the allocator backs frames in.
func (a *FrameAllocator) Mem() *PhysMem { return a.mem }

// FrameTracker owns one allocated frame until Free.
type FrameTracker struct {
	PPN PPN
	a   *FrameAllocator
}

// Alloc returns a zeroed frame.
func (a *FrameAllocator) Alloc() (*FrameTracker, error) {
	g := a.state.Access()
	defer g.Release()
	s := g.Get()
	var ppn PPN
	switch {
	case len(s.recycled) > 0:
		ppn = s.recycled[len(s.recycled)-1]
		s.recycled = s.recycled[:len(s.recycled)-1]
	case s.current < s.end:
		ppn = s.current
		s.current++
	default:
		return nil, ErrOutOfFrames
	}
	s.allocated[ppn] = true
	if page := a.mem.pages[ppn]; page != nil {
		clear(page)
	} else {
		a.mem.pages[ppn] = make([]byte, PageSize)
	}
	return &FrameTracker{PPN: ppn, a: a}, nil
}

func (a *FrameAllocator) dealloc(ppn PPN) {
	g := a.state.Access()
	s := g.Get()
	if !s.allocated[ppn] {
		g.Release()
		kernel.Raise(kernel.FaultDoubleRelease, "mm", "frame ppn=%#x has not been allocated", uint64(ppn))
	}
	delete(s.allocated, ppn)
	s.recycled = append(s.recycled, ppn)
	g.Release()
}

// Allocated reports how many frames are live.
func (a *FrameAllocator) Allocated() int {
	g := a.state.Access()
	defer g.Release()
	return len(g.Get().allocated)
}

// Trampoline returns the shared trampoline frame, allocating it once.
func (a *FrameAllocator) Trampoline() (PPN, error) {
	if a.trampoline == nil {
		f, err := a.Alloc()
		if err != nil {
			return 0, fmt.Errorf("trampoline: %w", err)
		}
		a.trampoline = f
	}
	return a.trampoline.PPN, nil
}

// Bytes returns the frame's backing page.
func (f *FrameTracker) Bytes() []byte { return f.a.mem.pages[f.PPN] }

// Free returns the frame to its allocator.
func (f *FrameTracker) Free() { f.a.dealloc(f.PPN) }
