package mm

import (
	"fmt"
	"sort"
)

// MapType selects how an area's pages are backed.
type MapType uint8

const (
	// Framed areas own freshly allocated frames.
	Framed MapType = iota
	// Borrowed areas map frames owned by someone else, such as a device.
	Borrowed
)

// MapPermission is the user-visible subset of PTE flags.
type MapPermission uint8

const (
	PermR MapPermission = MapPermission(PTERead)
	PermW MapPermission = MapPermission(PTEWrite)
	PermX MapPermission = MapPermission(PTEExec)
	PermU MapPermission = MapPermission(PTEUser)
)

// MapArea is a contiguous run of virtual pages with one permission.
type MapArea struct {
	VPNs   VPNRange
	Type   MapType
	Perm   MapPermission
	frames map[VPN]*FrameTracker
}

// NewMapArea covers [start, end) rounded out to whole pages.
func NewMapArea(start, end VirtAddr, typ MapType, perm MapPermission) *MapArea {
	return &MapArea{
		VPNs:   VPNRange{Start: start.Floor(), End: end.Ceil()},
		Type:   typ,
		Perm:   perm,
		frames: make(map[VPN]*FrameTracker),
	}
}

// Code is an opaque entry point stored at a user virtual address. The
// syscall layer installs program functions here; sepc selects one.
type Code any

// MemorySet is one address space: its page table, the areas mapped in it
// and the code table of entry points.
type MemorySet struct {
	alloc *FrameAllocator
	pt    *PageTable
	areas []*MapArea

	code     map[VirtAddr]Code
	nextCode VirtAddr
}

// NewBare returns an address space with nothing mapped.
func NewBare(a *FrameAllocator) (*MemorySet, error) {
	pt, err := newPageTable(a)
	if err != nil {
		return nil, err
	}
	return &MemorySet{alloc: a, pt: pt, code: make(map[VirtAddr]Code)}, nil
}

// NewKernelSpace returns the kernel address space: the trampoline plus the
// kernel stacks mapped later.
func NewKernelSpace(a *FrameAllocator) (*MemorySet, error) {
	ms, err := NewBare(a)
	if err != nil {
		return nil, err
	}
	if err := ms.mapTrampoline(); err != nil {
		return nil, err
	}
	return ms, nil
}

func (ms *MemorySet) Token() uint64 { return ms.pt.Token() }

// Allocator returns the frame allocator backing the space.
func (ms *MemorySet) Allocator() *FrameAllocator { return ms.alloc }

func (ms *MemorySet) mapTrampoline() error {
	ppn, err := ms.alloc.Trampoline()
	if err != nil {
		return err
	}
	ms.pt.Map(Trampoline.Floor(), ppn, PTERead|PTEExec)
	return nil
}

// InsertFramedArea maps [start, end) to new zeroed frames.
func (ms *MemorySet) InsertFramedArea(start, end VirtAddr, perm MapPermission) error {
	return ms.Push(NewMapArea(start, end, Framed, perm), nil)
}

// Push maps a framed area and copies data to its start.
func (ms *MemorySet) Push(area *MapArea, data []byte) error {
	if ms.overlaps(area.VPNs) {
		return ErrOverlap
	}
	for vpn := area.VPNs.Start; vpn < area.VPNs.End; vpn++ {
		f, err := ms.alloc.Alloc()
		if err != nil {
			ms.unmapArea(area)
			return err
		}
		area.frames[vpn] = f
		ms.pt.Map(vpn, f.PPN, PTEFlags(area.Perm))
	}
	if len(data) > 0 {
		ms.copyData(area, data)
	}
	ms.areas = append(ms.areas, area)
	return nil
}

// PushNoAlloc maps area onto existing frames without allocating.
func (ms *MemorySet) PushNoAlloc(area *MapArea, ppns PPNRange) error {
	if area.VPNs.Len() > ppns.Len() {
		return fmt.Errorf("mm: %d pages over %d frames", area.VPNs.Len(), ppns.Len())
	}
	if ms.overlaps(area.VPNs) {
		return ErrOverlap
	}
	area.Type = Borrowed
	for i := 0; i < area.VPNs.Len(); i++ {
		ms.pt.Map(area.VPNs.Start+VPN(i), ppns.Start+PPN(i), PTEFlags(area.Perm))
	}
	ms.areas = append(ms.areas, area)
	return nil
}

func (ms *MemorySet) copyData(area *MapArea, data []byte) {
	for vpn := area.VPNs.Start; len(data) > 0 && vpn < area.VPNs.End; vpn++ {
		n := copy(area.frames[vpn].Bytes(), data)
		data = data[n:]
	}
}

func (ms *MemorySet) overlaps(r VPNRange) bool {
	for _, a := range ms.areas {
		if a.VPNs.Overlaps(r) {
			return true
		}
	}
	return false
}

// AreaAt returns the area starting at vpn.
func (ms *MemorySet) AreaAt(vpn VPN) (*MapArea, bool) {
	for _, a := range ms.areas {
		if a.VPNs.Start == vpn {
			return a, true
		}
	}
	return nil, false
}

// RemoveAreaWithStartVPN unmaps the area starting at vpn, freeing owned
// frames.
func (ms *MemorySet) RemoveAreaWithStartVPN(vpn VPN) bool {
	for i, a := range ms.areas {
		if a.VPNs.Start == vpn {
			ms.unmapArea(a)
			ms.areas = append(ms.areas[:i], ms.areas[i+1:]...)
			return true
		}
	}
	return false
}

func (ms *MemorySet) unmapArea(a *MapArea) {
	for vpn := a.VPNs.Start; vpn < a.VPNs.End; vpn++ {
		if f, ok := a.frames[vpn]; ok {
			f.Free()
			delete(a.frames, vpn)
		}
		ms.pt.Unmap(vpn)
	}
}

// Areas reports how many areas are mapped.
func (ms *MemorySet) Areas() int { return len(ms.areas) }

// Translate looks up the entry for vpn.
func (ms *MemorySet) Translate(vpn VPN) (PTE, bool) { return ms.pt.Translate(vpn) }

// TranslateVA resolves a virtual address to a physical one.
func (ms *MemorySet) TranslateVA(va VirtAddr) (PhysAddr, bool) {
	e, ok := ms.pt.Translate(va.Floor())
	if !ok {
		return 0, false
	}
	return e.PPN.Addr() + PhysAddr(va.PageOffset()), true
}

// SetCode installs an entry point at va.
func (ms *MemorySet) SetCode(va VirtAddr, c Code) {
	ms.code[va] = c
	if va >= ms.nextCode {
		ms.nextCode = va + 4
	}
}

// InstallCode stores c at a fresh address and returns it.
func (ms *MemorySet) InstallCode(c Code) VirtAddr {
	va := ms.nextCode
	if va < TextBase {
		va = TextBase
	}
	ms.SetCode(va, c)
	return va
}

// CodeAt returns the entry point at va.
func (ms *MemorySet) CodeAt(va VirtAddr) (Code, bool) {
	c, ok := ms.code[va]
	return c, ok
}

// Clone copies a user address space page by page. Borrowed areas stay
// shared with their owner.
func (ms *MemorySet) Clone() (*MemorySet, error) {
	out, err := NewBare(ms.alloc)
	if err != nil {
		return nil, err
	}
	if err := out.mapTrampoline(); err != nil {
		out.Release()
		return nil, err
	}
	for _, a := range ms.areas {
		na := NewMapArea(a.VPNs.Start.Addr(), a.VPNs.End.Addr(), a.Type, a.Perm)
		if a.Type == Borrowed {
			e, _ := ms.pt.Translate(a.VPNs.Start)
			if err := out.PushNoAlloc(na, PPNRange{Start: e.PPN, End: e.PPN + PPN(a.VPNs.Len())}); err != nil {
				out.Release()
				return nil, err
			}
			continue
		}
		if err := out.Push(na, nil); err != nil {
			out.Release()
			return nil, err
		}
		for vpn := a.VPNs.Start; vpn < a.VPNs.End; vpn++ {
			copy(na.frames[vpn].Bytes(), a.frames[vpn].Bytes())
		}
	}
	for va, c := range ms.code {
		out.SetCode(va, c)
	}
	return out, nil
}

// RecycleDataPages unmaps every area, keeping the page table root so the
// space can still be torn down by Release.
func (ms *MemorySet) RecycleDataPages() {
	for _, a := range ms.areas {
		ms.unmapArea(a)
	}
	ms.areas = nil
}

// Release frees every frame the space owns, including the page table root.
func (ms *MemorySet) Release() {
	ms.RecycleDataPages()
	if ms.pt.root != nil {
		ms.pt.root.Free()
		ms.pt.root = nil
	}
}

// MappedVPNs lists every mapped page in ascending order.
func (ms *MemorySet) MappedVPNs() []VPN {
	out := make([]VPN, 0, ms.pt.Len())
	for vpn := range ms.pt.entries {
		out = append(out, vpn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
