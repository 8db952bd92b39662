// Package mm is the hosted memory collaborator: page-granular simulated
// physical memory, a frame allocator, per-process address spaces and the
// helpers the kernel uses to reach user memory through them.
package mm

const (
	PageSizeBits = 12
	PageSize     = 1 << PageSizeBits

	UserStackSize   = PageSize * 2
	KernelStackSize = PageSize * 2

	// Trampoline is the top page of every address space.
	Trampoline VirtAddr = ^VirtAddr(0) - PageSize + 1
	// TrapContextBase is the trap context page of tid 0; tid n sits n pages
	// below it.
	TrapContextBase VirtAddr = Trampoline - PageSize

	// TextBase is where the loader places program images.
	TextBase VirtAddr = 0x1_0000

	KernelEnd PhysAddr = 0x8040_0000
	MemoryEnd PhysAddr = 0x8800_0000
)

type (
	PhysAddr uint64
	VirtAddr uint64
	PPN      uint64
	VPN      uint64
)

func (a PhysAddr) Floor() PPN     { return PPN(a / PageSize) }
func (a PhysAddr) Ceil() PPN      { return PPN((a + PageSize - 1) / PageSize) }
func (a PhysAddr) PageOffset() int { return int(a & (PageSize - 1)) }

func (a VirtAddr) Floor() VPN { return VPN(a / PageSize) }

func (a VirtAddr) Ceil() VPN {
	if a == 0 {
		return 0
	}
	return VPN((a-1)/PageSize + 1)
}

func (a VirtAddr) PageOffset() int { return int(a & (PageSize - 1)) }
func (a VirtAddr) Aligned() bool   { return a.PageOffset() == 0 }

func (p PPN) Addr() PhysAddr { return PhysAddr(p) << PageSizeBits }
func (v VPN) Addr() VirtAddr { return VirtAddr(v) << PageSizeBits }

// VPNRange is the half-open page range [Start, End).
type VPNRange struct {
	Start, End VPN
}

func (r VPNRange) Len() int             { return int(r.End - r.Start) }
func (r VPNRange) Contains(v VPN) bool  { return v >= r.Start && v < r.End }
func (r VPNRange) Overlaps(o VPNRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// PPNRange is the half-open frame range [Start, End).
type PPNRange struct {
	Start, End PPN
}

func (r PPNRange) Len() int { return int(r.End - r.Start) }
