package mm

import "hartos/kernel"

// PTEFlags are the Sv39 page table entry bits.
type PTEFlags uint8

const (
	PTEValid PTEFlags = 1 << iota
	PTERead
	PTEWrite
	PTEExec
	PTEUser
	PTEGlobal
	PTEAccessed
	PTEDirty
)

// PTE maps one virtual page to a frame.
type PTE struct {
	PPN   PPN
	Flags PTEFlags
}

func (e PTE) Valid() bool      { return e.Flags&PTEValid != 0 }
func (e PTE) Readable() bool   { return e.Flags&PTERead != 0 }
func (e PTE) Writable() bool   { return e.Flags&PTEWrite != 0 }
func (e PTE) Executable() bool { return e.Flags&PTEExec != 0 }

// PageTable is a flat VPN to PTE map standing in for the three-level walk.
// Its root frame provides the satp token.
type PageTable struct {
	root    *FrameTracker
	entries map[VPN]PTE
}

func newPageTable(a *FrameAllocator) (*PageTable, error) {
	root, err := a.Alloc()
	if err != nil {
		return nil, err
	}
	return &PageTable{root: root, entries: make(map[VPN]PTE)}, nil
}

// Map installs vpn -> ppn. Mapping a mapped page is a kernel bug.
func (pt *PageTable) Map(vpn VPN, ppn PPN, flags PTEFlags) {
	if e, ok := pt.entries[vpn]; ok && e.Valid() {
		kernel.Raise(kernel.FaultUnknown, "mm", "vpn %#x mapped twice", uint64(vpn))
	}
	pt.entries[vpn] = PTE{PPN: ppn, Flags: flags | PTEValid}
}

func (pt *PageTable) Unmap(vpn VPN) {
	delete(pt.entries, vpn)
}

func (pt *PageTable) Translate(vpn VPN) (PTE, bool) {
	e, ok := pt.entries[vpn]
	return e, ok && e.Valid()
}

// Token is the satp value selecting this table in Sv39 mode.
func (pt *PageTable) Token() uint64 {
	return 8<<60 | uint64(pt.root.PPN)
}

// Len reports the number of mapped pages.
func (pt *PageTable) Len() int { return len(pt.entries) }
