// Package trap holds the per-thread trap context and the supervisor trap
// vector.
package trap

import "encoding/binary"

const (
	sstatusSPIE = 1 << 5
	sstatusSPP  = 1 << 8

	// ContextSize is the encoded size of a TrapContext in its page.
	ContextSize = (32 + 5) * 8

	// HandlerAddr stands in for the address of the trap handler entry.
	HandlerAddr = 0x8020_0800
)

// Register indices used by the syscall ABI.
const (
	RegSP = 2
	RegA0 = 10
	RegA1 = 11
	RegA2 = 12
)

// TrapContext is the user register file saved on trap entry, followed by
// what the trampoline needs to get back into the kernel.
type TrapContext struct {
	X           [32]uint64
	Sstatus     uint64
	Sepc        uint64
	KernelSatp  uint64
	KernelSp    uint64
	TrapHandler uint64
}

// AppInitContext returns the context a thread starts user mode with.
func AppInitContext(entry, sp, kernelSatp, kernelSp, handler uint64) TrapContext {
	cx := TrapContext{
		Sstatus:     sstatusSPIE &^ sstatusSPP,
		Sepc:        entry,
		KernelSatp:  kernelSatp,
		KernelSp:    kernelSp,
		TrapHandler: handler,
	}
	cx.SetSP(sp)
	return cx
}

func (cx *TrapContext) SetSP(sp uint64) { cx.X[RegSP] = sp }
func (cx TrapContext) SP() uint64       { return cx.X[RegSP] }

// Store encodes the context at the start of page.
func (cx *TrapContext) Store(page []byte) {
	b := page[:ContextSize]
	for i, r := range cx.X {
		binary.LittleEndian.PutUint64(b[i*8:], r)
	}
	tail := b[32*8:]
	binary.LittleEndian.PutUint64(tail[0:], cx.Sstatus)
	binary.LittleEndian.PutUint64(tail[8:], cx.Sepc)
	binary.LittleEndian.PutUint64(tail[16:], cx.KernelSatp)
	binary.LittleEndian.PutUint64(tail[24:], cx.KernelSp)
	binary.LittleEndian.PutUint64(tail[32:], cx.TrapHandler)
}

// Load decodes a context stored by Store.
func Load(page []byte) TrapContext {
	var cx TrapContext
	b := page[:ContextSize]
	for i := range cx.X {
		cx.X[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	tail := b[32*8:]
	cx.Sstatus = binary.LittleEndian.Uint64(tail[0:])
	cx.Sepc = binary.LittleEndian.Uint64(tail[8:])
	cx.KernelSatp = binary.LittleEndian.Uint64(tail[16:])
	cx.KernelSp = binary.LittleEndian.Uint64(tail[24:])
	cx.TrapHandler = binary.LittleEndian.Uint64(tail[32:])
	return cx
}

// Update loads the context in page, applies fn and stores it back.
func Update(page []byte, fn func(cx *TrapContext)) {
	cx := Load(page)
	fn(&cx)
	cx.Store(page)
}
