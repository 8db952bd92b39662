package hal

import "sync"

// PLIC register layout (offsets from the controller base).
const (
	PLICPriorityBase  = 0x0000
	PLICPendingBase   = 0x1000
	PLICEnableBase    = 0x2000
	PLICEnableStride  = 0x80
	PLICContextBase   = 0x20_0000
	PLICContextStride = 0x1000
	PLICClaimOffset   = 0x4

	PLICSources = 64
)

// PLIC models a platform-level interrupt controller with one context per
// (hart, privilege) pair. Context n is served by hart n/2; odd contexts are
// supervisor contexts and drive the hart's SEIP line.
type PLIC struct {
	mu sync.Mutex

	harts []*Hart

	priority  [PLICSources]uint32
	pending   uint64
	claimed   uint64
	enable    []uint64
	threshold []uint32
}

// NewPLIC returns a controller wired to the given harts.
func NewPLIC(harts ...*Hart) *PLIC {
	n := len(harts) * 2
	return &PLIC{
		harts:     harts,
		enable:    make([]uint64, n),
		threshold: make([]uint32, n),
	}
}

// Raise marks a source pending. Devices call it from their own goroutines.
func (p *PLIC) Raise(src uint32) {
	if src >= PLICSources {
		return
	}
	p.mu.Lock()
	p.pending |= 1 << src
	p.updateLocked()
	p.mu.Unlock()
}

// IsPending reports whether a source is pending and not yet claimed.
func (p *PLIC) IsPending(src uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return src < PLICSources && p.pending&(1<<src) != 0
}

// Load32 reads a memory-mapped register.
func (p *PLIC) Load32(off uintptr) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case off >= PLICContextBase:
		ctx, reg := p.contextReg(off)
		if ctx < 0 {
			return 0
		}
		if reg == PLICClaimOffset {
			return p.claimLocked(ctx)
		}
		return p.threshold[ctx]
	case off >= PLICEnableBase:
		ctx := int((off - PLICEnableBase) / PLICEnableStride)
		word := (off - PLICEnableBase) % PLICEnableStride / 4
		if ctx >= len(p.enable) || word > 1 {
			return 0
		}
		return uint32(p.enable[ctx] >> (32 * word))
	case off >= PLICPendingBase:
		word := (off - PLICPendingBase) / 4
		if word > 1 {
			return 0
		}
		return uint32(p.pending >> (32 * word))
	default:
		src := off / 4
		if src >= PLICSources {
			return 0
		}
		return p.priority[src]
	}
}

// Store32 writes a memory-mapped register.
func (p *PLIC) Store32(off uintptr, v uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case off >= PLICContextBase:
		ctx, reg := p.contextReg(off)
		if ctx < 0 {
			return
		}
		if reg == PLICClaimOffset {
			if v < PLICSources {
				p.claimed &^= 1 << v
			}
		} else {
			p.threshold[ctx] = v
		}
	case off >= PLICEnableBase:
		ctx := int((off - PLICEnableBase) / PLICEnableStride)
		word := (off - PLICEnableBase) % PLICEnableStride / 4
		if ctx >= len(p.enable) || word > 1 {
			return
		}
		shift := 32 * word
		p.enable[ctx] = p.enable[ctx]&^(uint64(0xFFFF_FFFF)<<shift) | uint64(v)<<shift
	case off >= PLICPendingBase:
		// Read-only.
		return
	default:
		src := off / 4
		if src < PLICSources {
			p.priority[src] = v & 7
		}
	}
	p.updateLocked()
}

func (p *PLIC) contextReg(off uintptr) (int, uintptr) {
	ctx := int((off - PLICContextBase) / PLICContextStride)
	if ctx >= len(p.threshold) {
		return -1, 0
	}
	return ctx, (off - PLICContextBase) % PLICContextStride
}

// claimLocked returns the highest-priority pending source enabled for ctx,
// or 0 if there is none. Ties go to the lowest id.
func (p *PLIC) claimLocked(ctx int) uint32 {
	best, bestPrio := uint32(0), uint32(0)
	found := false
	for src := uint32(0); src < PLICSources; src++ {
		if !p.eligibleLocked(ctx, src) {
			continue
		}
		if !found || p.priority[src] > bestPrio {
			best, bestPrio, found = src, p.priority[src], true
		}
	}
	if found {
		p.pending &^= 1 << best
		p.claimed |= 1 << best
		p.updateLocked()
	}
	return best
}

func (p *PLIC) eligibleLocked(ctx int, src uint32) bool {
	bit := uint64(1) << src
	return p.pending&bit != 0 &&
		p.claimed&bit == 0 &&
		p.enable[ctx]&bit != 0 &&
		p.priority[src] > p.threshold[ctx]
}

func (p *PLIC) updateLocked() {
	for i, h := range p.harts {
		ctx := i*2 + 1
		asserted := false
		for src := uint32(0); src < PLICSources; src++ {
			if p.eligibleLocked(ctx, src) {
				asserted = true
				break
			}
		}
		h.SetExternalPending(asserted)
	}
}
