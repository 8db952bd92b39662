package hal

import (
	"context"
	"sync/atomic"
)

// Cause identifies why the hart entered the trap vector.
type Cause uint8

const (
	CauseSupervisorTimer Cause = iota + 1
	CauseSupervisorExternal
)

func (c Cause) String() string {
	switch c {
	case CauseSupervisorTimer:
		return "supervisor timer"
	case CauseSupervisorExternal:
		return "supervisor external"
	default:
		return "unknown"
	}
}

// TrapVector is the supervisor trap entry installed through stvec.
type TrapVector func(Cause)

// Hart models one RISC-V hardware thread: the sstatus.SIE bit, the sie/sip
// enable and pending bits for timer and external interrupts, and stvec.
//
// Pending interrupts are taken only by the goroutine that currently runs on
// the hart, at instruction boundaries the kernel exposes: Restore, Enable,
// Poll and WaitForInterrupt.
type Hart struct {
	id int

	sie  atomic.Bool
	seie atomic.Bool
	stie atomic.Bool
	seip atomic.Bool
	stip atomic.Bool

	inTrap atomic.Bool
	vector atomic.Pointer[TrapVector]
	wake   chan struct{}
}

// NewHart returns a hart with interrupts disabled and no trap vector.
func NewHart(id int) *Hart {
	return &Hart{id: id, wake: make(chan struct{}, 1)}
}

func (h *Hart) ID() int { return h.id }

// SetTrapVector installs the supervisor trap handler.
func (h *Hart) SetTrapVector(fn TrapVector) {
	h.vector.Store(&fn)
}

// EnableExternal sets sie.SEIE.
func (h *Hart) EnableExternal() { h.seie.Store(true) }

// EnableTimer sets sie.STIE.
func (h *Hart) EnableTimer() { h.stie.Store(true) }

// InterruptsEnabled reports sstatus.SIE.
func (h *Hart) InterruptsEnabled() bool { return h.sie.Load() }

// Disable clears sstatus.SIE and returns its previous value.
func (h *Hart) Disable() bool {
	return h.sie.Swap(false)
}

// Restore sets sstatus.SIE back to prev. Restoring an enabled state takes any
// interrupt that became pending while masked.
func (h *Hart) Restore(prev bool) {
	if !prev {
		h.sie.Store(false)
		return
	}
	h.sie.Store(true)
	h.deliver()
}

// Enable sets sstatus.SIE and takes pending interrupts.
func (h *Hart) Enable() { h.Restore(true) }

// Poll takes pending interrupts if SIE is set.
func (h *Hart) Poll() {
	if h.sie.Load() {
		h.deliver()
	}
}

// InTrap reports whether the trap vector is running.
func (h *Hart) InTrap() bool { return h.inTrap.Load() }

// SetExternalPending drives sip.SEIP. The PLIC is its only writer.
func (h *Hart) SetExternalPending(pending bool) {
	h.seip.Store(pending)
	if pending {
		h.kick()
	}
}

// RaiseTimer sets sip.STIP.
func (h *Hart) RaiseTimer() {
	h.stip.Store(true)
	h.kick()
}

// ClearTimer clears sip.STIP, the effect of programming the next deadline.
func (h *Hart) ClearTimer() { h.stip.Store(false) }

// Pending reports whether an enabled interrupt is waiting, regardless of SIE.
func (h *Hart) Pending() bool {
	return h.pendingCause() != 0
}

// WaitForInterrupt parks the hart until an enabled interrupt is pending, then
// takes it with SIE set, as wfi does in the idle loop.
func (h *Hart) WaitForInterrupt(ctx context.Context) error {
	for !h.Pending() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.wake:
		}
	}
	prev := h.sie.Swap(true)
	h.deliver()
	h.sie.Store(prev)
	return nil
}

func (h *Hart) kick() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Hart) pendingCause() Cause {
	if h.seie.Load() && h.seip.Load() {
		return CauseSupervisorExternal
	}
	if h.stie.Load() && h.stip.Load() {
		return CauseSupervisorTimer
	}
	return 0
}

// deliver mirrors trap entry: SIE is cleared for the handler and set again by
// sret. Traps do not nest.
func (h *Hart) deliver() {
	if h.inTrap.Load() {
		return
	}
	vp := h.vector.Load()
	if vp == nil || *vp == nil {
		return
	}
	for h.sie.Load() {
		cause := h.pendingCause()
		if cause == 0 {
			return
		}
		h.sie.Store(false)
		h.inTrap.Store(true)
		func() {
			defer func() {
				h.inTrap.Store(false)
				h.sie.Store(true)
			}()
			(*vp)(cause)
		}()
	}
}
