package drivers

import (
	"hartos/hal"
	"hartos/kernel"
)

// IntrTargetPriority selects the privilege level of a PLIC context.
type IntrTargetPriority int

const (
	Machine    IntrTargetPriority = 0
	Supervisor IntrTargetPriority = 1
)

func (p IntrTargetPriority) String() string {
	switch p {
	case Machine:
		return "machine"
	case Supervisor:
		return "supervisor"
	default:
		return "unknown"
	}
}

// PLIC drives the platform-level interrupt controller registers.
type PLIC struct {
	regs *hal.PLIC
}

func NewPLIC(regs *hal.PLIC) *PLIC { return &PLIC{regs: regs} }

func contextID(hart int, prio IntrTargetPriority) uintptr {
	switch prio {
	case Machine, Supervisor:
		return uintptr(hart*2 + int(prio))
	}
	kernel.Raise(kernel.FaultDevice, "plic", "bad target priority %d", prio)
	return 0
}

func contextReg(hart int, prio IntrTargetPriority) uintptr {
	return hal.PLICContextBase + hal.PLICContextStride*contextID(hart, prio)
}

// SetPriority sets a source's priority (0 disables it, 7 is the highest).
func (p *PLIC) SetPriority(src uint32, priority uint32) {
	if priority > 7 {
		kernel.Raise(kernel.FaultDevice, "plic", "priority %d out of range", priority)
	}
	p.regs.Store32(hal.PLICPriorityBase+4*uintptr(src), priority)
}

func (p *PLIC) Priority(src uint32) uint32 {
	return p.regs.Load32(hal.PLICPriorityBase + 4*uintptr(src))
}

func (p *PLIC) enableReg(hart int, prio IntrTargetPriority, src uint32) (uintptr, uint32) {
	off := hal.PLICEnableBase + hal.PLICEnableStride*contextID(hart, prio) + 4*uintptr(src/32)
	return off, 1 << (src % 32)
}

// Enable lets src interrupt the (hart, prio) context.
func (p *PLIC) Enable(hart int, prio IntrTargetPriority, src uint32) {
	off, bit := p.enableReg(hart, prio, src)
	p.regs.Store32(off, p.regs.Load32(off)|bit)
}

func (p *PLIC) Disable(hart int, prio IntrTargetPriority, src uint32) {
	off, bit := p.enableReg(hart, prio, src)
	p.regs.Store32(off, p.regs.Load32(off)&^bit)
}

// SetThreshold masks sources whose priority does not exceed threshold.
func (p *PLIC) SetThreshold(hart int, prio IntrTargetPriority, threshold uint32) {
	p.regs.Store32(contextReg(hart, prio), threshold)
}

func (p *PLIC) Threshold(hart int, prio IntrTargetPriority) uint32 {
	return p.regs.Load32(contextReg(hart, prio))
}

// Claim takes the highest-priority pending source, 0 if none.
func (p *PLIC) Claim(hart int, prio IntrTargetPriority) uint32 {
	return p.regs.Load32(contextReg(hart, prio) + hal.PLICClaimOffset)
}

// Complete ends the handling of a claimed source.
func (p *PLIC) Complete(hart int, prio IntrTargetPriority, src uint32) {
	p.regs.Store32(contextReg(hart, prio)+hal.PLICClaimOffset, src)
}
