package trap

import (
	"hartos/hal"
	"hartos/kernel"
)

// Handlers are the kernel's reactions to supervisor interrupts. Both run
// with interrupts masked and must not suspend.
type Handlers struct {
	// External serves one PLIC claim.
	External func()
	// Timer runs after the timer line is cleared.
	Timer func()
}

// NewVector returns the stvec handler for h.
func NewVector(h *hal.Hart, log *kernel.Log, hs Handlers) hal.TrapVector {
	return func(cause hal.Cause) {
		switch cause {
		case hal.CauseSupervisorExternal:
			if hs.External != nil {
				hs.External()
			}
		case hal.CauseSupervisorTimer:
			h.ClearTimer()
			if hs.Timer != nil {
				hs.Timer()
			}
		default:
			log.Errorf("trap: unsupported cause %v", cause)
			kernel.Raise(kernel.FaultUnknown, "trap", "unsupported trap %v", cause)
		}
	}
}
