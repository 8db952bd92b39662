// Package board describes the virt machine the kernel runs on and owns the
// device set built at boot.
package board

import (
	"hartos/drivers"
	"hartos/hal"
	"hartos/kernel"
	"hartos/sync"
)

const (
	ClockFreq = 12_500_000

	VirtPLIC = 0x0C00_0000
	VirtUART = 0x1000_0000

	// FramebufferPhys is where the GPU framebuffer appears in physical
	// memory, above RAM.
	FramebufferPhys = 0x9000_0000
)

// MMIO regions mapped into the kernel address space.
var MMIO = []struct{ Base, Len uint64 }{
	{0x0010_0000, 0x00_2000}, // test device, RTC
	{0x1000_1000, 0x00_1000}, // virtio block
}

// Interrupt sources served by the supervisor context of hart 0.
const (
	IRQBlock    = hal.IRQBlock
	IRQKeyboard = hal.IRQKeyboard
	IRQMouse    = hal.IRQMouse
	IRQUART     = hal.IRQUART
)

var irqSources = []uint32{IRQBlock, IRQKeyboard, IRQMouse, IRQUART}

// Devices is the set of drivers the kernel uses. It is built once at boot
// and shared by the interrupt handler and the syscalls.
type Devices struct {
	PLIC     *drivers.PLIC
	UART     *drivers.UART
	Block    *drivers.Block
	Keyboard *drivers.Input
	Mouse    *drivers.Input
	GPU      *drivers.GPU

	log *kernel.Log
}

// NewDevices builds the drivers for h's devices. Interrupts are routed once
// Init has run.
func NewDevices(h hal.HAL, m *sync.Masking, s sync.Scheduler, log *kernel.Log) *Devices {
	return &Devices{
		PLIC:     drivers.NewPLIC(h.PLIC()),
		UART:     drivers.NewUART(h.UART(), m, s),
		Block:    drivers.NewBlock(h.Block(), m, s),
		Keyboard: drivers.NewInput(h.Keyboard(), m, s),
		Mouse:    drivers.NewInput(h.Mouse(), m, s),
		GPU:      drivers.NewGPU(h.GPU()),
		log:      log,
	}
}

// Init brings up the UART and routes every device source to the supervisor
// context of hart 0.
func (d *Devices) Init(hart int) {
	d.UART.Init()
	d.PLIC.SetThreshold(hart, drivers.Supervisor, 0)
	d.PLIC.SetThreshold(hart, drivers.Machine, 1)
	for _, src := range irqSources {
		d.PLIC.Enable(hart, drivers.Supervisor, src)
		d.PLIC.SetPriority(src, 1)
	}
	d.log.Debugf("board: plic routes %v to hart %d", irqSources, hart)
}

// IrqHandler serves one external interrupt: claim, dispatch, complete.
func (d *Devices) IrqHandler() {
	src := d.PLIC.Claim(0, drivers.Supervisor)
	switch src {
	case IRQBlock:
		d.Block.HandleIRQ()
	case IRQKeyboard:
		d.Keyboard.HandleIRQ()
	case IRQMouse:
		d.Mouse.HandleIRQ()
	case IRQUART:
		d.UART.HandleIRQ()
	default:
		kernel.Raise(kernel.FaultUnsupportedIRQ, "board", "unsupported IRQ %d", src)
	}
	d.PLIC.Complete(0, drivers.Supervisor, src)
}
