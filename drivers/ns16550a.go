package drivers

import (
	"hartos/hal"
	"hartos/sync"
)

// UART is the NS16550a console driver. Received bytes are buffered by the
// interrupt handler; Read blocks on the buffer, Write busy-waits on the
// transmitter.
type UART struct {
	regs *hal.NS16550a
	rx   *Bridge[byte]
}

// NewUART returns the driver for regs. Call Init before enabling its
// interrupt source.
func NewUART(regs *hal.NS16550a, m *sync.Masking, s sync.Scheduler) *UART {
	return &UART{regs: regs, rx: NewBridge[byte](m, s)}
}

// Init raises DTR, RTS and OUT2 and enables the receive interrupt.
func (u *UART) Init() {
	u.rx.Exclusive(func() {
		u.regs.Store8(hal.UARTMCR, hal.MCRDataTerm|hal.MCRReqToSend|hal.MCRAuxOut2)
		u.regs.Store8(hal.UARTIER, hal.IERRxAvail)
	})
}

func (u *UART) receive() (byte, bool) {
	if u.regs.Load8(hal.UARTLSR)&hal.LSRDataReady == 0 {
		return 0, false
	}
	return u.regs.Load8(hal.UARTRBR), true
}

// Read blocks until a byte has been received.
func (u *UART) Read() byte { return u.rx.Read() }

// Write transmits b once the holding register is empty.
func (u *UART) Write(b byte) {
	u.rx.Exclusive(func() {
		for u.regs.Load8(hal.UARTLSR)&hal.LSRTHREmpty == 0 {
		}
		u.regs.Store8(hal.UARTTHR, b)
	})
}

// ReadBufferIsEmpty reports whether no received byte is waiting.
func (u *UART) ReadBufferIsEmpty() bool { return u.rx.IsEmpty() }

// HandleIRQ drains the receive FIFO.
func (u *UART) HandleIRQ() {
	u.rx.HandleIRQ(func(push func(byte)) {
		for {
			b, ok := u.receive()
			if !ok {
				return
			}
			push(b)
		}
	})
}
