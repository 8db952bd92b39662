package hal

import (
	"io"
	"sync"
)

// NS16550a register offsets.
const (
	UARTRBR = 0 // receive buffer (read)
	UARTTHR = 0 // transmit holding (write)
	UARTIER = 1
	UARTFCR = 2
	UARTLCR = 3
	UARTMCR = 4
	UARTLSR = 5
)

// Line status and interrupt-enable bits.
const (
	LSRDataReady = 1 << 0
	LSRTHREmpty  = 1 << 5
	IERRxAvail   = 1 << 0
	MCRDataTerm  = 1 << 0
	MCRReqToSend = 1 << 1
	MCRAuxOut2   = 1 << 3
)

// rxFIFODepth bounds the receive FIFO; bytes beyond it are dropped as an
// overrun, like unread hardware.
const rxFIFODepth = 256

// NS16550a models the UART's byte registers. Received bytes raise the PLIC
// source while IER.RxAvail is set.
type NS16550a struct {
	mu  sync.Mutex
	out io.Writer

	plic *PLIC
	src  uint32

	ier     uint8
	lcr     uint8
	mcr     uint8
	rx      []byte
	overrun int

	// busy counts LSR reads that report THR not empty after each write.
	busy    int
	txDelay int
}

// NewNS16550a returns a UART writing transmitted bytes to out.
func NewNS16550a(out io.Writer, plic *PLIC, src uint32) *NS16550a {
	return &NS16550a{out: out, plic: plic, src: src}
}

// SetTransmitDelay makes the line status report a busy transmitter for n
// polls after each write.
func (u *NS16550a) SetTransmitDelay(n int) {
	u.mu.Lock()
	u.txDelay = n
	u.mu.Unlock()
}

// Receive pushes bytes arriving on the wire into the receive FIFO.
func (u *NS16550a) Receive(p ...byte) {
	u.mu.Lock()
	for _, b := range p {
		if len(u.rx) >= rxFIFODepth {
			u.overrun++
			continue
		}
		u.rx = append(u.rx, b)
	}
	raise := len(u.rx) > 0 && u.ier&IERRxAvail != 0
	u.mu.Unlock()
	if raise && u.plic != nil {
		u.plic.Raise(u.src)
	}
}

// Overruns reports how many received bytes were dropped.
func (u *NS16550a) Overruns() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.overrun
}

// Load8 reads a register.
func (u *NS16550a) Load8(off uintptr) uint8 {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch off {
	case UARTRBR:
		if len(u.rx) == 0 {
			return 0
		}
		b := u.rx[0]
		u.rx = u.rx[1:]
		return b
	case UARTIER:
		return u.ier
	case UARTLCR:
		return u.lcr
	case UARTMCR:
		return u.mcr
	case UARTLSR:
		var lsr uint8
		if len(u.rx) > 0 {
			lsr |= LSRDataReady
		}
		if u.busy > 0 {
			u.busy--
		} else {
			lsr |= LSRTHREmpty
		}
		return lsr
	default:
		return 0
	}
}

// Store8 writes a register.
func (u *NS16550a) Store8(off uintptr, v uint8) {
	u.mu.Lock()
	switch off {
	case UARTTHR:
		if u.out != nil {
			_, _ = u.out.Write([]byte{v})
		}
		u.busy = u.txDelay
	case UARTIER:
		u.ier = v
	case UARTFCR:
		if v&0x2 != 0 {
			u.rx = u.rx[:0]
		}
	case UARTLCR:
		u.lcr = v
	case UARTMCR:
		u.mcr = v
	}
	raise := len(u.rx) > 0 && u.ier&IERRxAvail != 0
	u.mu.Unlock()
	if raise && u.plic != nil {
		u.plic.Raise(u.src)
	}
}
