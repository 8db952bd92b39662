//go:build !tinygo

package hal

import (
	"fmt"
	"os"
	"sync"
)

// Interrupt source ids on the host board.
const (
	IRQBlock    = 0
	IRQKeyboard = 5
	IRQMouse    = 6
	IRQUART     = 10
)

// HostConfig selects host backends.
type HostConfig struct {
	// DiskPath is a raw disk image; empty means an in-memory disk.
	DiskPath string
	// DiskBlocks sizes a new or in-memory disk.
	DiskBlocks int
	// TimerHz is the supervisor timer rate; 0 disables the timer.
	TimerHz int
	// Stdin feeds the UART receive line when true.
	Stdin bool
}

type hostHAL struct {
	logger *hostLogger
	hart   *Hart
	plic   *PLIC
	uart   *NS16550a
	blk    *VirtIOBlk
	disk   BlockStore
	kbd    *VirtIOInput
	mouse  *VirtIOInput
	gpu    *VirtIOGpu
	t      *hostTime
}

// New returns a host HAL implementation.
func New(cfg HostConfig) (HAL, error) {
	if cfg.DiskBlocks <= 0 {
		cfg.DiskBlocks = 8192
	}
	logger := &hostLogger{w: os.Stderr}
	hart := NewHart(0)
	plic := NewPLIC(hart)

	var disk BlockStore
	if cfg.DiskPath != "" {
		d, err := openHostDisk(cfg.DiskPath, cfg.DiskBlocks)
		if err != nil {
			return nil, err
		}
		disk = d
	} else {
		disk = NewMemStore(cfg.DiskBlocks)
	}

	h := &hostHAL{
		logger: logger,
		hart:   hart,
		plic:   plic,
		uart:   NewNS16550a(os.Stdout, plic, IRQUART),
		blk:    NewVirtIOBlk(disk, plic, IRQBlock),
		disk:   disk,
		kbd:    NewVirtIOInput("keyboard", plic, IRQKeyboard),
		mouse:  NewVirtIOInput("mouse", plic, IRQMouse),
		gpu:    NewVirtIOGpu(GPUWidth, GPUHeight),
		t:      newHostTime(hart, cfg.TimerHz),
	}
	if cfg.Stdin {
		go pumpSerial(os.Stdin, h.uart, logger)
	}
	return h, nil
}

func (h *hostHAL) Logger() Logger         { return h.logger }
func (h *hostHAL) Hart() *Hart            { return h.hart }
func (h *hostHAL) PLIC() *PLIC            { return h.plic }
func (h *hostHAL) UART() *NS16550a        { return h.uart }
func (h *hostHAL) Block() *VirtIOBlk      { return h.blk }
func (h *hostHAL) Keyboard() *VirtIOInput { return h.kbd }
func (h *hostHAL) Mouse() *VirtIOInput    { return h.mouse }
func (h *hostHAL) GPU() *VirtIOGpu        { return h.gpu }

// Close releases host resources backing the devices.
func (h *hostHAL) Close() error {
	if c, ok := h.disk.(*hostDisk); ok {
		return c.Close()
	}
	return nil
}

type hostLogger struct {
	mu sync.Mutex
	w  *os.File
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}
