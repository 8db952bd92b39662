package hal

import "errors"

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var (
	ErrNotImplemented = errors.New("not implemented")
	ErrBlockRange     = errors.New("block out of range")
	ErrBlockSize      = errors.New("buffer is not one block")
	ErrQueueFull      = errors.New("virtqueue full")
	ErrNotReady       = errors.New("device not ready")
)

// Framebuffer is a linear 32bpp B8G8R8A8 pixel buffer.
type Framebuffer interface {
	Width() int
	Height() int
	StrideBytes() int
	Buffer() []byte
}

// BlockStore backs a virtio block device.
type BlockStore interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() int64
}

// HAL provides the only contact point between the kernel and the machine.
//
// Every device raises its interrupt through the PLIC; the PLIC drives the
// hart's external interrupt line.
type HAL interface {
	Logger() Logger
	Hart() *Hart
	PLIC() *PLIC
	UART() *NS16550a
	Block() *VirtIOBlk
	Keyboard() *VirtIOInput
	Mouse() *VirtIOInput
	GPU() *VirtIOGpu
}
