package hal

import (
	"errors"
	"sync"
)

// Default virtio-gpu scanout resolution.
const (
	GPUWidth  = 1280
	GPUHeight = 800
)

var errGPUNoFramebuffer = errors.New("virtio-gpu: framebuffer not set up")

// VirtIOGpu models a virtio-gpu scanout with a guest-owned B8G8R8A8
// framebuffer. Flush copies the framebuffer to the scanout the host presents.
type VirtIOGpu struct {
	mu      sync.Mutex
	width   int
	height  int
	fb      []byte
	scanout []byte
	flushes uint64
	onFlush func()
}

// NewVirtIOGpu returns a GPU with the given resolution.
func NewVirtIOGpu(width, height int) *VirtIOGpu {
	return &VirtIOGpu{width: width, height: height}
}

func (g *VirtIOGpu) Width() int       { return g.width }
func (g *VirtIOGpu) Height() int      { return g.height }
func (g *VirtIOGpu) StrideBytes() int { return g.width * 4 }

// Buffer returns the framebuffer, nil before SetupFramebuffer.
func (g *VirtIOGpu) Buffer() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fb
}

// SetupFramebuffer allocates the framebuffer once and returns it.
func (g *VirtIOGpu) SetupFramebuffer() ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fb == nil {
		g.fb = make([]byte, g.width*g.height*4)
		g.scanout = make([]byte, len(g.fb))
	}
	return g.fb, nil
}

// OnFlush installs a hook run after each flush.
func (g *VirtIOGpu) OnFlush(fn func()) {
	g.mu.Lock()
	g.onFlush = fn
	g.mu.Unlock()
}

// Flush transfers the framebuffer to the scanout.
func (g *VirtIOGpu) Flush() error {
	g.mu.Lock()
	if g.fb == nil {
		g.mu.Unlock()
		return errGPUNoFramebuffer
	}
	copy(g.scanout, g.fb)
	g.flushes++
	fn := g.onFlush
	g.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// Flushes reports how many flushes completed.
func (g *VirtIOGpu) Flushes() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.flushes
}

// SnapshotScanout copies the last flushed frame into dst.
func (g *VirtIOGpu) SnapshotScanout(dst []byte) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return copy(dst, g.scanout)
}
