package drivers

import (
	"image/color"

	"hartos/hal"
	"hartos/kernel"

	"tinygo.org/x/drivers"
)

// GPU is the virtio-gpu driver. The framebuffer is set up once at boot and
// stays owned by the device; user programs reach it through a no-allocate
// mapping of its pages.
type GPU struct {
	dev *hal.VirtIOGpu
	fb  []byte
}

// NewGPU sets up the scanout framebuffer.
func NewGPU(dev *hal.VirtIOGpu) *GPU {
	fb, err := dev.SetupFramebuffer()
	if err != nil {
		kernel.RaiseErr(kernel.FaultDevice, "virtio-gpu", err, "setup framebuffer")
	}
	return &GPU{dev: dev, fb: fb}
}

func (g *GPU) Framebuffer() []byte { return g.fb }
func (g *GPU) Resolution() (int, int) {
	return g.dev.Width(), g.dev.Height()
}

// Flush transfers the framebuffer to the scanout.
func (g *GPU) Flush() {
	if err := g.dev.Flush(); err != nil {
		kernel.RaiseErr(kernel.FaultDevice, "virtio-gpu", err, "flush")
	}
}

// Display draws into a B8G8R8A8 framebuffer.
type Display struct {
	buf    []byte
	width  int
	height int
	flush  func() error
}

var _ drivers.Displayer = (*Display)(nil)

// NewDisplay returns a Displayer over buf. flush runs on Display and may be
// nil.
func NewDisplay(buf []byte, width, height int, flush func() error) *Display {
	return &Display{buf: buf, width: width, height: height, flush: flush}
}

// Display returns a Displayer over the GPU framebuffer.
func (g *GPU) Display() *Display {
	return NewDisplay(g.fb, g.dev.Width(), g.dev.Height(), func() error {
		g.Flush()
		return nil
	})
}

func (d *Display) Size() (x, y int16) { return int16(d.width), int16(d.height) }

func (d *Display) SetPixel(x, y int16, c color.RGBA) {
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.width || iy < 0 || iy >= d.height {
		return
	}
	hal.PutBGRA(d.buf, (iy*d.width+ix)*4, c.R, c.G, c.B)
}

func (d *Display) Display() error {
	if d.flush == nil {
		return nil
	}
	return d.flush()
}

// FillRectangle fills a clipped rectangle.
func (d *Display) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	x0, y0 := max(int(x), 0), max(int(y), 0)
	x1, y1 := min(int(x)+int(width), d.width), min(int(y)+int(height), d.height)
	for iy := y0; iy < y1; iy++ {
		row := iy * d.width * 4
		for ix := x0; ix < x1; ix++ {
			hal.PutBGRA(d.buf, row+ix*4, c.R, c.G, c.B)
		}
	}
	return nil
}

// Clear fills the whole display.
func (d *Display) Clear(c color.RGBA) {
	_ = d.FillRectangle(0, 0, int16(d.width), int16(d.height), c)
}
