package apps

import (
	"image/color"

	"hartos/mm"
	"hartos/syscall"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
)

// fbDisplay draws into the framebuffer mapped by sys_framebuffer.
type fbDisplay struct {
	c    *syscall.Context
	base mm.VirtAddr
	w, h int
}

var _ drivers.Displayer = (*fbDisplay)(nil)

func (d *fbDisplay) Size() (x, y int16) { return int16(d.w), int16(d.h) }

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || int(x) >= d.w || y < 0 || int(y) >= d.h {
		return
	}
	off := mm.VirtAddr((int(y)*d.w + int(x)) * 4)
	d.c.Store(d.base+off, []byte{c.B, c.G, c.R, 0xFF})
}

func (d *fbDisplay) Display() error {
	d.c.FramebufferFlush()
	return nil
}

// guiSimple paints a gradient over the whole framebuffer and flushes it.
func guiSimple(c *syscall.Context) int {
	fb := c.Framebuffer()
	if fb == 0 {
		return -1
	}
	w, h := c.FramebufferSize()
	row := make([]byte, w*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			row[x*4] = byte(x)
			row[x*4+1] = byte(y)
			row[x*4+2] = byte(x + y)
		}
		if c.Store(fb+mm.VirtAddr(y*w*4), row) < 0 {
			return -1
		}
	}
	d := &fbDisplay{c: c, base: fb, w: w, h: h}
	tinyfont.WriteLine(d, &tinyfont.TomThumb, 8, 16, "gui_simple", color.RGBA{R: 255, G: 255, B: 255, A: 255})
	if err := d.Display(); err != nil {
		return -1
	}
	return 0
}
