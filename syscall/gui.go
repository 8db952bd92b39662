package syscall

import "hartos/mm"

// FBVAddr is where Framebuffer maps the GPU framebuffer in user space.
const FBVAddr mm.VirtAddr = 0x1000_0000

// Framebuffer maps the GPU framebuffer read-write into the calling process
// and returns its address. The mapping borrows the device frames; calling it
// again returns the same address without mapping anything new.
func (c *Context) Framebuffer() mm.VirtAddr {
	c.enter()
	n := len(c.sys.dev.GPU.Framebuffer())
	err := c.memorySet(func(ms *mm.MemorySet) error {
		if _, ok := ms.AreaAt(FBVAddr.Floor()); ok {
			return nil
		}
		area := mm.NewMapArea(FBVAddr, FBVAddr+mm.VirtAddr(n), mm.Borrowed, mm.PermR|mm.PermW|mm.PermU)
		return ms.PushNoAlloc(area, c.sys.fb)
	})
	c.leave()
	if err != nil {
		c.sys.log.Warnf("syscall: framebuffer for pid %d: %v", c.t.Process().Pid(), err)
		return 0
	}
	return FBVAddr
}

// FramebufferFlush pushes the framebuffer to the scanout.
func (c *Context) FramebufferFlush() int {
	c.enter()
	c.sys.dev.GPU.Flush()
	c.leave()
	return 0
}

// FramebufferSize reports the scanout resolution.
func (c *Context) FramebufferSize() (int, int) {
	return c.sys.dev.GPU.Resolution()
}

// EventGet returns the next buffered input event, keyboard first, then
// mouse, packed as type<<48 | code<<32 | value. It returns 0 when both
// buffers are empty.
func (c *Context) EventGet() uint64 {
	c.enter()
	var ev uint64
	if kb := c.sys.dev.Keyboard; !kb.IsEmpty() {
		ev = kb.ReadEvent()
	} else if m := c.sys.dev.Mouse; !m.IsEmpty() {
		ev = m.ReadEvent()
	}
	c.leave()
	return ev
}

// KeyPressed returns 1 if the serial receive buffer is empty and 0
// otherwise.
func (c *Context) KeyPressed() int {
	c.enter()
	ret := 0
	if c.sys.dev.UART.ReadBufferIsEmpty() {
		ret = 1
	}
	c.leave()
	return ret
}
