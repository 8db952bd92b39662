package syscall

import (
	"hartos/fs"
	"hartos/mm"
)

// maxTransfer bounds the bytes one Read or Write moves.
const maxTransfer = 64 << 10

func (c *Context) file(fd int) (fs.File, bool) {
	g := c.t.Process().Inner()
	defer g.Release()
	return g.Get().FD(fd)
}

// Read reads up to n bytes from fd into user memory at va. It returns the
// byte count or -1.
func (c *Context) Read(fd int, va mm.VirtAddr, n int) int {
	c.enter()
	f, ok := c.file(fd)
	if !ok || !f.Readable() || n < 0 {
		c.leave()
		return -1
	}
	buf := make([]byte, min(n, maxTransfer))
	got := f.Read(buf)
	if got > 0 {
		if err := c.memorySet(func(ms *mm.MemorySet) error { return ms.WriteBytes(va, buf[:got]) }); err != nil {
			got = -1
		}
	}
	c.leave()
	return got
}

// Write writes n bytes of user memory at va to fd. It returns the byte count
// or -1.
func (c *Context) Write(fd int, va mm.VirtAddr, n int) int {
	c.enter()
	f, ok := c.file(fd)
	if !ok || !f.Writable() || n < 0 {
		c.leave()
		return -1
	}
	n = min(n, maxTransfer)
	var buf []byte
	err := c.memorySet(func(ms *mm.MemorySet) error {
		var err error
		buf, err = ms.ReadBytes(va, n)
		return err
	})
	if err != nil {
		c.leave()
		return -1
	}
	ret := f.Write(buf)
	c.leave()
	return ret
}

func (c *Context) Close(fd int) int {
	c.enter()
	ret := -1
	g := c.t.Process().Inner()
	in := g.Get()
	if _, ok := in.FD(fd); ok {
		in.FDs[fd] = nil
		ret = 0
	}
	g.Release()
	c.leave()
	return ret
}

// Dup opens a second fd on the file behind fd.
func (c *Context) Dup(fd int) int {
	c.enter()
	ret := -1
	g := c.t.Process().Inner()
	in := g.Get()
	if f, ok := in.FD(fd); ok {
		ret = in.AllocFD()
		in.FDs[ret] = f
	}
	g.Release()
	c.leave()
	return ret
}

// Print writes s to stdout through a scratch buffer on the user stack.
func (c *Context) Print(s string) {
	const chunk = 128
	if c.scratch == 0 {
		c.scratch = c.Alloca(chunk)
		if c.scratch == 0 {
			return
		}
	}
	for len(s) > 0 {
		n := min(len(s), chunk)
		if c.Store(c.scratch, []byte(s[:n])) < 0 {
			return
		}
		c.Write(1, c.scratch, n)
		s = s[n:]
	}
}

// Getchar reads one byte from stdin.
func (c *Context) Getchar() byte {
	if c.scratch == 0 {
		c.scratch = c.Alloca(128)
	}
	if c.Read(0, c.scratch, 1) != 1 {
		return 0
	}
	b, _ := c.Load(c.scratch, 1)
	if len(b) != 1 {
		return 0
	}
	return b[0]
}
