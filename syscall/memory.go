package syscall

import "hartos/mm"

// Load and Store are the program's own memory accesses. They go through the
// process page table, so an unmapped address fails like a page fault would,
// but they are not traps.

// Load reads n bytes of user memory at va.
func (c *Context) Load(va mm.VirtAddr, n int) ([]byte, error) {
	var out []byte
	err := c.memorySet(func(ms *mm.MemorySet) error {
		var err error
		out, err = ms.ReadBytes(va, n)
		return err
	})
	return out, err
}

// Store writes data to user memory at va. It returns -1 on an unmapped
// address.
func (c *Context) Store(va mm.VirtAddr, data []byte) int {
	err := c.memorySet(func(ms *mm.MemorySet) error { return ms.WriteBytes(va, data) })
	if err != nil {
		return -1
	}
	return 0
}

func (c *Context) LoadUint64(va mm.VirtAddr) (uint64, error) {
	var v uint64
	err := c.memorySet(func(ms *mm.MemorySet) error {
		var err error
		v, err = ms.ReadUint64(va)
		return err
	})
	return v, err
}

func (c *Context) StoreUint64(va mm.VirtAddr, v uint64) int {
	if err := c.memorySet(func(ms *mm.MemorySet) error { return ms.WriteUint64(va, v) }); err != nil {
		return -1
	}
	return 0
}

// Alloca carves n bytes, 8-byte aligned, off the thread's user stack. It
// returns 0 once the stack is exhausted.
func (c *Context) Alloca(n int) mm.VirtAddr {
	res := c.t.UserRes()
	if res == nil || n < 0 {
		return 0
	}
	bottom := res.UstackTop() - mm.UserStackSize
	size := mm.VirtAddr((n + 7) &^ 7)
	if c.sp < bottom+size {
		return 0
	}
	c.sp -= size
	return c.sp
}
