package syscall

import (
	"hartos/hal"
	"hartos/mm"
)

// DiskRead reads disk block id into the 512 bytes of user memory at va.
func (c *Context) DiskRead(id uint64, va mm.VirtAddr) int {
	c.enter()
	ret := -1
	if id < c.sys.dev.Block.Blocks() {
		buf := make([]byte, hal.BlockSize)
		c.sys.dev.Block.ReadBlock(id, buf)
		if c.Store(va, buf) == 0 {
			ret = 0
		}
	}
	c.leave()
	return ret
}

// DiskWrite writes the 512 bytes of user memory at va to disk block id.
func (c *Context) DiskWrite(id uint64, va mm.VirtAddr) int {
	c.enter()
	ret := -1
	if id < c.sys.dev.Block.Blocks() {
		if buf, err := c.Load(va, hal.BlockSize); err == nil {
			c.sys.dev.Block.WriteBlock(id, buf)
			ret = 0
		}
	}
	c.leave()
	return ret
}

// DiskBlocks reports the disk capacity.
func (c *Context) DiskBlocks() uint64 { return c.sys.dev.Block.Blocks() }
