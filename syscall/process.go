package syscall

import (
	"hartos/mm"
	"hartos/task"
	"hartos/trap"
)

func (c *Context) GetPid() int {
	c.enter()
	pid := c.t.Process().Pid()
	c.leave()
	return pid
}

// Exit ends the calling thread; for thread 0 the whole process exits. It
// does not return.
func (c *Context) Exit(code int) {
	c.enter()
	c.sys.k.ExitCurrent(code)
}

func (c *Context) Yield() int {
	c.enter()
	c.sys.k.Yield()
	c.leave()
	return 0
}

// Fork copies the calling process. The child starts in child with the fork
// return value 0 in a0; the parent gets the child's pid, or -1.
func (c *Context) Fork(child Program) int {
	c.enter()
	cp, err := c.t.Process().Fork()
	if err != nil {
		c.sys.log.Warnf("syscall: fork from pid %d: %v", c.t.Process().Pid(), err)
		c.leave()
		return -1
	}
	g := cp.Inner()
	va := g.Get().MemorySet.InstallCode(child)
	g.Release()
	cp.MainThread().UpdateTrapContext(func(cx *trap.TrapContext) {
		cx.Sepc = uint64(va)
		cx.X[trap.RegA0] = 0
	})
	c.leave()
	return cp.Pid()
}

// Exec replaces the calling process image with the named program. On success
// it does not return: the thread restarts at the new entry with args as
// argv. It returns -1 if the program does not exist or cannot be loaded.
func (c *Context) Exec(name string, args []string) int {
	c.enter()
	img, ok := c.sys.load(name)
	if !ok {
		c.leave()
		return -1
	}
	if err := c.t.Process().Exec(img, args); err != nil {
		c.sys.log.Warnf("syscall: exec %s: %v", name, err)
		c.leave()
		return -1
	}
	c.sys.k.Reenter()
	return 0
}

// WaitPid reaps a zombie child; pid -1 matches any child. It returns -1 if
// no child matches and -2 if none of them has exited yet.
func (c *Context) WaitPid(pid int) (int, int) {
	c.enter()
	got, code := c.t.Process().WaitPid(pid)
	c.leave()
	return got, code
}

// Wait is WaitPid that yields until a matching child has exited.
func (c *Context) Wait(pid int) (int, int) {
	for {
		got, code := c.WaitPid(pid)
		if got != -2 {
			return got, code
		}
		c.Yield()
	}
}

// Kill raises signal number sig on process pid.
func (c *Context) Kill(pid, sig int) int {
	c.enter()
	ret := -1
	if p, ok := c.sys.k.Process(pid); ok {
		if flag, ok := task.SignalFromNumber(sig); ok {
			p.Kill(flag)
			ret = 0
		}
	}
	c.leave()
	return ret
}

// Args returns the argv laid out on the user stack by exec.
func (c *Context) Args() []string {
	cx := c.t.TrapContext()
	argc := int(cx.X[trap.RegA0])
	argv := mm.VirtAddr(cx.X[trap.RegA1])
	if argv == 0 {
		return nil
	}
	var args []string
	err := c.memorySet(func(ms *mm.MemorySet) error {
		for i := 0; i < argc; i++ {
			p, err := ms.ReadUint64(argv + mm.VirtAddr(i*8))
			if err != nil {
				return err
			}
			s, err := ms.ReadCString(mm.VirtAddr(p), mm.PageSize)
			if err != nil {
				return err
			}
			args = append(args, s)
		}
		return nil
	})
	if err != nil {
		return nil
	}
	return args
}
