package syscall

// ThreadCreate starts a thread of the calling process in entry with arg. It
// returns the new tid, or -1.
func (c *Context) ThreadCreate(entry ThreadEntry, arg uint64) int {
	c.enter()
	p := c.t.Process()
	g := p.Inner()
	va := g.Get().MemorySet.InstallCode(entry)
	g.Release()
	t, err := p.ThreadCreate(va, arg)
	if err != nil {
		c.sys.log.Warnf("syscall: thread create in pid %d: %v", p.Pid(), err)
		c.leave()
		return -1
	}
	c.leave()
	return t.Tid()
}

func (c *Context) GetTid() int {
	c.enter()
	tid := c.t.Tid()
	c.leave()
	return tid
}

// WaitTid reaps thread tid and returns its exit code. It returns -1 for the
// caller itself or an unknown tid and -2 while the thread still runs.
func (c *Context) WaitTid(tid int) int {
	c.enter()
	code := c.t.Process().WaitTid(c.t, tid)
	c.leave()
	return code
}

// Join is WaitTid that yields until the thread has exited.
func (c *Context) Join(tid int) int {
	for {
		code := c.WaitTid(tid)
		if code != -2 {
			return code
		}
		c.Yield()
	}
}
