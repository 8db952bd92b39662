package syscall

import (
	"hartos/sync"
	"hartos/task"
)

// handle looks up slot id of a process table.
func handle[T comparable](table []T, id int) (T, bool) {
	var zero T
	if id < 0 || id >= len(table) || table[id] == zero {
		return zero, false
	}
	return table[id], true
}

// lookup fetches an object from the calling process and releases the process
// before the caller blocks on it.
func lookup[T comparable](c *Context, pick func(in *task.ProcessInner) []T, id int) (T, bool) {
	g := c.t.Process().Inner()
	defer g.Release()
	return handle(pick(g.Get()), id)
}

func mutexes(in *task.ProcessInner) []sync.Mutex         { return in.Mutexes }
func semaphores(in *task.ProcessInner) []*sync.Semaphore { return in.Semaphores }
func condvars(in *task.ProcessInner) []*sync.Condvar     { return in.Condvars }

// MutexCreate allocates a mutex and returns its id. A blocking mutex parks
// contenders; otherwise they spin by yielding.
func (c *Context) MutexCreate(blocking bool) int {
	c.enter()
	k := c.sys.k
	var m sync.Mutex
	if blocking {
		m = sync.NewMutexBlocking(k.Masking(), k)
	} else {
		m = sync.NewMutexSpin(k.Masking(), k)
	}
	g := c.t.Process().Inner()
	in := g.Get()
	id := in.AllocMutex()
	in.Mutexes[id] = m
	g.Release()
	c.leave()
	return id
}

func (c *Context) MutexLock(id int) int {
	c.enter()
	m, ok := lookup(c, mutexes, id)
	if !ok {
		c.leave()
		return -1
	}
	m.Lock()
	c.leave()
	return 0
}

func (c *Context) MutexUnlock(id int) int {
	c.enter()
	m, ok := lookup(c, mutexes, id)
	if !ok {
		c.leave()
		return -1
	}
	m.Unlock()
	c.leave()
	return 0
}

// SemaphoreCreate allocates a semaphore holding count resources.
func (c *Context) SemaphoreCreate(count int) int {
	c.enter()
	k := c.sys.k
	s := sync.NewSemaphore(k.Masking(), k, count)
	g := c.t.Process().Inner()
	in := g.Get()
	id := in.AllocSemaphore()
	in.Semaphores[id] = s
	g.Release()
	c.leave()
	return id
}

func (c *Context) SemaphoreUp(id int) int {
	c.enter()
	s, ok := lookup(c, semaphores, id)
	if !ok {
		c.leave()
		return -1
	}
	s.Up()
	c.leave()
	return 0
}

func (c *Context) SemaphoreDown(id int) int {
	c.enter()
	s, ok := lookup(c, semaphores, id)
	if !ok {
		c.leave()
		return -1
	}
	s.Down()
	c.leave()
	return 0
}

func (c *Context) CondvarCreate() int {
	c.enter()
	k := c.sys.k
	cv := sync.NewCondvar(k.Masking(), k)
	g := c.t.Process().Inner()
	in := g.Get()
	id := in.AllocCondvar()
	in.Condvars[id] = cv
	g.Release()
	c.leave()
	return id
}

func (c *Context) CondvarSignal(id int) int {
	c.enter()
	cv, ok := lookup(c, condvars, id)
	if !ok {
		c.leave()
		return -1
	}
	cv.Signal()
	c.leave()
	return 0
}

// CondvarWait releases mutex mid, waits on condvar cid and reacquires the
// mutex.
func (c *Context) CondvarWait(cid, mid int) int {
	c.enter()
	cv, ok := lookup(c, condvars, cid)
	if !ok {
		c.leave()
		return -1
	}
	m, ok := lookup(c, mutexes, mid)
	if !ok {
		c.leave()
		return -1
	}
	cv.Wait(m)
	c.leave()
	return 0
}
