package sync

import "hartos/kernel"

// Condvar is a FIFO condition variable. Signals are not remembered: a
// Signal with no waiter does nothing.
type Condvar struct {
	sched Scheduler
	inner *Cell[waitQueue]
}

// NewCondvar returns a condition variable blocking through s.
func NewCondvar(m *Masking, s Scheduler) *Condvar {
	return &Condvar{sched: s, inner: NewCell(m, waitQueue{})}
}

// Signal wakes the earliest waiter and reports whether there was one.
func (c *Condvar) Signal() bool {
	g := c.inner.Access()
	defer g.Release()
	t, ok := g.Get().pop()
	if !ok {
		return false
	}
	unpark(t)
	woke(t, c)
	c.sched.Wakeup(t)
	return true
}

// Relay signals on behalf of a woken thread that died before running.
func (c *Condvar) Relay() { c.Signal() }

// Wait releases m, blocks until signalled and reacquires m. The caller is on
// the wait queue before m is released, so a Signal issued by the next holder
// of m always finds it.
func (c *Condvar) Wait(m Mutex) {
	token := c.WaitNoSched()
	m.Unlock()
	c.sched.Schedule(token)
	m.Lock()
}

// WaitUnlocked is Wait with the original ordering: m is released before the
// caller joins the wait queue, so a Signal landing in between is lost.
func (c *Condvar) WaitUnlocked(m Mutex) {
	m.Unlock()
	c.inner.Session(func(q *waitQueue) {
		t := c.current()
		q.push(t)
		park(t, c)
	})
	c.sched.Block()
	m.Lock()
}

// WaitNoSched enqueues the current thread and marks it blocked without
// switching. The caller releases whatever it still holds and then passes the
// token to Scheduler.Schedule.
func (c *Condvar) WaitNoSched() Suspended {
	g := c.inner.Access()
	defer g.Release()
	t := c.current()
	g.Get().push(t)
	park(t, c)
	return c.sched.PrepareSuspend()
}

// Cancel removes t from the wait queue.
func (c *Condvar) Cancel(t Thread) bool {
	g := c.inner.Access()
	defer g.Release()
	if !g.Get().remove(t) {
		return false
	}
	unpark(t)
	return true
}

// Waiters reports the wait queue length.
func (c *Condvar) Waiters() int {
	g := c.inner.Access()
	defer g.Release()
	return g.Get().len()
}

func (c *Condvar) current() Thread {
	t := c.sched.Current()
	if t == nil {
		kernel.Raise(kernel.FaultNoCurrent, "sync", "condvar wait outside a thread")
	}
	return t
}
