package sync

import "hartos/kernel"

// Mutex is a kernel lock handed to user space through a handle.
type Mutex interface {
	Lock()
	Unlock()
}

// MutexSpin yields the hart while the lock is held elsewhere.
type MutexSpin struct {
	sched  Scheduler
	locked *Cell[bool]
}

// NewMutexSpin returns an unlocked spinning mutex.
func NewMutexSpin(m *Masking, s Scheduler) *MutexSpin {
	return &MutexSpin{sched: s, locked: NewCell(m, false)}
}

// Lock yields until the lock is free, then takes it.
func (l *MutexSpin) Lock() {
	for {
		g := l.locked.Access()
		if *g.Get() {
			g.Release()
			l.sched.Yield()
			continue
		}
		*g.Get() = true
		g.Release()
		return
	}
}

// Unlock frees the lock; a spinning contender takes it on its next turn.
func (l *MutexSpin) Unlock() {
	l.locked.Session(func(locked *bool) { *locked = false })
}

type mutexBlockingInner struct {
	locked bool
	owner  Thread
	queue  waitQueue
}

// MutexBlocking parks contenders FIFO and hands the lock directly to the
// head waiter on Unlock.
type MutexBlocking struct {
	sched Scheduler
	inner *Cell[mutexBlockingInner]
}

// NewMutexBlocking returns an unlocked blocking mutex.
func NewMutexBlocking(m *Masking, s Scheduler) *MutexBlocking {
	return &MutexBlocking{sched: s, inner: NewCell(m, mutexBlockingInner{})}
}

// Lock takes the lock or parks the caller until Unlock hands it over. Locking
// a mutex the caller already holds faults.
func (l *MutexBlocking) Lock() {
	g := l.inner.Access()
	in := g.Get()
	cur := l.sched.Current()
	if !in.locked {
		in.locked = true
		in.owner = cur
		g.Release()
		return
	}
	if cur == nil {
		g.Release()
		kernel.Raise(kernel.FaultNoCurrent, "sync", "mutex lock outside a thread")
	}
	if in.owner == cur {
		g.Release()
		kernel.Raise(kernel.FaultReentrantLock, "sync", "tid %d locks a mutex it holds", cur.Tid())
	}
	in.queue.push(cur)
	park(cur, l)
	token := l.sched.PrepareSuspend()
	g.Release()
	l.sched.Schedule(token)
	// Unlock transferred ownership before waking us.
}

// Unlock passes the lock to the oldest waiter, or frees it if none waits.
func (l *MutexBlocking) Unlock() {
	g := l.inner.Access()
	defer g.Release()
	in := g.Get()
	if !in.locked {
		return
	}
	if t, ok := in.queue.pop(); ok {
		in.owner = t
		unpark(t)
		l.sched.Wakeup(t)
		return
	}
	in.locked = false
	in.owner = nil
}

// Cancel removes t from the wait queue.
func (l *MutexBlocking) Cancel(t Thread) bool {
	g := l.inner.Access()
	defer g.Release()
	if !g.Get().queue.remove(t) {
		return false
	}
	unpark(t)
	return true
}

// Locked reports whether the mutex is held.
func (l *MutexBlocking) Locked() bool {
	g := l.inner.Access()
	defer g.Release()
	return g.Get().locked
}
