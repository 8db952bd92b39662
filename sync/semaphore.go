package sync

type semaphoreInner struct {
	count int
	queue waitQueue
}

// Semaphore is a counting semaphore with a FIFO wait queue. A negative count
// is the number of parked waiters.
type Semaphore struct {
	sched Scheduler
	inner *Cell[semaphoreInner]
}

// NewSemaphore returns a semaphore holding count resources.
func NewSemaphore(m *Masking, s Scheduler, count int) *Semaphore {
	return &Semaphore{sched: s, inner: NewCell(m, semaphoreInner{count: count})}
}

// Up releases one resource, waking the head waiter if any.
func (s *Semaphore) Up() {
	g := s.inner.Access()
	defer g.Release()
	in := g.Get()
	in.count++
	if in.count <= 0 {
		if t, ok := in.queue.pop(); ok {
			unpark(t)
			s.sched.Wakeup(t)
		}
	}
}

// Down takes one resource, blocking while none is available.
func (s *Semaphore) Down() {
	g := s.inner.Access()
	in := g.Get()
	in.count--
	if in.count >= 0 {
		g.Release()
		return
	}
	t := s.sched.Current()
	in.queue.push(t)
	park(t, s)
	token := s.sched.PrepareSuspend()
	g.Release()
	s.sched.Schedule(token)
}

// Cancel removes t from the wait queue and gives back its claim.
func (s *Semaphore) Cancel(t Thread) bool {
	g := s.inner.Access()
	defer g.Release()
	in := g.Get()
	if !in.queue.remove(t) {
		return false
	}
	in.count++
	unpark(t)
	return true
}

// Count reports the current count.
func (s *Semaphore) Count() int {
	g := s.inner.Access()
	defer g.Release()
	return g.Get().count
}
