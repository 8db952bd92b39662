// Package drivers wraps the hal device models in kernel drivers. Every
// interrupt-driven device follows the same protocol: the interrupt handler
// drains hardware into a software buffer and signals a condition variable,
// and consumers only ever read the software buffer.
package drivers

import "hartos/sync"

// Bridge is the software side of an interrupt-driven input device: a FIFO
// of drained units behind one cell and one condvar for readers.
type Bridge[E any] struct {
	sched sync.Scheduler
	inner *sync.Cell[[]E]
	cond  *sync.Condvar
}

// NewBridge returns an empty bridge whose readers block through s.
func NewBridge[E any](m *sync.Masking, s sync.Scheduler) *Bridge[E] {
	return &Bridge[E]{
		sched: s,
		inner: sync.NewCell[[]E](m, nil),
		cond:  sync.NewCondvar(m, s),
	}
}

// Read returns the oldest buffered unit, blocking until the interrupt
// handler has delivered one.
func (b *Bridge[E]) Read() E {
	for {
		g := b.inner.Access()
		buf := g.Get()
		if len(*buf) > 0 {
			e := popFront(buf)
			g.Release()
			return e
		}
		token := b.cond.WaitNoSched()
		g.Release()
		b.sched.Schedule(token)
	}
}

// TryRead pops the oldest unit without blocking.
func (b *Bridge[E]) TryRead() (E, bool) {
	g := b.inner.Access()
	defer g.Release()
	buf := g.Get()
	if len(*buf) == 0 {
		var zero E
		return zero, false
	}
	return popFront(buf), true
}

// IsEmpty reports whether the software buffer is empty.
func (b *Bridge[E]) IsEmpty() bool { return b.Len() == 0 }

// Len counts the buffered units.
func (b *Bridge[E]) Len() int {
	g := b.inner.Access()
	defer g.Release()
	return len(*g.Get())
}

// Exclusive runs f with the bridge's cell held, masking the interrupt
// handler for the duration.
func (b *Bridge[E]) Exclusive(f func()) {
	b.inner.Session(func(*[]E) { f() })
}

// HandleIRQ runs drain with the cell held. drain pushes every unit the
// hardware has pending; one waiter is signalled if anything arrived. It
// never suspends.
func (b *Bridge[E]) HandleIRQ(drain func(push func(E))) int {
	n := 0
	b.inner.Session(func(buf *[]E) {
		drain(func(e E) {
			*buf = append(*buf, e)
			n++
		})
	})
	if n > 0 {
		b.cond.Signal()
	}
	return n
}

// Waiters reports how many readers are blocked.
func (b *Bridge[E]) Waiters() int { return b.cond.Waiters() }

func popFront[E any](buf *[]E) E {
	var zero E
	e := (*buf)[0]
	(*buf)[0] = zero
	*buf = (*buf)[1:]
	return e
}
