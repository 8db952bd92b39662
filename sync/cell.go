package sync

import "hartos/kernel"

// Interrupts controls the local hart's interrupt-enable bit.
type Interrupts interface {
	// Disable masks interrupts and returns the previous enable state.
	Disable() bool
	// Restore sets the enable state, taking pending interrupts if enabled.
	Restore(prev bool)
}

// Masking tracks nested interrupt masking on one hart. The enable state seen
// by the outermost Enter is restored by the matching outermost Exit, so
// independent cells can be held at the same time and released in any order.
type Masking struct {
	intr      Interrupts
	nested    int
	sieBefore bool
}

// NewMasking returns the masking state for a hart.
func NewMasking(intr Interrupts) *Masking {
	return &Masking{intr: intr}
}

// Enter masks interrupts.
func (m *Masking) Enter() {
	prev := m.intr.Disable()
	if m.nested == 0 {
		m.sieBefore = prev
	}
	m.nested++
}

// Exit undoes one Enter.
func (m *Masking) Exit() {
	if m.nested == 0 {
		kernel.Raise(kernel.FaultDoubleRelease, "sync", "interrupt masking underflow")
	}
	m.nested--
	if m.nested == 0 && m.sieBefore {
		m.intr.Restore(true)
	}
}

// Depth reports how many masked sections are open.
func (m *Masking) Depth() int { return m.nested }

// Cell grants exclusive access to one value on a single hart. A borrow masks
// local interrupts, so the interrupt handler that shares the value can never
// preempt the holder. A second borrow while one is live is a concurrency bug
// and faults.
//
// The caller guarantees the cell is only used from the hart that owns m.
type Cell[T any] struct {
	m        *Masking
	borrowed bool
	value    T
}

// NewCell wraps v.
func NewCell[T any](m *Masking, v T) *Cell[T] {
	return &Cell[T]{m: m, value: v}
}

// Guard is a live borrow of a Cell. Release it on every exit path, usually
// with defer.
type Guard[T any] struct {
	c        *Cell[T]
	released bool
}

// Access masks interrupts and borrows the value.
func (c *Cell[T]) Access() *Guard[T] {
	c.m.Enter()
	if c.borrowed {
		c.m.Exit()
		kernel.Raise(kernel.FaultBorrowViolation, "sync", "cell already borrowed")
	}
	c.borrowed = true
	return &Guard[T]{c: c}
}

// Session runs f with exclusive access and releases before returning.
func (c *Cell[T]) Session(f func(v *T)) {
	g := c.Access()
	defer g.Release()
	f(&c.value)
}

// Borrowed reports whether a guard is live.
func (c *Cell[T]) Borrowed() bool { return c.borrowed }

// Get returns the guarded value. The pointer must not outlive the guard.
func (g *Guard[T]) Get() *T {
	if g.released {
		kernel.Raise(kernel.FaultDoubleRelease, "sync", "use of released guard")
	}
	return &g.c.value
}

// Release ends the borrow and restores the interrupt state.
func (g *Guard[T]) Release() {
	if g.released {
		kernel.Raise(kernel.FaultDoubleRelease, "sync", "guard released twice")
	}
	g.released = true
	g.c.borrowed = false
	g.c.m.Exit()
}
