// Package sync provides the single-hart synchronization primitives every
// shared kernel structure is built on: an interrupt-masking exclusive cell
// and FIFO wait-queue primitives (condition variables, mutexes and
// semaphores) that block through the scheduler.
package sync

// Thread is an opaque handle to a schedulable thread.
type Thread interface {
	Tid() int
}

// Waitable is a primitive a thread can be parked on.
type Waitable interface {
	// Cancel removes t from the wait queue and reports whether it was queued.
	Cancel(t Thread) bool
}

// Tracker is implemented by threads that record the primitive they are
// parked on, so a dying process can pull them off their wait queues.
type Tracker interface {
	Thread
	SetWaitingOn(w Waitable)
}

// Relayer is a Waitable that can pass a wakeup on to its next waiter.
type Relayer interface {
	Waitable
	// Relay wakes the next waiter, if any.
	Relay()
}

// WakeTracker is implemented by threads that remember the primitive that
// last woke them. A wakeup taken by a thread that dies before it runs is
// relayed to the primitive's next waiter.
type WakeTracker interface {
	SetWokenBy(r Relayer)
}

// Suspended is the token for a thread that has been marked blocked but has
// not yet switched away. It must be passed to Scheduler.Schedule exactly once.
type Suspended struct {
	Thread Thread
}

// Scheduler is the contract the wait primitives need from the task layer.
type Scheduler interface {
	// Current returns the running thread, or nil in the idle loop.
	Current() Thread
	// Wakeup makes a blocked thread ready.
	Wakeup(t Thread)
	// Block marks the current thread blocked and switches to the next one.
	Block()
	// PrepareSuspend marks the current thread blocked without switching.
	PrepareSuspend() Suspended
	// Schedule switches away from a suspended thread. It returns once the
	// thread has been woken and resumed.
	Schedule(s Suspended)
	// Yield puts the current thread at the back of the ready queue.
	Yield()
}

func park(t Thread, w Waitable) {
	if tr, ok := t.(Tracker); ok {
		tr.SetWaitingOn(w)
	}
}

func unpark(t Thread) {
	if tr, ok := t.(Tracker); ok {
		tr.SetWaitingOn(nil)
	}
}

func woke(t Thread, r Relayer) {
	if wt, ok := t.(WakeTracker); ok {
		wt.SetWokenBy(r)
	}
}

// waitQueue is an ordered FIFO of parked threads.
type waitQueue struct {
	q []Thread
}

func (w *waitQueue) push(t Thread) { w.q = append(w.q, t) }

func (w *waitQueue) pop() (Thread, bool) {
	if len(w.q) == 0 {
		return nil, false
	}
	t := w.q[0]
	w.q[0] = nil
	w.q = w.q[1:]
	return t, true
}

func (w *waitQueue) remove(t Thread) bool {
	for i, x := range w.q {
		if x == t {
			copy(w.q[i:], w.q[i+1:])
			w.q[len(w.q)-1] = nil
			w.q = w.q[:len(w.q)-1]
			return true
		}
	}
	return false
}

func (w *waitQueue) len() int { return len(w.q) }
