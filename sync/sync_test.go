package sync_test

import (
	"testing"

	"hartos/kernel"
	"hartos/sync"
)

type fakeIntr struct {
	sie      bool
	restores int
}

func (f *fakeIntr) Disable() bool {
	prev := f.sie
	f.sie = false
	return prev
}

func (f *fakeIntr) Restore(prev bool) {
	f.restores++
	f.sie = prev
}

type thread int

func (t thread) Tid() int { return int(t) }

// fakeSched never switches; Schedule and Block return immediately.
type fakeSched struct {
	cur       sync.Thread
	woken     []sync.Thread
	blocked   []sync.Thread
	scheduled int
	yields    int
	onYield   func()
}

func (s *fakeSched) Current() sync.Thread { return s.cur }
func (s *fakeSched) Wakeup(t sync.Thread) { s.woken = append(s.woken, t) }
func (s *fakeSched) Block()               { s.blocked = append(s.blocked, s.cur) }
func (s *fakeSched) PrepareSuspend() sync.Suspended {
	s.blocked = append(s.blocked, s.cur)
	return sync.Suspended{Thread: s.cur}
}
func (s *fakeSched) Schedule(sync.Suspended) { s.scheduled++ }
func (s *fakeSched) Yield() {
	s.yields++
	if s.onYield != nil {
		s.onYield()
	}
}

func mustFault(t *testing.T, code kernel.FaultCode, fn func()) {
	t.Helper()
	defer func() {
		f := kernel.AsFault(recover())
		if f == nil {
			t.Fatalf("no fault, want %v", code)
		}
		if f.Code != code {
			t.Fatalf("fault=%v, want %v", f.Code, code)
		}
	}()
	fn()
}

func TestCellAccessMasksAndRestores(t *testing.T) {
	intr := &fakeIntr{sie: true}
	m := sync.NewMasking(intr)
	c := sync.NewCell(m, 7)

	g := c.Access()
	if intr.sie {
		t.Fatalf("sie=true while borrowed, want false")
	}
	*g.Get() = 8
	g.Release()
	if !intr.sie {
		t.Fatalf("sie=false after release, want true")
	}

	var got int
	c.Session(func(v *int) { got = *v })
	if got != 8 {
		t.Fatalf("value=%d, want 8", got)
	}
}

func TestCellMaskedStaysMasked(t *testing.T) {
	intr := &fakeIntr{sie: false}
	m := sync.NewMasking(intr)
	c := sync.NewCell(m, 0)
	c.Session(func(*int) {})
	if intr.sie {
		t.Fatalf("sie=true after release, want false")
	}
	if intr.restores != 0 {
		t.Fatalf("restores=%d, want 0", intr.restores)
	}
}

func TestCellDoubleBorrowFaults(t *testing.T) {
	intr := &fakeIntr{sie: true}
	m := sync.NewMasking(intr)
	c := sync.NewCell(m, 0)
	g := c.Access()
	mustFault(t, kernel.FaultBorrowViolation, func() { c.Access() })
	if m.Depth() != 1 {
		t.Fatalf("depth=%d, want 1", m.Depth())
	}
	g.Release()
	if !intr.sie {
		t.Fatalf("sie=false after release, want true")
	}
}

func TestGuardDoubleReleaseFaults(t *testing.T) {
	m := sync.NewMasking(&fakeIntr{})
	c := sync.NewCell(m, 0)
	g := c.Access()
	g.Release()
	mustFault(t, kernel.FaultDoubleRelease, g.Release)
	mustFault(t, kernel.FaultDoubleRelease, func() { g.Get() })
}

func TestNestedCellsReleaseAnyOrder(t *testing.T) {
	intr := &fakeIntr{sie: true}
	m := sync.NewMasking(intr)
	a := sync.NewCell(m, "a")
	b := sync.NewCell(m, "b")

	ga := a.Access()
	gb := b.Access()
	ga.Release()
	if intr.sie {
		t.Fatalf("sie=true with one cell still borrowed, want false")
	}
	gb.Release()
	if !intr.sie {
		t.Fatalf("sie=false after both released, want true")
	}
	if m.Depth() != 0 {
		t.Fatalf("depth=%d, want 0", m.Depth())
	}
}

func TestMaskingUnderflowFaults(t *testing.T) {
	m := sync.NewMasking(&fakeIntr{})
	mustFault(t, kernel.FaultDoubleRelease, m.Exit)
}

func TestCondvarSignalFIFO(t *testing.T) {
	m := sync.NewMasking(&fakeIntr{sie: true})
	s := &fakeSched{}
	cv := sync.NewCondvar(m, s)

	for _, tid := range []int{1, 2, 3} {
		s.cur = thread(tid)
		s.Schedule(cv.WaitNoSched())
	}
	if cv.Waiters() != 3 {
		t.Fatalf("waiters=%d, want 3", cv.Waiters())
	}
	for range 3 {
		if !cv.Signal() {
			t.Fatalf("Signal()=false, want true")
		}
	}
	for i, w := range s.woken {
		if w.Tid() != i+1 {
			t.Fatalf("woken[%d]=%d, want %d", i, w.Tid(), i+1)
		}
	}
}

func TestCondvarSignalWithoutWaiter(t *testing.T) {
	m := sync.NewMasking(&fakeIntr{})
	s := &fakeSched{}
	cv := sync.NewCondvar(m, s)
	if cv.Signal() {
		t.Fatalf("Signal()=true, want false")
	}
	if len(s.woken) != 0 {
		t.Fatalf("woken=%d, want 0", len(s.woken))
	}
	// A later waiter is not woken by the earlier signal.
	s.cur = thread(1)
	cv.WaitNoSched()
	if cv.Waiters() != 1 {
		t.Fatalf("waiters=%d, want 1", cv.Waiters())
	}
}

func TestCondvarWaitOutsideThreadFaults(t *testing.T) {
	m := sync.NewMasking(&fakeIntr{})
	cv := sync.NewCondvar(m, &fakeSched{})
	mustFault(t, kernel.FaultNoCurrent, func() { cv.WaitNoSched() })
}

// signallingMutex signals cv the moment it is released, the way a producer
// waiting on the mutex would once it runs.
type signallingMutex struct {
	cv       *sync.Condvar
	signaled []bool
	locks    int
}

func (m *signallingMutex) Lock() { m.locks++ }
func (m *signallingMutex) Unlock() {
	m.signaled = append(m.signaled, m.cv.Signal())
}

func TestCondvarWaitSeesSignalAfterUnlock(t *testing.T) {
	m := sync.NewMasking(&fakeIntr{sie: true})
	s := &fakeSched{cur: thread(4)}
	cv := sync.NewCondvar(m, s)
	mu := &signallingMutex{cv: cv}

	cv.Wait(mu)
	if len(mu.signaled) != 1 || !mu.signaled[0] {
		t.Fatalf("signaled=%v, want [true]", mu.signaled)
	}
	if len(s.woken) != 1 || s.woken[0].Tid() != 4 {
		t.Fatalf("woken=%v, want [4]", s.woken)
	}
	if mu.locks != 1 {
		t.Fatalf("locks=%d, want 1", mu.locks)
	}
}

func TestCondvarWaitUnlockedLosesSignal(t *testing.T) {
	m := sync.NewMasking(&fakeIntr{sie: true})
	s := &fakeSched{cur: thread(5)}
	cv := sync.NewCondvar(m, s)
	mu := &signallingMutex{cv: cv}

	cv.WaitUnlocked(mu)
	if len(mu.signaled) != 1 || mu.signaled[0] {
		t.Fatalf("signaled=%v, want [false]", mu.signaled)
	}
	if len(s.woken) != 0 {
		t.Fatalf("woken=%v, want none", s.woken)
	}
	if cv.Waiters() != 1 {
		t.Fatalf("waiters=%d, want 1", cv.Waiters())
	}
}

type trackedThread struct {
	tid int
	on  sync.Waitable
}

func (t *trackedThread) Tid() int                    { return t.tid }
func (t *trackedThread) SetWaitingOn(w sync.Waitable) { t.on = w }

func TestCondvarCancel(t *testing.T) {
	m := sync.NewMasking(&fakeIntr{})
	s := &fakeSched{}
	cv := sync.NewCondvar(m, s)
	a := &trackedThread{tid: 1}
	b := &trackedThread{tid: 2}

	s.cur = a
	cv.WaitNoSched()
	s.cur = b
	cv.WaitNoSched()
	if a.on != cv {
		t.Fatalf("waitingOn not recorded")
	}
	if !a.on.Cancel(a) {
		t.Fatalf("Cancel()=false, want true")
	}
	if a.on != nil {
		t.Fatalf("waitingOn not cleared after cancel")
	}
	if cv.Cancel(a) {
		t.Fatalf("second Cancel()=true, want false")
	}
	cv.Signal()
	if len(s.woken) != 1 || s.woken[0] != sync.Thread(b) {
		t.Fatalf("woken=%v, want [b]", s.woken)
	}
}

func TestMutexBlockingHandOff(t *testing.T) {
	m := sync.NewMasking(&fakeIntr{sie: true})
	s := &fakeSched{cur: thread(1)}
	mu := sync.NewMutexBlocking(m, s)

	mu.Lock()
	s.cur = thread(2)
	mu.Lock()
	s.cur = thread(3)
	mu.Lock()
	if s.scheduled != 2 {
		t.Fatalf("scheduled=%d, want 2", s.scheduled)
	}

	s.cur = thread(1)
	mu.Unlock()
	if !mu.Locked() {
		t.Fatalf("Locked()=false after hand-off, want true")
	}
	mu.Unlock()
	mu.Unlock()
	if mu.Locked() {
		t.Fatalf("Locked()=true, want false")
	}
	if len(s.woken) != 2 || s.woken[0].Tid() != 2 || s.woken[1].Tid() != 3 {
		t.Fatalf("woken=%v, want [2 3]", s.woken)
	}
}

func TestMutexBlockingReentrantFaults(t *testing.T) {
	m := sync.NewMasking(&fakeIntr{})
	s := &fakeSched{cur: thread(1)}
	mu := sync.NewMutexBlocking(m, s)
	mu.Lock()
	mustFault(t, kernel.FaultReentrantLock, mu.Lock)
	if m.Depth() != 0 {
		t.Fatalf("depth=%d, want 0", m.Depth())
	}
}

func TestMutexSpinYieldsUntilFree(t *testing.T) {
	m := sync.NewMasking(&fakeIntr{})
	s := &fakeSched{}
	mu := sync.NewMutexSpin(m, s)
	mu.Lock()
	s.onYield = func() {
		if s.yields == 3 {
			mu.Unlock()
		}
	}
	mu.Lock()
	if s.yields != 3 {
		t.Fatalf("yields=%d, want 3", s.yields)
	}
}

func TestSemaphore(t *testing.T) {
	m := sync.NewMasking(&fakeIntr{})
	s := &fakeSched{}
	sem := sync.NewSemaphore(m, s, 1)

	s.cur = thread(1)
	sem.Down()
	if s.scheduled != 0 {
		t.Fatalf("scheduled=%d, want 0", s.scheduled)
	}
	s.cur = thread(2)
	sem.Down()
	if sem.Count() != -1 {
		t.Fatalf("count=%d, want -1", sem.Count())
	}
	sem.Up()
	if len(s.woken) != 1 || s.woken[0].Tid() != 2 {
		t.Fatalf("woken=%v, want [2]", s.woken)
	}
	sem.Up()
	if sem.Count() != 1 {
		t.Fatalf("count=%d, want 1", sem.Count())
	}
	if len(s.woken) != 1 {
		t.Fatalf("woken=%d, want 1", len(s.woken))
	}
}

func TestSemaphoreCancelReturnsClaim(t *testing.T) {
	m := sync.NewMasking(&fakeIntr{})
	s := &fakeSched{}
	sem := sync.NewSemaphore(m, s, 0)
	w := &trackedThread{tid: 9}
	s.cur = w
	sem.Down()
	if !sem.Cancel(w) {
		t.Fatalf("Cancel()=false, want true")
	}
	if sem.Count() != 0 {
		t.Fatalf("count=%d, want 0", sem.Count())
	}
}
