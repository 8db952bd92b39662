package task

import (
	"context"
	"runtime"
	"runtime/debug"

	"hartos/kernel"
	"hartos/mm"
	"hartos/sync"
)

// reentry unwinds a thread back to its user entry after exec.
type reentry struct{}

// Current implements sync.Scheduler.
func (k *Kernel) Current() sync.Thread {
	if t := k.CurrentTask(); t != nil {
		return t
	}
	return nil
}

// Wakeup makes a blocked thread ready. Waking a thread that is not blocked
// does nothing.
func (k *Kernel) Wakeup(th sync.Thread) {
	t := th.(*TaskControlBlock)
	g := t.inner.Access()
	in := g.Get()
	if in.status != Blocked {
		g.Release()
		return
	}
	in.status = Ready
	g.Release()
	k.addTask(t)
}

// Block marks the current thread blocked and switches away.
func (k *Kernel) Block() {
	t := k.mustCurrent()
	t.setStatus(Blocked)
	k.switchOut(t)
}

// PrepareSuspend marks the current thread blocked without switching. A
// Wakeup before the matching Schedule makes it ready again, and Schedule then
// only yields.
func (k *Kernel) PrepareSuspend() sync.Suspended {
	t := k.mustCurrent()
	t.setStatus(Blocked)
	return sync.Suspended{Thread: t}
}

// Schedule switches away from a suspended thread.
func (k *Kernel) Schedule(s sync.Suspended) {
	k.switchOut(s.Thread.(*TaskControlBlock))
}

// Yield requeues the current thread and switches away.
func (k *Kernel) Yield() {
	t := k.mustCurrent()
	t.setStatus(Ready)
	k.addTask(t)
	k.switchOut(t)
}

// switchOut hands the hart back to the processor loop and waits to be
// resumed. No cell may be borrowed across a switch.
func (k *Kernel) switchOut(t *TaskControlBlock) {
	if d := k.mask.Depth(); d != 0 {
		kernel.Raise(kernel.FaultBorrowViolation, "task", "tid %d switches with %d cells borrowed", t.tid, d)
	}
	sie := k.hart.Disable()
	k.idle <- struct{}{}
	select {
	case <-t.permit:
	case <-t.discard:
		runtime.Goexit()
	}
	k.hart.Restore(sie)
}

// handOff gives up the hart for good.
func (k *Kernel) handOff(t *TaskControlBlock) {
	t.gone = true
	delete(k.live, t)
	k.hart.Disable()
	k.idle <- struct{}{}
	runtime.Goexit()
}

// Run is the processor loop. It returns nil once initproc has exited, the
// fault that halted the hart, or ctx's error.
func (k *Kernel) Run(ctx context.Context) (err error) {
	defer k.discardAll()
	defer func() {
		if v := recover(); v != nil {
			k.crash(nil, v)
			err = k.fault
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if k.fault != nil {
			return k.fault
		}
		if k.done {
			return nil
		}
		t := k.fetchTask()
		if t == nil {
			if err := k.hart.WaitForInterrupt(ctx); err != nil {
				return err
			}
			continue
		}
		if t.Status() == Exited {
			continue
		}
		k.runTask(t)
	}
}

func (k *Kernel) runTask(t *TaskControlBlock) {
	t.inner.Session(func(in *taskInner) {
		in.status = Running
		in.wokenBy = nil
	})
	k.setCurrent(t)
	if !t.started {
		t.started = true
		k.live[t] = struct{}{}
		go k.threadMain(t)
	} else {
		t.permit <- struct{}{}
	}
	<-k.idle
	k.setCurrent(nil)
}

func (k *Kernel) threadMain(t *TaskControlBlock) {
	defer func() {
		if v := recover(); v != nil {
			k.crash(t, v)
		}
	}()
	k.hart.Enable()
	for k.enterUser(t) {
	}
	k.ExitCurrent(0)
}

func (k *Kernel) enterUser(t *TaskControlBlock) (again bool) {
	defer func() {
		if v := recover(); v != nil {
			if _, ok := v.(reentry); ok {
				again = true
				return
			}
			k.crash(t, v)
		}
	}()
	if k.launch == nil {
		kernel.RaiseErr(kernel.FaultUnknown, "task", ErrNoLauncher, "pid %d tid %d", t.process.pid, t.tid)
	}
	sepc := t.TrapContext().Sepc
	g := t.process.inner.Access()
	code, ok := g.Get().MemorySet.CodeAt(mm.VirtAddr(sepc))
	g.Release()
	if !ok {
		kernel.Raise(kernel.FaultBadHandle, "task", "pid %d tid %d: no code at sepc %#x", t.process.pid, t.tid, sepc)
	}
	k.launch(t, code)
	return false
}

// Reenter abandons the running user code and restarts the current thread
// at the entry in its trap context.
func (k *Kernel) Reenter() {
	panic(reentry{})
}

// crash reports a fatal fault. On a thread goroutine it also halts the hart
// and never returns.
func (k *Kernel) crash(t *TaskControlBlock, v any) {
	f := kernel.AsFault(v)
	info := kernel.PanicInfo{Pid: -1, Tid: -1, Fault: f, Value: v, Stack: debug.Stack()}
	if t != nil {
		info.Pid = t.process.pid
		info.Tid = t.tid
	}
	if k.fault == nil {
		k.fault = f
	}
	k.log.Errorf("fault: pid=%d tid=%d: %v", info.Pid, info.Tid, f)
	kernel.Report(info)
	if t != nil {
		k.handOff(t)
	}
}

// ExitCurrent ends the running thread. When it is thread 0 the whole process
// exits: it becomes a zombie, its children move to initproc, and its other
// threads are pulled off their wait queues and never run again.
func (k *Kernel) ExitCurrent(code int) {
	t := k.mustCurrent()
	p := t.process

	tg := t.inner.Access()
	ti := tg.Get()
	ti.exitCode = code
	ti.exited = true
	ti.status = Exited
	res := ti.res
	ti.res = nil
	tg.Release()

	p.inner.Session(func(in *ProcessInner) {
		res.dealloc(in.MemorySet)
		in.tids.Dealloc(res.Tid)
	})
	if t.tid == 0 {
		k.exitProcess(p, t, code)
	}
	k.log.Tracef("task: pid %d tid %d exited with %d", p.pid, t.tid, code)
	k.handOff(t)
}

func (k *Kernel) exitProcess(p *ProcessControlBlock, self *TaskControlBlock, code int) {
	k.removeProcess(p.pid)
	if p == k.initproc {
		k.done = true
		k.exitCode = code
		k.log.Infof("task: initproc exited with code %d", code)
	}

	g := p.inner.Access()
	in := g.Get()
	in.Zombie = true
	in.ExitCode = code
	children := in.Children
	in.Children = nil
	others := make([]*TaskControlBlock, 0, len(in.Tasks))
	for _, o := range in.Tasks {
		if o != nil && o != self {
			others = append(others, o)
		}
	}
	g.Release()

	if ip := k.initproc; ip != nil && ip != p && len(children) > 0 {
		for _, c := range children {
			c.inner.Session(func(ci *ProcessInner) { ci.Parent = ip.pid })
		}
		ip.inner.Session(func(ii *ProcessInner) { ii.Children = append(ii.Children, children...) })
	}

	var recycled []*TaskUserRes
	for _, o := range others {
		if res := k.discardTask(o); res != nil {
			recycled = append(recycled, res)
		}
	}

	p.inner.Session(func(in *ProcessInner) {
		for _, res := range recycled {
			res.dealloc(in.MemorySet)
			in.tids.Dealloc(res.Tid)
		}
		in.MemorySet.RecycleDataPages()
		in.FDs = nil
		in.Tasks = in.Tasks[:1]
	})
}

// discardTask removes o from the ready queue and any wait queue and ends its
// goroutine. A wakeup o received but never ran on goes to the next waiter. It
// returns user resources still to be released.
func (k *Kernel) discardTask(o *TaskControlBlock) *TaskUserRes {
	g := o.inner.Access()
	oi := g.Get()
	w := oi.waitingOn
	relay := oi.wokenBy
	oi.wokenBy = nil
	res := oi.res
	oi.res = nil
	oi.status = Exited
	oi.exited = true
	g.Release()

	if w != nil {
		w.Cancel(o)
	}
	k.removeTask(o)
	if relay != nil && w == nil {
		relay.Relay()
	}
	if o.started && !o.gone {
		o.gone = true
		delete(k.live, o)
		close(o.discard)
	}
	if o.kstack.k != nil {
		o.kstack.Free()
	}
	return res
}

// discardAll ends every parked thread goroutine once the processor stops.
func (k *Kernel) discardAll() {
	for t := range k.live {
		if !t.gone {
			t.gone = true
			close(t.discard)
		}
		delete(k.live, t)
	}
}
