package task

import (
	"hartos/mm"
	"hartos/sync"
	"hartos/trap"
)

// TaskStatus is a thread's scheduling state.
type TaskStatus uint8

const (
	Ready TaskStatus = iota
	Running
	Blocked
	Exited
)

func (s TaskStatus) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

type taskInner struct {
	res       *TaskUserRes
	trapCxPPN mm.PPN
	status    TaskStatus
	exitCode  int
	exited    bool
	waitingOn sync.Waitable
	wokenBy   sync.Relayer
}

// TaskControlBlock is one thread. It runs on its own goroutine and holds the
// hart only between receiving its permit and handing the hart back to the
// processor.
type TaskControlBlock struct {
	k       *Kernel
	process *ProcessControlBlock
	tid     int
	kstack  *KernelStack
	inner   *sync.Cell[taskInner]

	permit  chan struct{}
	discard chan struct{}
	started bool
	gone    bool
}

func newTask(k *Kernel, p *ProcessControlBlock, in *ProcessInner, ustackBase mm.VirtAddr, allocUserRes bool) (*TaskControlBlock, error) {
	res := &TaskUserRes{Tid: in.tids.Alloc(), UstackBase: ustackBase}
	if allocUserRes {
		if err := res.alloc(in.MemorySet); err != nil {
			in.tids.Dealloc(res.Tid)
			return nil, err
		}
	}
	kstack, err := k.allocKernelStack()
	if err != nil {
		if allocUserRes {
			res.dealloc(in.MemorySet)
		}
		in.tids.Dealloc(res.Tid)
		return nil, err
	}
	t := &TaskControlBlock{
		k:       k,
		process: p,
		tid:     res.Tid,
		kstack:  kstack,
		permit:  make(chan struct{}, 1),
		discard: make(chan struct{}),
	}
	t.inner = sync.NewCell(k.mask, taskInner{res: res, trapCxPPN: res.trapCxPPN(in.MemorySet)})
	return t, nil
}

func (t *TaskControlBlock) Tid() int                      { return t.tid }
func (t *TaskControlBlock) Process() *ProcessControlBlock { return t.process }
func (t *TaskControlBlock) KernelStack() *KernelStack     { return t.kstack }

func (t *TaskControlBlock) SetWaitingOn(w sync.Waitable) {
	t.inner.Session(func(in *taskInner) { in.waitingOn = w })
}

// SetWokenBy records the condvar whose signal made t ready. The processor
// clears it when t next runs.
func (t *TaskControlBlock) SetWokenBy(r sync.Relayer) {
	t.inner.Session(func(in *taskInner) { in.wokenBy = r })
}

func (t *TaskControlBlock) Status() TaskStatus {
	g := t.inner.Access()
	defer g.Release()
	return g.Get().status
}

func (t *TaskControlBlock) setStatus(s TaskStatus) {
	t.inner.Session(func(in *taskInner) { in.status = s })
}

// UserRes returns the thread's user resources, nil once it has exited.
func (t *TaskControlBlock) UserRes() *TaskUserRes {
	g := t.inner.Access()
	defer g.Release()
	return g.Get().res
}

// ExitCode reports the exit code once the thread has exited.
func (t *TaskControlBlock) ExitCode() (int, bool) {
	g := t.inner.Access()
	defer g.Release()
	in := g.Get()
	return in.exitCode, in.exited
}

func (t *TaskControlBlock) trapPage() []byte {
	g := t.inner.Access()
	ppn := g.Get().trapCxPPN
	g.Release()
	return t.k.frames.Mem().Page(ppn)
}

// TrapContext reads the saved user context.
func (t *TaskControlBlock) TrapContext() trap.TrapContext {
	return trap.Load(t.trapPage())
}

// UpdateTrapContext edits the saved user context in place.
func (t *TaskControlBlock) UpdateTrapContext(fn func(cx *trap.TrapContext)) {
	trap.Update(t.trapPage(), fn)
}
