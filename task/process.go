package task

import (
	"fmt"

	"hartos/fs"
	"hartos/kernel"
	"hartos/mm"
	"hartos/sync"
	"hartos/trap"
)

// ProcessInner is the mutable part of a process, reached through
// ProcessControlBlock.Inner.
type ProcessInner struct {
	Zombie    bool
	MemorySet *mm.MemorySet
	// Parent is the parent's pid, or -1. It is resolved through the pid
	// table so a parent is never kept alive by its children.
	Parent   int
	Children []*ProcessControlBlock
	ExitCode int
	FDs      []fs.File
	Signals  SignalFlags

	Tasks []*TaskControlBlock
	tids  RecycleAllocator

	Mutexes    []sync.Mutex
	Semaphores []*sync.Semaphore
	Condvars   []*sync.Condvar
}

// allocSlot returns the first nil slot of s, growing it when full.
func allocSlot[T comparable](s *[]T) int {
	var zero T
	for i, v := range *s {
		if v == zero {
			return i
		}
	}
	*s = append(*s, zero)
	return len(*s) - 1
}

// AllocFD returns the lowest free descriptor, growing the table if full.
func (in *ProcessInner) AllocFD() int { return allocSlot(&in.FDs) }

// AllocMutex returns the lowest free mutex handle.
func (in *ProcessInner) AllocMutex() int { return allocSlot(&in.Mutexes) }

// AllocSemaphore returns the lowest free semaphore handle.
func (in *ProcessInner) AllocSemaphore() int { return allocSlot(&in.Semaphores) }

// AllocCondvar returns the lowest free condvar handle.
func (in *ProcessInner) AllocCondvar() int { return allocSlot(&in.Condvars) }

// FD returns the open file at fd.
func (in *ProcessInner) FD(fd int) (fs.File, bool) {
	if fd < 0 || fd >= len(in.FDs) || in.FDs[fd] == nil {
		return nil, false
	}
	return in.FDs[fd], true
}

// Task returns the thread in slot tid.
func (in *ProcessInner) Task(tid int) *TaskControlBlock {
	if tid < 0 || tid >= len(in.Tasks) {
		return nil
	}
	return in.Tasks[tid]
}

// ThreadCount counts threads that have not exited.
func (in *ProcessInner) ThreadCount() int {
	n := 0
	for _, t := range in.Tasks {
		if t == nil {
			continue
		}
		if _, exited := t.ExitCode(); !exited {
			n++
		}
	}
	return n
}

// ProcessControlBlock is one process: an address space shared by its
// threads plus per-process tables.
type ProcessControlBlock struct {
	k     *Kernel
	pid   int
	inner *sync.Cell[ProcessInner]
}

// Pid is the process id.
func (p *ProcessControlBlock) Pid() int { return p.pid }

// Inner borrows the process state. Release the guard before anything that
// may suspend.
func (p *ProcessControlBlock) Inner() *sync.Guard[ProcessInner] { return p.inner.Access() }

// MainThread returns thread 0.
func (p *ProcessControlBlock) MainThread() *TaskControlBlock {
	g := p.inner.Access()
	defer g.Release()
	return g.Get().Task(0)
}

func (k *Kernel) initContext(t *TaskControlBlock, entry, sp mm.VirtAddr) trap.TrapContext {
	return trap.AppInitContext(uint64(entry), uint64(sp), k.kernelToken(), t.kstack.Top(), trap.HandlerAddr)
}

// NewProcess loads img into a fresh process with stdio open and thread 0
// ready to run.
func (k *Kernel) NewProcess(img mm.Image) (*ProcessControlBlock, error) {
	ms, ustackBase, entry, err := mm.FromImage(k.frames, img)
	if err != nil {
		return nil, err
	}
	p := &ProcessControlBlock{k: k, pid: k.allocPid()}
	p.inner = sync.NewCell(k.mask, ProcessInner{
		MemorySet: ms,
		Parent:    -1,
		FDs:       []fs.File{k.stdin, k.stdout, k.stdout},
	})

	g := p.inner.Access()
	t, err := newTask(k, p, g.Get(), ustackBase, true)
	if err != nil {
		g.Release()
		ms.Release()
		k.deallocPid(p.pid)
		return nil, fmt.Errorf("new process %s: %w", img.Name, err)
	}
	g.Get().Tasks = append(g.Get().Tasks, t)
	g.Release()

	cx := k.initContext(t, entry, t.UserRes().UstackTop())
	t.UpdateTrapContext(func(c *trap.TrapContext) { *c = cx })

	k.insertProcess(p)
	k.addTask(t)
	k.log.Debugf("task: pid %d created from %s", p.pid, img.Name)
	return p, nil
}

// Exec replaces the address space of a single-threaded process with img and
// starts thread 0 at its entry with args laid out on the user stack:
// an argv array terminated by 0 followed by the NUL-terminated strings.
func (p *ProcessControlBlock) Exec(img mm.Image, args []string) error {
	k := p.k
	ms, ustackBase, entry, err := mm.FromImage(k.frames, img)
	if err != nil {
		return err
	}

	g := p.inner.Access()
	in := g.Get()
	if n := in.ThreadCount(); n != 1 {
		g.Release()
		ms.Release()
		kernel.Raise(kernel.FaultMultiThreadExec, "task", "exec with %d live threads", n)
	}
	t := in.Tasks[0]
	g.Release()

	// The new image is complete before it replaces the old one; a failure
	// up to here leaves the caller running its old program.
	tg := t.inner.Access()
	res := TaskUserRes{Tid: tg.Get().res.Tid, UstackBase: ustackBase}
	tg.Release()
	if err := res.alloc(ms); err != nil {
		ms.Release()
		return err
	}
	sp, argvBase, err := pushArgs(ms, res.UstackTop(), args)
	if err != nil {
		ms.Release()
		return err
	}

	g = p.inner.Access()
	in = g.Get()
	for _, other := range in.Tasks[1:] {
		if other != nil {
			other.kstack.Free()
		}
	}
	in.Tasks = in.Tasks[:1]
	old := in.MemorySet
	in.MemorySet = ms
	g.Release()
	old.Release()

	tg = t.inner.Access()
	ti := tg.Get()
	*ti.res = res
	ti.trapCxPPN = res.trapCxPPN(ms)
	tg.Release()

	cx := k.initContext(t, entry, sp)
	cx.X[trap.RegA0] = uint64(len(args))
	cx.X[trap.RegA1] = uint64(argvBase)
	t.UpdateTrapContext(func(c *trap.TrapContext) { *c = cx })
	k.log.Debugf("task: pid %d exec %s argc=%d", p.pid, img.Name, len(args))
	return nil
}

// pushArgs lays argv out below top: the pointer array, NULL-terminated, with
// the strings beneath it. It returns the aligned stack pointer and the
// address of the array.
func pushArgs(ms *mm.MemorySet, top mm.VirtAddr, args []string) (sp, argvBase mm.VirtAddr, err error) {
	const word = 8
	sp = top - mm.VirtAddr((len(args)+1)*word)
	argvBase = sp
	if err := ms.WriteUint64(argvBase+mm.VirtAddr(len(args)*word), 0); err != nil {
		return 0, 0, err
	}
	for i, arg := range args {
		sp -= mm.VirtAddr(len(arg) + 1)
		if err := ms.WriteUint64(argvBase+mm.VirtAddr(i*word), uint64(sp)); err != nil {
			return 0, 0, err
		}
		at := sp
		for j := 0; j < len(arg); j++ {
			if err := ms.StoreByte(at, arg[j]); err != nil {
				return 0, 0, err
			}
			at++
		}
		if err := ms.StoreByte(at, 0); err != nil {
			return 0, 0, err
		}
	}
	sp -= sp % word
	return sp, argvBase, nil
}

// Fork copies the process. The child shares the parent's open files, gets a
// copy of every page (trap contexts and the code table included) and one
// thread that resumes from thread 0's saved context.
func (p *ProcessControlBlock) Fork() (*ProcessControlBlock, error) {
	k := p.k
	g := p.inner.Access()
	parent := g.Get()
	ms, err := parent.MemorySet.Clone()
	if err != nil {
		g.Release()
		return nil, err
	}
	ustackBase := parent.Tasks[0].UserRes().UstackBase
	child := &ProcessControlBlock{k: k, pid: k.allocPid()}
	child.inner = sync.NewCell(k.mask, ProcessInner{
		MemorySet: ms,
		Parent:    p.pid,
		FDs:       append([]fs.File(nil), parent.FDs...),
	})
	parent.Children = append(parent.Children, child)
	g.Release()

	cg := child.inner.Access()
	t, err := newTask(k, child, cg.Get(), ustackBase, false)
	if err != nil {
		cg.Release()
		p.removeChild(child)
		ms.Release()
		k.deallocPid(child.pid)
		return nil, err
	}
	cg.Get().Tasks = append(cg.Get().Tasks, t)
	cg.Release()

	t.UpdateTrapContext(func(c *trap.TrapContext) { c.KernelSp = t.kstack.Top() })
	k.insertProcess(child)
	k.addTask(t)
	k.log.Debugf("task: pid %d forked pid %d", p.pid, child.pid)
	return child, nil
}

func (p *ProcessControlBlock) removeChild(c *ProcessControlBlock) {
	g := p.inner.Access()
	defer g.Release()
	in := g.Get()
	for i, x := range in.Children {
		if x == c {
			in.Children = append(in.Children[:i], in.Children[i+1:]...)
			return
		}
	}
}

// ThreadCreate adds a thread entering user mode at entry with arg in a0.
func (p *ProcessControlBlock) ThreadCreate(entry mm.VirtAddr, arg uint64) (*TaskControlBlock, error) {
	k := p.k
	g := p.inner.Access()
	in := g.Get()
	ustackBase := in.Tasks[0].UserRes().UstackBase
	t, err := newTask(k, p, in, ustackBase, true)
	if err != nil {
		g.Release()
		return nil, err
	}
	for len(in.Tasks) <= t.tid {
		in.Tasks = append(in.Tasks, nil)
	}
	in.Tasks[t.tid] = t
	g.Release()

	cx := k.initContext(t, entry, t.UserRes().UstackTop())
	cx.X[trap.RegA0] = arg
	t.UpdateTrapContext(func(c *trap.TrapContext) { *c = cx })
	k.addTask(t)
	return t, nil
}

// WaitTid reaps thread tid. It returns -1 for the caller itself or an
// unknown tid and -2 while the thread still runs.
func (p *ProcessControlBlock) WaitTid(caller *TaskControlBlock, tid int) int {
	g := p.inner.Access()
	defer g.Release()
	in := g.Get()
	if tid == caller.tid {
		return -1
	}
	t := in.Task(tid)
	if t == nil {
		return -1
	}
	code, exited := t.ExitCode()
	if !exited {
		return -2
	}
	in.Tasks[tid] = nil
	t.kstack.Free()
	return code
}

// WaitPid reaps a zombie child. pid -1 matches any child. It returns -1 when
// no child matches and -2 while the matching children still run.
func (p *ProcessControlBlock) WaitPid(pid int) (int, int) {
	k := p.k
	g := p.inner.Access()
	in := g.Get()
	found := false
	for i, c := range in.Children {
		if pid != -1 && c.pid != pid {
			continue
		}
		found = true
		cg := c.inner.Access()
		ci := cg.Get()
		if !ci.Zombie {
			cg.Release()
			continue
		}
		in.Children = append(in.Children[:i], in.Children[i+1:]...)
		code := ci.ExitCode
		for _, t := range ci.Tasks {
			if t != nil && t.kstack.k != nil {
				t.kstack.Free()
			}
		}
		ci.Tasks = nil
		ms := ci.MemorySet
		ci.MemorySet = nil
		cg.Release()
		g.Release()
		if ms != nil {
			ms.Release()
		}
		k.deallocPid(c.pid)
		return c.pid, code
	}
	g.Release()
	if !found {
		return -1, 0
	}
	return -2, 0
}

// Kill raises sig on the process.
func (p *ProcessControlBlock) Kill(sig SignalFlags) {
	p.inner.Session(func(in *ProcessInner) { in.Signals |= sig })
}
