// Package task implements threads and processes on a single hart: id
// allocation, control blocks, the ready queue and the processor loop that
// hands the hart from thread to thread.
package task

import (
	"errors"

	"hartos/fs"
	"hartos/hal"
	"hartos/kernel"
	"hartos/mm"
	"hartos/sync"
)

var ErrNoLauncher = errors.New("task: no user launcher installed")

// Config configures a Kernel.
type Config struct {
	Hart *hal.Hart
	Log  *kernel.Log
	// Memory bounds the frames available to address spaces. Zero values
	// select KernelEnd and MemoryEnd.
	MemoryStart, MemoryEnd mm.PhysAddr
}

// Launcher enters user code at entry on behalf of t. It returns only if the
// program returns without exiting.
type Launcher func(t *TaskControlBlock, entry mm.Code)

type processor struct {
	current *TaskControlBlock
}

// Kernel owns every task-layer structure of one hart. It implements
// sync.Scheduler.
type Kernel struct {
	hart   *hal.Hart
	mask   *sync.Masking
	log    *kernel.Log
	frames *mm.FrameAllocator

	kernelSpace *sync.Cell[*mm.MemorySet]
	pids        *sync.Cell[RecycleAllocator]
	kstackIDs   *sync.Cell[RecycleAllocator]
	mgr         *sync.Cell[manager]
	proc        *sync.Cell[processor]

	idle     chan struct{}
	live     map[*TaskControlBlock]struct{}
	launch   Launcher
	stdin    fs.File
	stdout   fs.File
	initproc *ProcessControlBlock

	resched  bool
	fault    *kernel.Fault
	done     bool
	exitCode int
}

// NewKernel builds the task layer over cfg.Hart.
func NewKernel(cfg Config) (*Kernel, error) {
	if cfg.MemoryStart == 0 {
		cfg.MemoryStart = mm.KernelEnd
	}
	if cfg.MemoryEnd == 0 {
		cfg.MemoryEnd = mm.MemoryEnd
	}
	mask := sync.NewMasking(cfg.Hart)
	frames := mm.NewFrameAllocator(mask, mm.NewPhysMem(), cfg.MemoryStart, cfg.MemoryEnd)
	ks, err := mm.NewKernelSpace(frames)
	if err != nil {
		return nil, err
	}
	k := &Kernel{
		hart:        cfg.Hart,
		mask:        mask,
		log:         cfg.Log,
		frames:      frames,
		kernelSpace: sync.NewCell(mask, ks),
		pids:        sync.NewCell(mask, RecycleAllocator{}),
		kstackIDs:   sync.NewCell(mask, RecycleAllocator{}),
		mgr:         sync.NewCell(mask, manager{procs: make(map[int]*ProcessControlBlock)}),
		proc:        sync.NewCell(mask, processor{}),
		idle:        make(chan struct{}),
		live:        make(map[*TaskControlBlock]struct{}),
	}
	return k, nil
}

func (k *Kernel) Hart() *hal.Hart            { return k.hart }
func (k *Kernel) Masking() *sync.Masking     { return k.mask }
func (k *Kernel) Log() *kernel.Log           { return k.log }
func (k *Kernel) Frames() *mm.FrameAllocator { return k.frames }

// SetStdio selects the files new processes get as fds 0, 1 and 2.
func (k *Kernel) SetStdio(in, out fs.File) {
	k.stdin = in
	k.stdout = out
}

// SetLauncher installs the user-mode entry hook.
func (k *Kernel) SetLauncher(l Launcher) { k.launch = l }

// SetInitProc marks p as the process orphans are handed to. The hart halts
// when it exits.
func (k *Kernel) SetInitProc(p *ProcessControlBlock) { k.initproc = p }

func (k *Kernel) InitProc() *ProcessControlBlock { return k.initproc }

// ExitCode reports initproc's exit code once it has exited.
func (k *Kernel) ExitCode() (int, bool) { return k.exitCode, k.done }

// Fault returns the fault that halted the hart, if any.
func (k *Kernel) Fault() *kernel.Fault { return k.fault }

// RequestResched asks the running thread to yield at its next kernel exit.
func (k *Kernel) RequestResched() { k.resched = true }

// TakeResched reports and clears a pending reschedule request.
func (k *Kernel) TakeResched() bool {
	r := k.resched
	k.resched = false
	return r
}

func (k *Kernel) kernelToken() uint64 {
	g := k.kernelSpace.Access()
	defer g.Release()
	return (*g.Get()).Token()
}

// CurrentTask returns the running thread or nil in the idle loop.
func (k *Kernel) CurrentTask() *TaskControlBlock {
	g := k.proc.Access()
	defer g.Release()
	return g.Get().current
}

// CurrentProcess returns the running thread's process.
func (k *Kernel) CurrentProcess() *ProcessControlBlock {
	if t := k.CurrentTask(); t != nil {
		return t.process
	}
	return nil
}

func (k *Kernel) setCurrent(t *TaskControlBlock) {
	k.proc.Session(func(p *processor) { p.current = t })
}

func (k *Kernel) mustCurrent() *TaskControlBlock {
	t := k.CurrentTask()
	if t == nil {
		kernel.Raise(kernel.FaultNoCurrent, "task", "no current task")
	}
	return t
}
