// Package syscall is the user-kernel boundary. A user program is a Go
// function running on its thread's goroutine that reaches the kernel only
// through the methods of its Context. Each method is one trap: interrupts
// pending at entry are taken, and on the way back to user mode fatal signals
// are acted on and a pending reschedule request yields the hart.
package syscall

import (
	"hartos/board"
	"hartos/kernel"
	"hartos/mm"
	"hartos/task"
	"hartos/trap"
)

// Program is the entry point of a user process. Its return value is the
// process exit code.
type Program func(c *Context) int

// ThreadEntry is the entry point of a thread created with ThreadCreate; arg
// arrives in a0.
type ThreadEntry func(c *Context, arg uint64) int

// Loader resolves a program name to an image.
type Loader func(name string) (mm.Image, bool)

// System binds the syscall layer to one kernel and its devices.
type System struct {
	k    *task.Kernel
	dev  *board.Devices
	load Loader
	log  *kernel.Log

	// fb is the GPU framebuffer as seen in physical memory.
	fb mm.PPNRange
}

// New installs the syscall layer as k's user launcher.
func New(k *task.Kernel, dev *board.Devices, load Loader) *System {
	s := &System{k: k, dev: dev, load: load, log: k.Log()}
	s.fb = k.Frames().Mem().MapDevice(board.FramebufferPhys, dev.GPU.Framebuffer())
	k.SetLauncher(s.launch)
	return s
}

func (s *System) Kernel() *task.Kernel    { return s.k }
func (s *System) Devices() *board.Devices { return s.dev }

// Spawn loads a program by name into a new process.
func (s *System) Spawn(name string) (*task.ProcessControlBlock, error) {
	img, ok := s.load(name)
	if !ok {
		return nil, &NoProgramError{Name: name}
	}
	return s.k.NewProcess(img)
}

func (s *System) launch(t *task.TaskControlBlock, entry mm.Code) {
	c := newContext(s, t)
	var code int
	switch e := entry.(type) {
	case Program:
		code = e(c)
	case ThreadEntry:
		code = e(c, t.TrapContext().X[trap.RegA0])
	default:
		kernel.Raise(kernel.FaultBadHandle, "syscall", "pid %d tid %d: %T is not user code",
			t.Process().Pid(), t.Tid(), entry)
	}
	c.Exit(code)
}

// NoProgramError reports an exec or spawn of an unknown program.
type NoProgramError struct {
	Name string
}

func (e *NoProgramError) Error() string { return "syscall: no program " + e.Name }

// Context is the user side of one thread.
type Context struct {
	sys *System
	t   *task.TaskControlBlock

	// sp is the lowest address handed out by Alloca.
	sp      mm.VirtAddr
	scratch mm.VirtAddr
}

func newContext(s *System, t *task.TaskControlBlock) *Context {
	return &Context{sys: s, t: t, sp: mm.VirtAddr(t.TrapContext().SP())}
}

func (c *Context) Task() *task.TaskControlBlock { return c.t }

func (c *Context) enter() {
	c.sys.k.Hart().Poll()
}

func (c *Context) leave() {
	k := c.sys.k
	k.Hart().Poll()
	g := c.t.Process().Inner()
	sig := g.Get().Signals
	g.Release()
	if code, msg, ok := sig.CheckError(); ok {
		c.sys.log.Infof("syscall: pid %d: %s", c.t.Process().Pid(), msg)
		k.ExitCurrent(code)
	}
	if k.TakeResched() {
		k.Yield()
	}
}

// memorySet borrows the current address space for the duration of f.
func (c *Context) memorySet(f func(ms *mm.MemorySet) error) error {
	g := c.t.Process().Inner()
	defer g.Release()
	return f(g.Get().MemorySet)
}
