package syscall

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hartos/board"
	"hartos/fs"
	"hartos/hal"
	"hartos/kernel"
	"hartos/mm"
	"hartos/task"
	"hartos/trap"
)

type testHAL struct {
	hart  *hal.Hart
	plic  *hal.PLIC
	uart  *hal.NS16550a
	blk   *hal.VirtIOBlk
	kbd   *hal.VirtIOInput
	mouse *hal.VirtIOInput
	gpu   *hal.VirtIOGpu
	out   bytes.Buffer
}

func newTestHAL() *testHAL {
	hart := hal.NewHart(0)
	plic := hal.NewPLIC(hart)
	h := &testHAL{hart: hart, plic: plic}
	h.uart = hal.NewNS16550a(&h.out, plic, hal.IRQUART)
	h.blk = hal.NewVirtIOBlk(hal.NewMemStore(8), plic, hal.IRQBlock)
	h.kbd = hal.NewVirtIOInput("keyboard", plic, hal.IRQKeyboard)
	h.mouse = hal.NewVirtIOInput("mouse", plic, hal.IRQMouse)
	// One page of pixels so the framebuffer maps whole frames.
	h.gpu = hal.NewVirtIOGpu(32, 32)
	return h
}

func (h *testHAL) Logger() hal.Logger         { return nil }
func (h *testHAL) Hart() *hal.Hart            { return h.hart }
func (h *testHAL) PLIC() *hal.PLIC            { return h.plic }
func (h *testHAL) UART() *hal.NS16550a        { return h.uart }
func (h *testHAL) Block() *hal.VirtIOBlk      { return h.blk }
func (h *testHAL) Keyboard() *hal.VirtIOInput { return h.kbd }
func (h *testHAL) Mouse() *hal.VirtIOInput    { return h.mouse }
func (h *testHAL) GPU() *hal.VirtIOGpu        { return h.gpu }

type machine struct {
	h   *testHAL
	k   *task.Kernel
	sys *System
}

// boot starts a kernel whose initproc is progs["init"].
func boot(t *testing.T, progs map[string]Program) *machine {
	t.Helper()
	kernel.ResetPanicState()
	h := newTestHAL()
	log := kernel.NewLog(nil, kernel.LevelError)
	k, err := task.NewKernel(task.Config{Hart: h.hart, Log: log})
	if err != nil {
		t.Fatalf("NewKernel() error = %v", err)
	}
	dev := board.NewDevices(h, k.Masking(), k, log)
	dev.Init(0)
	k.SetStdio(fs.NewStdin(dev.UART), fs.NewStdout(dev.UART))
	h.hart.SetTrapVector(trap.NewVector(h.hart, log, trap.Handlers{
		External: dev.IrqHandler,
		Timer:    k.RequestResched,
	}))
	h.hart.EnableExternal()

	load := func(name string) (mm.Image, bool) {
		p, ok := progs[name]
		if !ok {
			return mm.Image{}, false
		}
		return mm.Image{Name: name, Data: []byte(name), Entry: p}, true
	}
	sys := New(k, dev, load)
	p, err := sys.Spawn("init")
	if err != nil {
		t.Fatalf("Spawn(init) error = %v", err)
	}
	k.SetInitProc(p)
	return &machine{h: h, k: k, sys: sys}
}

func (m *machine) run(t *testing.T) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- m.k.Run(ctx) }()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		cancel()
		<-errc
		t.Fatalf("timed out waiting for the kernel to halt")
		return nil
	}
}

func (m *machine) mustRun(t *testing.T) int {
	t.Helper()
	if err := m.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	code, ok := m.k.ExitCode()
	if !ok {
		t.Fatalf("initproc did not exit")
	}
	return code
}

func TestSpawnUnknownProgram(t *testing.T) {
	m := boot(t, map[string]Program{"init": func(*Context) int { return 0 }})
	_, err := m.sys.Spawn("missing")
	var npe *NoProgramError
	if !errors.As(err, &npe) || npe.Name != "missing" {
		t.Fatalf("Spawn(missing) error = %v, want NoProgramError", err)
	}
}

func TestInitExitCodeHaltsRun(t *testing.T) {
	m := boot(t, map[string]Program{"init": func(c *Context) int {
		if c.GetPid() != 0 || c.GetTid() != 0 {
			return -1
		}
		return 42
	}})
	if code := m.mustRun(t); code != 42 {
		t.Fatalf("exit code = %d, want 42", code)
	}
}

func TestEventGet(t *testing.T) {
	var m *machine
	var before, key, mouse, after uint64
	m = boot(t, map[string]Program{"init": func(c *Context) int {
		before = c.EventGet()
		m.h.kbd.Inject(hal.InputEvent{EventType: hal.EvKey, Code: 30, Value: 1})
		m.h.mouse.Inject(hal.InputEvent{EventType: hal.EvRel, Code: 1, Value: 5})
		key = c.EventGet()
		mouse = c.EventGet()
		after = c.EventGet()
		return 0
	}})
	m.mustRun(t)
	if before != 0 {
		t.Fatalf("EventGet() before input = %#x, want 0", before)
	}
	if want := uint64(1)<<48 | uint64(30)<<32 | 1; key != want {
		t.Fatalf("EventGet() = %#x, want %#x", key, want)
	}
	if want := uint64(2)<<48 | uint64(1)<<32 | 5; mouse != want {
		t.Fatalf("EventGet() = %#x, want %#x", mouse, want)
	}
	if after != 0 {
		t.Fatalf("EventGet() after drain = %#x, want 0", after)
	}
}

func TestKeyPressedReportsEmptyBuffer(t *testing.T) {
	var m *machine
	var got []int
	var ch byte
	m = boot(t, map[string]Program{"init": func(c *Context) int {
		got = append(got, c.KeyPressed())
		m.h.uart.Receive('q')
		got = append(got, c.KeyPressed())
		ch = c.Getchar()
		got = append(got, c.KeyPressed())
		return 0
	}})
	m.mustRun(t)
	if want := []int{1, 0, 1}; len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("KeyPressed() = %v, want %v", got, want)
	}
	if ch != 'q' {
		t.Fatalf("Getchar() = %q, want 'q'", ch)
	}
}

func TestFramebufferMapsOnce(t *testing.T) {
	var m *machine
	var va1, va2 mm.VirtAddr
	var areas1, areas2 int
	m = boot(t, map[string]Program{"init": func(c *Context) int {
		va1 = c.Framebuffer()
		c.memorySet(func(ms *mm.MemorySet) error { areas1 = ms.Areas(); return nil })
		va2 = c.Framebuffer()
		c.memorySet(func(ms *mm.MemorySet) error { areas2 = ms.Areas(); return nil })
		if c.Store(va1, []byte{1, 2, 3, 4}) < 0 {
			return -1
		}
		return c.FramebufferFlush()
	}})
	if code := m.mustRun(t); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if va1 != FBVAddr || va2 != va1 {
		t.Fatalf("Framebuffer() = %#x then %#x, want %#x twice", va1, va2, FBVAddr)
	}
	if areas2 != areas1 {
		t.Fatalf("areas after second Framebuffer() = %d, want %d", areas2, areas1)
	}
	if got := m.sys.dev.GPU.Framebuffer()[:4]; !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("framebuffer = %v, want [1 2 3 4]", got)
	}
	if m.h.gpu.Flushes() == 0 {
		t.Fatalf("FramebufferFlush() did not flush the GPU")
	}
}

func TestForkCopiesMemory(t *testing.T) {
	var parentSees, childSaw uint64
	var childCode int
	m := boot(t, map[string]Program{"init": func(c *Context) int {
		va := c.Alloca(8)
		c.StoreUint64(va, 1)
		pid := c.Fork(func(c *Context) int {
			childSaw, _ = c.LoadUint64(va)
			c.StoreUint64(va, 2)
			v, _ := c.LoadUint64(va)
			return int(v) + 5
		})
		if pid <= 0 {
			return -1
		}
		// The child has not run yet; this write lands after the copy.
		c.StoreUint64(va, 3)
		got, code := c.Wait(pid)
		if got != pid {
			return -1
		}
		childCode = code
		parentSees, _ = c.LoadUint64(va)
		return 0
	}})
	if code := m.mustRun(t); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if childSaw != 1 {
		t.Fatalf("child value before its write = %d, want 1", childSaw)
	}
	if childCode != 7 {
		t.Fatalf("child exit code = %d, want 7", childCode)
	}
	if parentSees != 3 {
		t.Fatalf("parent value = %d, want 3", parentSees)
	}
}

func TestNegativeLengthsAreRejected(t *testing.T) {
	var read, write int
	var loadErr error
	var stack mm.VirtAddr
	m := boot(t, map[string]Program{"init": func(c *Context) int {
		va := c.Alloca(8)
		read = c.Read(0, va, -1)
		write = c.Write(1, va, -1)
		_, loadErr = c.Load(va, -1)
		stack = c.Alloca(-1)
		return 0
	}})
	if code := m.mustRun(t); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if read != -1 || write != -1 {
		t.Fatalf("Read(), Write() with n = -1 = %d, %d, want -1, -1", read, write)
	}
	if !errors.Is(loadErr, mm.ErrBadLength) {
		t.Fatalf("Load() with n = -1 error = %v, want ErrBadLength", loadErr)
	}
	if stack != 0 {
		t.Fatalf("Alloca(-1) = %#x, want 0", stack)
	}
	if m.h.out.Len() != 0 {
		t.Fatalf("output = %q, want none", m.h.out.String())
	}
}

func TestWaitPidWithoutChildren(t *testing.T) {
	var pid int
	m := boot(t, map[string]Program{"init": func(c *Context) int {
		pid, _ = c.WaitPid(-1)
		return 0
	}})
	m.mustRun(t)
	if pid != -1 {
		t.Fatalf("WaitPid(-1) = %d, want -1", pid)
	}
}

func TestExecPassesArgs(t *testing.T) {
	m := boot(t, map[string]Program{
		"init": func(c *Context) int {
			pid := c.Fork(func(c *Context) int {
				c.Exec("echo", []string{"echo", "hello", "world"})
				return -1
			})
			_, code := c.Wait(pid)
			return code
		},
		"echo": func(c *Context) int {
			c.Print(strings.Join(c.Args(), ",") + "\n")
			return 3
		},
	})
	if code := m.mustRun(t); code != 3 {
		t.Fatalf("exit code = %d, want 3", code)
	}
	if got := m.h.out.String(); got != "echo,hello,world\n" {
		t.Fatalf("output = %q, want %q", got, "echo,hello,world\n")
	}
}

func TestExecUnknownProgramReturns(t *testing.T) {
	var ret int
	m := boot(t, map[string]Program{"init": func(c *Context) int {
		ret = c.Exec("missing", nil)
		return 0
	}})
	m.mustRun(t)
	if ret != -1 {
		t.Fatalf("Exec(missing) = %d, want -1", ret)
	}
}

func TestExecArgsOverflowKeepsOldImage(t *testing.T) {
	var ret int
	var kept uint64
	var loadErr error
	m := boot(t, map[string]Program{
		"init": func(c *Context) int {
			va := c.Alloca(8)
			c.StoreUint64(va, 42)
			ret = c.Exec("echo", []string{strings.Repeat("x", 2*mm.UserStackSize)})
			kept, loadErr = c.LoadUint64(va)
			return 5
		},
		"echo": func(c *Context) int { return 0 },
	})
	if code := m.mustRun(t); code != 5 {
		t.Fatalf("exit code = %d, want 5", code)
	}
	if ret != -1 {
		t.Fatalf("Exec() with oversized args = %d, want -1", ret)
	}
	if loadErr != nil || kept != 42 {
		t.Fatalf("LoadUint64() after failed exec = %d, %v, want 42, nil", kept, loadErr)
	}
}

func TestExecWithThreadsFaults(t *testing.T) {
	m := boot(t, map[string]Program{
		"init": func(c *Context) int {
			c.ThreadCreate(func(c *Context, _ uint64) int {
				for {
					c.Yield()
				}
			}, 0)
			c.Exec("other", nil)
			return 0
		},
		"other": func(*Context) int { return 0 },
	})
	err := m.run(t)
	var f *kernel.Fault
	if !errors.As(err, &f) || f.Code != kernel.FaultMultiThreadExec {
		t.Fatalf("Run() error = %v, want multi-thread exec fault", err)
	}
}

func TestKillDeliversSignal(t *testing.T) {
	var code int
	m := boot(t, map[string]Program{"init": func(c *Context) int {
		pid := c.Fork(func(c *Context) int {
			for {
				c.Yield()
			}
		})
		c.Yield()
		if c.Kill(pid, 9) != 0 {
			return -1
		}
		_, code = c.Wait(pid)
		return 0
	}})
	m.mustRun(t)
	if code != -9 {
		t.Fatalf("killed child exit code = %d, want -9", code)
	}
}

func TestThreadsJoin(t *testing.T) {
	var codes []int
	m := boot(t, map[string]Program{"init": func(c *Context) int {
		var tids []int
		for i := 0; i < 3; i++ {
			tids = append(tids, c.ThreadCreate(func(c *Context, arg uint64) int {
				c.Yield()
				return int(arg) * 10
			}, uint64(i+1)))
		}
		for _, tid := range tids {
			codes = append(codes, c.Join(tid))
		}
		if c.WaitTid(0) != -1 {
			return -1
		}
		return 0
	}})
	if code := m.mustRun(t); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if len(codes) != 3 || codes[0] != 10 || codes[1] != 20 || codes[2] != 30 {
		t.Fatalf("Join() codes = %v, want [10 20 30]", codes)
	}
}

func TestSemaphoreBlocksUntilUp(t *testing.T) {
	var order []string
	m := boot(t, map[string]Program{"init": func(c *Context) int {
		sem := c.SemaphoreCreate(0)
		tid := c.ThreadCreate(func(c *Context, _ uint64) int {
			c.SemaphoreDown(sem)
			order = append(order, "down")
			return 0
		}, 0)
		c.Yield()
		c.Yield()
		order = append(order, "up")
		c.SemaphoreUp(sem)
		c.Join(tid)
		return 0
	}})
	m.mustRun(t)
	if len(order) != 2 || order[0] != "up" || order[1] != "down" {
		t.Fatalf("order = %v, want [up down]", order)
	}
}

func TestBadHandles(t *testing.T) {
	var rets []int
	m := boot(t, map[string]Program{"init": func(c *Context) int {
		rets = append(rets,
			c.MutexLock(3),
			c.MutexUnlock(-1),
			c.SemaphoreUp(7),
			c.SemaphoreDown(7),
			c.CondvarSignal(1),
			c.CondvarWait(1, 0),
			c.Close(9),
			c.Write(9, 0, 1),
		)
		return 0
	}})
	m.mustRun(t)
	for i, r := range rets {
		if r != -1 {
			t.Fatalf("call %d = %d, want -1", i, r)
		}
	}
}

func TestDiskRoundTrip(t *testing.T) {
	var got []byte
	m := boot(t, map[string]Program{"init": func(c *Context) int {
		buf := c.Alloca(hal.BlockSize)
		c.Store(buf, bytes.Repeat([]byte{0xA5}, hal.BlockSize))
		if c.DiskWrite(3, buf) < 0 {
			return -1
		}
		c.Store(buf, make([]byte, hal.BlockSize))
		if c.DiskRead(3, buf) < 0 {
			return -2
		}
		got, _ = c.Load(buf, hal.BlockSize)
		if c.DiskRead(100, buf) != -1 {
			return -3
		}
		return 0
	}})
	if code := m.mustRun(t); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{0xA5}, hal.BlockSize)) {
		t.Fatalf("DiskRead() returned different data")
	}
}
