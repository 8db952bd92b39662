package app

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"hartos/hal"
	"hartos/kernel"
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
	h.blk = hal.NewVirtIOBlk(hal.NewMemStore(16), plic, hal.IRQBlock)
	h.kbd = hal.NewVirtIOInput("keyboard", plic, hal.IRQKeyboard)
	h.mouse = hal.NewVirtIOInput("mouse", plic, hal.IRQMouse)
	h.gpu = hal.NewVirtIOGpu(64, 32)
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

// runInit boots with initproc running argv and returns the serial output.
func runInit(t *testing.T, argv ...string) (string, *testHAL) {
	t.Helper()
	h := newTestHAL()
	sys, err := Boot(h, Config{Init: argv, LogLevel: kernel.LevelError, Banner: true})
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- sys.Run(ctx) }()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run() error = %v\noutput:\n%s", err, h.out.String())
		}
	case <-time.After(10 * time.Second):
		cancel()
		<-errc
		t.Fatalf("timed out; output so far:\n%s", h.out.String())
	}
	return h.out.String(), h
}

func TestBootWithoutInitCommand(t *testing.T) {
	out, h := runInit(t)
	if out != "" {
		t.Fatalf("output = %q, want none", out)
	}
	if h.gpu.Flushes() == 0 {
		t.Fatalf("boot banner was not flushed")
	}
}

func TestEcho(t *testing.T) {
	out, _ := runInit(t, "echo", "hello", "world")
	if !strings.HasPrefix(out, "hello world\n") {
		t.Fatalf("output = %q, want prefix %q", out, "hello world\n")
	}
	if !strings.Contains(out, "[initproc] released a zombie process, pid=1, exit_code=0\n") {
		t.Fatalf("output = %q, want initproc to reap pid 1", out)
	}
}

func TestExecUnknownProgram(t *testing.T) {
	out, _ := runInit(t, "nope")
	if !strings.Contains(out, "initproc: cannot exec nope\n") {
		t.Fatalf("output = %q, want exec failure", out)
	}
	if !strings.Contains(out, "exit_code=-1") {
		t.Fatalf("output = %q, want exit_code=-1", out)
	}
}

func TestBarrierCondvar(t *testing.T) {
	out, _ := runInit(t, "barrier_condvar")
	want := strings.Repeat("a", 90) + strings.Repeat("b", 90) + strings.Repeat("c", 90) +
		"\nTest barrier_condvar passed!\n"
	if !strings.HasPrefix(out, want) {
		t.Fatalf("output = %q, want prefix %q", out, want)
	}
}

func TestForktest(t *testing.T) {
	out, _ := runInit(t, "forktest")
	for i := 0; i < 5; i++ {
		if line := "I am child " + string(rune('0'+i)) + "\n"; !strings.Contains(out, line) {
			t.Fatalf("output = %q, missing %q", out, line)
		}
	}
	if !strings.Contains(out, "forktest pass, exit codes sum to 510\n") {
		t.Fatalf("output = %q, want forktest pass", out)
	}
}

func TestThreads(t *testing.T) {
	out, _ := runInit(t, "threads")
	if !strings.HasPrefix(out, strings.Repeat("xyz", 10)+"\nthreads passed\n") {
		t.Fatalf("output = %q, want interleaved xyz", out)
	}
}

func TestDisktest(t *testing.T) {
	out, h := runInit(t, "disktest")
	if !strings.Contains(out, "disktest passed\n") {
		t.Fatalf("output = %q, want disktest passed", out)
	}
	buf := make([]byte, hal.BlockSize)
	if _, err := h.blk.Submit(hal.BlkIn, 1, buf); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if buf[3] != 21 {
		t.Fatalf("disk block 1 byte 3 = %d, want 21", buf[3])
	}
}

func TestGuiSimple(t *testing.T) {
	out, h := runInit(t, "gui_simple")
	if !strings.Contains(out, "exit_code=0") {
		t.Fatalf("output = %q, want gui_simple to exit 0", out)
	}
	scan := make([]byte, 64*32*4)
	if n := h.gpu.SnapshotScanout(scan); n == 0 {
		t.Fatalf("SnapshotScanout() = 0, want a flushed frame")
	}
	// Pixel (5, 2) is BGRA {5, 2, 7, 255} in the gradient.
	off := (2*64 + 5) * 4
	if got := scan[off : off+3]; !bytes.Equal(got, []byte{5, 2, 7}) {
		t.Fatalf("pixel (5,2) = %v, want [5 2 7]", got)
	}
}

func TestPanicScreenWraps(t *testing.T) {
	h := newTestHAL()
	sys, err := Boot(h, Config{LogLevel: kernel.LevelError})
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	d := sys.Devices().GPU.Display()
	drawPanicScreen(d, kernel.PanicInfo{Pid: 3, Tid: 1, Stack: []byte(strings.Repeat("frame ", 40))})
	fb := sys.Devices().GPU.Framebuffer()
	dark := 0
	for i := 0; i+3 < len(fb); i += 4 {
		if fb[i] == 0 && fb[i+1] == 0 && fb[i+2] == 0 {
			dark++
		}
	}
	if dark == 0 {
		t.Fatalf("panic screen drew no text")
	}
}

func TestTakeRunes(t *testing.T) {
	prefix, rest := takeRunes("héllo", 2)
	if prefix != "hé" || rest != "llo" {
		t.Fatalf("takeRunes() = %q, %q, want %q, %q", prefix, rest, "hé", "llo")
	}
	if prefix, rest := takeRunes("ab", 5); prefix != "ab" || rest != "" {
		t.Fatalf("takeRunes() = %q, %q, want %q, %q", prefix, rest, "ab", "")
	}
}
