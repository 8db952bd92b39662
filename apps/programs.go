package apps

import (
	"bytes"
	"fmt"
	"strings"

	"hartos/hal"
	"hartos/mm"
	"hartos/syscall"
)

func echo(c *syscall.Context) int {
	args := c.Args()
	if len(args) > 0 {
		args = args[1:]
	}
	c.Print(strings.Join(args, " ") + "\n")
	return 0
}

const forkChildren = 5

func forktest(c *syscall.Context) int {
	for i := 0; i < forkChildren; i++ {
		pid := c.Fork(func(c *syscall.Context) int {
			c.Print(fmt.Sprintf("I am child %d\n", i))
			return 100 + i
		})
		if pid < 0 {
			c.Print("forktest: fork failed\n")
			return -1
		}
	}
	sum := 0
	for i := 0; i < forkChildren; i++ {
		pid, code := c.Wait(-1)
		if pid < 0 {
			c.Print("forktest: wait stopped early\n")
			return -1
		}
		sum += code
	}
	if pid, _ := c.WaitPid(-1); pid != -1 {
		c.Print("forktest: too many children\n")
		return -1
	}
	c.Print(fmt.Sprintf("forktest pass, exit codes sum to %d\n", sum))
	return 0
}

func disktest(c *syscall.Context) int {
	const block = 1
	buf := c.Alloca(hal.BlockSize)
	if buf == 0 {
		return -1
	}
	want := make([]byte, hal.BlockSize)
	for i := range want {
		want[i] = byte(i * 7)
	}
	c.Store(buf, want)
	if c.DiskWrite(block, buf) < 0 {
		c.Print("disktest: write failed\n")
		return -1
	}
	c.Store(buf, make([]byte, hal.BlockSize))
	if c.DiskRead(block, buf) < 0 {
		c.Print("disktest: read failed\n")
		return -1
	}
	got, err := c.Load(buf, hal.BlockSize)
	if err != nil || !bytes.Equal(got, want) {
		c.Print("disktest: data mismatch\n")
		return -1
	}
	c.Print("disktest passed\n")
	return 0
}

// threads starts three threads that each print their letter and exit with
// their tid.
func threads(c *syscall.Context) int {
	var tids []int
	for _, letter := range "xyz" {
		tid := c.ThreadCreate(func(c *syscall.Context, arg uint64) int {
			for j := 0; j < 10; j++ {
				c.Print(string(rune(arg)))
				c.Yield()
			}
			return c.GetTid()
		}, uint64(letter))
		tids = append(tids, tid)
	}
	for _, tid := range tids {
		if code := c.Join(tid); code != tid {
			c.Print(fmt.Sprintf("\nthreads: tid %d exited with %d\n", tid, code))
			return -1
		}
	}
	c.Print("\nthreads passed\n")
	return 0
}

const barrierThreads = 3

// barrier is a reusable rendezvous kept in user memory and guarded by a
// user mutex and condvar.
type barrier struct {
	mutex   int
	condvar int
	count   mm.VirtAddr
}

func newBarrier(c *syscall.Context) barrier {
	b := barrier{mutex: c.MutexCreate(true), condvar: c.CondvarCreate(), count: c.Alloca(8)}
	c.StoreUint64(b.count, 0)
	return b
}

func (b barrier) block(c *syscall.Context) {
	c.MutexLock(b.mutex)
	n, _ := c.LoadUint64(b.count)
	n++
	c.StoreUint64(b.count, n)
	if n == barrierThreads {
		c.CondvarSignal(b.condvar)
	} else {
		c.CondvarWait(b.condvar, b.mutex)
		c.CondvarSignal(b.condvar)
	}
	c.MutexUnlock(b.mutex)
}

func barrierCondvar(c *syscall.Context) int {
	ab, bc := newBarrier(c), newBarrier(c)
	entry := func(c *syscall.Context, _ uint64) int {
		for _, phase := range []struct {
			s    string
			wait *barrier
		}{{"a", &ab}, {"b", &bc}, {"c", nil}} {
			for i := 0; i < 30; i++ {
				c.Print(phase.s)
			}
			if phase.wait != nil {
				phase.wait.block(c)
			}
		}
		return 0
	}
	var tids []int
	for i := 0; i < barrierThreads; i++ {
		tids = append(tids, c.ThreadCreate(entry, 0))
	}
	for _, tid := range tids {
		c.Join(tid)
	}
	c.Print("\nTest barrier_condvar passed!\n")
	return 0
}
