// Package apps is the set of user programs the kernel can load by name.
package apps

import (
	"errors"
	"fmt"
	"sort"

	"hartos/mm"
	"hartos/syscall"
)

var ErrNoProgram = errors.New("apps: no such program")

// InitProc is the name of the first user process.
const InitProc = "initproc"

// Registry maps program names to their entry points.
type Registry struct {
	progs    map[string]syscall.Program
	initArgv []string
}

// New returns the built-in programs. initproc forks initArgv[0] with
// initArgv as its argv, if given, and reaps children until none remain.
func New(initArgv []string) *Registry {
	r := &Registry{progs: make(map[string]syscall.Program), initArgv: initArgv}
	r.Register(InitProc, r.initproc)
	r.Register("gui_simple", guiSimple)
	r.Register("barrier_condvar", barrierCondvar)
	r.Register("echo", echo)
	r.Register("forktest", forktest)
	r.Register("disktest", disktest)
	r.Register("threads", threads)
	return r
}

func (r *Registry) Register(name string, p syscall.Program) { r.progs[name] = p }

// Names lists the registered programs in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.progs))
	for n := range r.progs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the entry point of name.
func (r *Registry) Lookup(name string) (syscall.Program, error) {
	p, ok := r.progs[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNoProgram)
	}
	return p, nil
}

// Load builds the image of name. It satisfies syscall.Loader.
func (r *Registry) Load(name string) (mm.Image, bool) {
	p, err := r.Lookup(name)
	if err != nil {
		return mm.Image{}, false
	}
	return mm.Image{Name: name, Data: []byte(name), Entry: p}, true
}

func (r *Registry) initproc(c *syscall.Context) int {
	if argv := r.initArgv; len(argv) > 0 {
		pid := c.Fork(func(c *syscall.Context) int {
			if c.Exec(argv[0], argv) < 0 {
				c.Print("initproc: cannot exec " + argv[0] + "\n")
				return -1
			}
			return 0
		})
		if pid < 0 {
			c.Print("initproc: fork failed\n")
			return -1
		}
	}
	for {
		pid, code := c.Wait(-1)
		if pid == -1 {
			return 0
		}
		c.Print(fmt.Sprintf("[initproc] released a zombie process, pid=%d, exit_code=%d\n", pid, code))
	}
}
