package kernel

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// PanicInfo contains details about a fatal kernel fault.
type PanicInfo struct {
	Pid   int
	Tid   int
	Fault *Fault
	Value any
	Stack []byte
}

var (
	panicActive atomic.Bool
	panicMu     sync.Mutex
	panicOnce   = new(sync.Once)

	panicHandler atomic.Value // func(PanicInfo)
)

// InPanicMode reports whether a fatal fault has been reported.
func InPanicMode() bool {
	return panicActive.Load()
}

// SetPanicHandler installs a process-wide panic handler.
//
// The handler is invoked at most once (on the first fault). It must not panic.
func SetPanicHandler(fn func(PanicInfo)) {
	panicHandler.Store(fn)
}

// Report records a recovered panic value and runs the panic handler the
// first time.
func Report(info PanicInfo) {
	if info.Fault == nil {
		info.Fault = AsFault(info.Value)
	}
	panicMu.Lock()
	once := panicOnce
	panicMu.Unlock()
	once.Do(func() {
		panicActive.Store(true)
		if info.Stack == nil {
			info.Stack = captureStack()
		}
		if v := panicHandler.Load(); v != nil {
			if fn, ok := v.(func(PanicInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
}

// ResetPanicState re-arms the panic handler. Boot calls it for each new
// machine so a halted machine does not silence the next.
func ResetPanicState() {
	panicMu.Lock()
	panicOnce = new(sync.Once)
	panicMu.Unlock()
	panicActive.Store(false)
}

func captureStack() []byte {
	return debug.Stack()
}
