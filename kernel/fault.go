// Package kernel holds the kernel-wide fault model, panic reporting and the
// leveled kernel log.
package kernel

import (
	"errors"
	"fmt"
)

// FaultCode classifies fatal faults.
type FaultCode uint8

const (
	FaultUnknown FaultCode = iota
	FaultBorrowViolation
	FaultDoubleRelease
	FaultReentrantLock
	FaultDevice
	FaultUnsupportedIRQ
	FaultMultiThreadExec
	FaultBadHandle
	FaultNoCurrent
)

func (c FaultCode) String() string {
	switch c {
	case FaultBorrowViolation:
		return "borrow violation"
	case FaultDoubleRelease:
		return "double release"
	case FaultReentrantLock:
		return "reentrant lock"
	case FaultDevice:
		return "device fault"
	case FaultUnsupportedIRQ:
		return "unsupported irq"
	case FaultMultiThreadExec:
		return "multi-threaded exec"
	case FaultBadHandle:
		return "bad handle"
	case FaultNoCurrent:
		return "no current task"
	default:
		return "unknown"
	}
}

// Fault is an unrecoverable kernel error. It is raised with Raise and is
// never returned to user space.
type Fault struct {
	Code    FaultCode
	Module  string
	Message string
	Err     error
}

func (f *Fault) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", f.Module, f.Code, f.Message)
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Fault) Unwrap() error { return f.Err }

// Is matches faults by code so errors.Is(err, &Fault{Code: c}) works.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	return ok && t.Code == f.Code
}

// Raise panics with a fault. It never returns.
func Raise(code FaultCode, module, format string, args ...any) {
	panic(&Fault{Code: code, Module: module, Message: fmt.Sprintf(format, args...)})
}

// RaiseErr panics with a fault wrapping err.
func RaiseErr(code FaultCode, module string, err error, format string, args ...any) {
	panic(&Fault{Code: code, Module: module, Message: fmt.Sprintf(format, args...), Err: err})
}

// AsFault converts a recovered panic value into a fault.
func AsFault(v any) *Fault {
	switch t := v.(type) {
	case nil:
		return nil
	case *Fault:
		return t
	case error:
		var f *Fault
		if errors.As(t, &f) {
			return f
		}
		return &Fault{Code: FaultUnknown, Module: "rt", Message: t.Error(), Err: t}
	default:
		return &Fault{Code: FaultUnknown, Module: "rt", Message: fmt.Sprint(t)}
	}
}

// IsFault reports whether err is a fault with the given code.
func IsFault(err error, code FaultCode) bool {
	var f *Fault
	return errors.As(err, &f) && f.Code == code
}
