package task

// SignalFlags is a process's pending signal set.
type SignalFlags uint32

const (
	SIGINT  SignalFlags = 1 << 2
	SIGILL  SignalFlags = 1 << 4
	SIGABRT SignalFlags = 1 << 6
	SIGFPE  SignalFlags = 1 << 8
	SIGKILL SignalFlags = 1 << 9
	SIGSEGV SignalFlags = 1 << 11
)

// SignalFromNumber maps a signal number to its flag.
func SignalFromNumber(n int) (SignalFlags, bool) {
	if n <= 0 || n >= 32 {
		return 0, false
	}
	return SignalFlags(1) << n, true
}

// CheckError returns the exit code and message of the first fatal signal.
func (s SignalFlags) CheckError() (int, string, bool) {
	switch {
	case s&SIGINT != 0:
		return -2, "Killed, SIGINT=2", true
	case s&SIGILL != 0:
		return -4, "Illegal Instruction, SIGILL=4", true
	case s&SIGABRT != 0:
		return -6, "Aborted, SIGABRT=6", true
	case s&SIGFPE != 0:
		return -8, "Erroneous Arithmetic Operation, SIGFPE=8", true
	case s&SIGKILL != 0:
		return -9, "Killed, SIGKILL=9", true
	case s&SIGSEGV != 0:
		return -11, "Segmentation Fault, SIGSEGV=11", true
	}
	return 0, "", false
}
