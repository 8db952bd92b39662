// Package fs defines the kernel file abstraction and the console files
// bound to the character device.
package fs

// File is an open file as seen through a file descriptor.
type File interface {
	Readable() bool
	Writable() bool
	// Read fills buf and returns the number of bytes read. It may block.
	Read(buf []byte) int
	// Write consumes buf and returns the number of bytes written.
	Write(buf []byte) int
}

// CharDevice is a byte-at-a-time console device.
type CharDevice interface {
	// Read blocks until a byte has been received.
	Read() byte
	// Write transmits one byte.
	Write(b byte)
}

// Stdin reads the console. Each Read returns at most one byte.
type Stdin struct {
	dev CharDevice
}

func NewStdin(dev CharDevice) *Stdin { return &Stdin{dev: dev} }

func (*Stdin) Readable() bool { return true }
func (*Stdin) Writable() bool { return false }

func (s *Stdin) Read(buf []byte) int {
	if len(buf) == 0 {
		return 0
	}
	buf[0] = s.dev.Read()
	return 1
}

func (*Stdin) Write([]byte) int { return -1 }

// Stdout writes the console.
type Stdout struct {
	dev CharDevice
}

func NewStdout(dev CharDevice) *Stdout { return &Stdout{dev: dev} }

func (*Stdout) Readable() bool { return false }
func (*Stdout) Writable() bool { return true }

func (*Stdout) Read([]byte) int { return -1 }

func (s *Stdout) Write(buf []byte) int {
	for _, b := range buf {
		s.dev.Write(b)
	}
	return len(buf)
}
