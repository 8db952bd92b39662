//go:build !tinygo

package hal

import (
	"fmt"
	"os"
	"sync"
)

// hostDisk is a raw disk image file.
type hostDisk struct {
	mu   sync.Mutex
	f    *os.File
	size int64
}

func openHostDisk(path string, blocks int) (*hostDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open disk image %q: %w", path, err)
	}

	size := int64(blocks) * BlockSize
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat disk image %q: %w", path, err)
	}
	if st.Size() > 0 {
		if st.Size()%BlockSize != 0 {
			_ = f.Close()
			return nil, fmt.Errorf("disk image %q size %d: %w", path, st.Size(), ErrBlockSize)
		}
		size = st.Size()
	} else if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("truncate disk image %q to %d: %w", path, size, err)
	}
	return &hostDisk{f: f, size: size}, nil
}

func (d *hostDisk) Size() int64 { return d.size }

func (d *hostDisk) ReadAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if off < 0 || off+int64(len(p)) > d.size {
		return 0, fmt.Errorf("disk read at %d: %w", off, ErrBlockRange)
	}
	return d.f.ReadAt(p, off)
}

func (d *hostDisk) WriteAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if off < 0 || off+int64(len(p)) > d.size {
		return 0, fmt.Errorf("disk write at %d: %w", off, ErrBlockRange)
	}
	return d.f.WriteAt(p, off)
}

func (d *hostDisk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Close()
}
