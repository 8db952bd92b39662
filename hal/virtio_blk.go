package hal

import (
	"fmt"
	"sync"
)

const (
	BlockSize    = 512
	BlkQueueSize = 16
)

// BlkOp is a virtio-blk request type.
type BlkOp uint8

const (
	BlkIn BlkOp = iota
	BlkOut
)

// BlkCompletion is one used-ring entry.
type BlkCompletion struct {
	Token uint16
	Err   error
}

// VirtIOBlk models a virtio block device with a single request queue. The
// device services a request as soon as it is notified, puts the descriptor
// head on the used ring and raises its interrupt.
type VirtIOBlk struct {
	mu    sync.Mutex
	store BlockStore
	plic  *PLIC
	src   uint32

	inflight [BlkQueueSize]bool
	used     []BlkCompletion
	isr      bool
}

// NewVirtIOBlk returns a block device over store.
func NewVirtIOBlk(store BlockStore, plic *PLIC, src uint32) *VirtIOBlk {
	return &VirtIOBlk{store: store, plic: plic, src: src}
}

// Blocks reports the device capacity in blocks.
func (d *VirtIOBlk) Blocks() uint64 {
	if d.store == nil {
		return 0
	}
	return uint64(d.store.Size() / BlockSize)
}

func (d *VirtIOBlk) QueueSize() int { return BlkQueueSize }

// Submit places a request on the available ring and notifies the device. The
// returned token identifies the request's completion on the used ring.
func (d *VirtIOBlk) Submit(op BlkOp, block uint64, buf []byte) (uint16, error) {
	if len(buf) != BlockSize {
		return 0, ErrBlockSize
	}
	if d.store == nil {
		return 0, ErrNotReady
	}
	if block >= d.Blocks() {
		return 0, fmt.Errorf("block %d of %d: %w", block, d.Blocks(), ErrBlockRange)
	}

	d.mu.Lock()
	token := -1
	for i, busy := range d.inflight {
		if !busy {
			token = i
			break
		}
	}
	if token < 0 {
		d.mu.Unlock()
		return 0, ErrQueueFull
	}
	d.inflight[token] = true

	var err error
	off := int64(block) * BlockSize
	switch op {
	case BlkIn:
		_, err = d.store.ReadAt(buf, off)
	case BlkOut:
		_, err = d.store.WriteAt(buf, off)
	}
	if err != nil {
		err = fmt.Errorf("virtio-blk op %d block %d: %w", op, block, err)
	}
	d.used = append(d.used, BlkCompletion{Token: uint16(token), Err: err})
	d.isr = true
	d.mu.Unlock()

	if d.plic != nil {
		d.plic.Raise(d.src)
	}
	return uint16(token), nil
}

// PopUsed takes the oldest completion off the used ring. The descriptor
// stays allocated until Release.
func (d *VirtIOBlk) PopUsed() (BlkCompletion, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.used) == 0 {
		return BlkCompletion{}, false
	}
	c := d.used[0]
	d.used = d.used[1:]
	return c, true
}

// Release returns the descriptor behind token to the free list.
func (d *VirtIOBlk) Release(token uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(token) < len(d.inflight) {
		d.inflight[token] = false
	}
}

// AckInterrupt clears the interrupt status and reports whether it was set.
func (d *VirtIOBlk) AckInterrupt() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	was := d.isr
	d.isr = false
	return was
}

// MemStore is a BlockStore held in memory.
type MemStore struct {
	mu  sync.Mutex
	buf []byte
}

// NewMemStore returns a zeroed store of blocks*BlockSize bytes.
func NewMemStore(blocks int) *MemStore {
	return &MemStore{buf: make([]byte, blocks*BlockSize)}
}

func (m *MemStore) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.buf))
}

func (m *MemStore) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(m.buf)) {
		return 0, ErrBlockRange
	}
	return copy(p, m.buf[off:]), nil
}

func (m *MemStore) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(m.buf)) {
		return 0, ErrBlockRange
	}
	return copy(m.buf[off:], p), nil
}
