package drivers

import (
	"hartos/hal"
	"hartos/kernel"
	"hartos/sync"
)

type blockState struct {
	// done holds completions not yet collected by their requester.
	done map[uint16]error
}

// Block is the virtio block driver. A reader submits a request and sleeps
// on the condvar of its descriptor token until the interrupt handler has
// moved the token's completion off the used ring.
type Block struct {
	dev   *hal.VirtIOBlk
	sched sync.Scheduler
	inner *sync.Cell[blockState]
	conds [hal.BlkQueueSize]*sync.Condvar
}

func NewBlock(dev *hal.VirtIOBlk, m *sync.Masking, s sync.Scheduler) *Block {
	b := &Block{
		dev:   dev,
		sched: s,
		inner: sync.NewCell(m, blockState{done: make(map[uint16]error)}),
	}
	for i := range b.conds {
		b.conds[i] = sync.NewCondvar(m, s)
	}
	return b
}

// Blocks reports the disk capacity in blocks.
func (b *Block) Blocks() uint64 { return b.dev.Blocks() }

// ReadBlock reads block id into buf. Outside a thread it polls the used ring.
func (b *Block) ReadBlock(id uint64, buf []byte) {
	g := b.inner.Access()
	token, err := b.dev.Submit(hal.BlkIn, id, buf)
	if err != nil {
		g.Release()
		kernel.RaiseErr(kernel.FaultDevice, "virtio-blk", err, "read block %d", id)
	}
	if b.sched.Current() == nil {
		others := b.pollLocked(g.Get(), token)
		err := b.take(g.Get(), token)
		g.Release()
		b.signal(others)
		check(err, "read", id)
		return
	}
	for {
		st := g.Get()
		if _, ok := st.done[token]; ok {
			err := b.take(st, token)
			g.Release()
			check(err, "read", id)
			return
		}
		wait := b.conds[token].WaitNoSched()
		g.Release()
		b.sched.Schedule(wait)
		g = b.inner.Access()
	}
}

// WriteBlock writes buf to block id, polling for the completion with the
// device held.
func (b *Block) WriteBlock(id uint64, buf []byte) {
	g := b.inner.Access()
	token, err := b.dev.Submit(hal.BlkOut, id, buf)
	if err != nil {
		g.Release()
		kernel.RaiseErr(kernel.FaultDevice, "virtio-blk", err, "write block %d", id)
	}
	others := b.pollLocked(g.Get(), token)
	err = b.take(g.Get(), token)
	g.Release()
	b.signal(others)
	check(err, "write", id)
}

// pollLocked moves completions off the used ring until token's has arrived
// and returns the other tokens it collected.
func (b *Block) pollLocked(st *blockState, token uint16) []uint16 {
	var others []uint16
	for {
		if _, ok := st.done[token]; ok {
			return others
		}
		c, ok := b.dev.PopUsed()
		if !ok {
			continue
		}
		st.done[c.Token] = c.Err
		if c.Token != token {
			others = append(others, c.Token)
		}
	}
}

// HandleIRQ acknowledges the device and wakes the requester of every
// completion on the used ring.
func (b *Block) HandleIRQ() {
	var tokens []uint16
	b.inner.Session(func(st *blockState) {
		b.dev.AckInterrupt()
		for {
			c, ok := b.dev.PopUsed()
			if !ok {
				return
			}
			st.done[c.Token] = c.Err
			tokens = append(tokens, c.Token)
		}
	})
	b.signal(tokens)
}

func (b *Block) signal(tokens []uint16) {
	for _, t := range tokens {
		b.conds[t].Signal()
	}
}

// take collects token's completion and frees its descriptor. The token
// cannot be handed out again while its completion is still uncollected.
func (b *Block) take(st *blockState, token uint16) error {
	err := st.done[token]
	delete(st.done, token)
	b.dev.Release(token)
	return err
}

func check(err error, op string, id uint64) {
	if err != nil {
		kernel.RaiseErr(kernel.FaultDevice, "virtio-blk", err, "%s block %d", op, id)
	}
}
