package hal

import "sync"

// Linux input event types used by virtio-input.
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvRel = 0x02
	EvAbs = 0x03
)

// InputEvent is one virtio-input event as the device places it on the
// event queue.
type InputEvent struct {
	EventType uint16
	Code      uint16
	Value     uint32
}

const inputQueueSize = 64

// VirtIOInput models a virtio-input device's event queue and interrupt
// status register.
type VirtIOInput struct {
	mu      sync.Mutex
	plic    *PLIC
	src     uint32
	name    string
	queue   []InputEvent
	isr     bool
	dropped int
}

// NewVirtIOInput returns an input device raising src on plic.
func NewVirtIOInput(name string, plic *PLIC, src uint32) *VirtIOInput {
	return &VirtIOInput{name: name, plic: plic, src: src}
}

func (d *VirtIOInput) Name() string { return d.name }

// Inject places an event on the used ring and raises the interrupt. Events
// beyond the queue size are dropped.
func (d *VirtIOInput) Inject(ev InputEvent) {
	d.mu.Lock()
	if len(d.queue) >= inputQueueSize {
		d.dropped++
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, ev)
	d.isr = true
	d.mu.Unlock()
	if d.plic != nil {
		d.plic.Raise(d.src)
	}
}

// AckInterrupt clears the interrupt status and reports whether it was set.
func (d *VirtIOInput) AckInterrupt() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	was := d.isr
	d.isr = false
	return was
}

// PopPendingEvent takes the oldest event off the used ring.
func (d *VirtIOInput) PopPendingEvent() (InputEvent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return InputEvent{}, false
	}
	ev := d.queue[0]
	d.queue = d.queue[1:]
	return ev, true
}

// Dropped reports events lost to a full queue.
func (d *VirtIOInput) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}
