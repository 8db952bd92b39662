package drivers

import (
	"hartos/hal"
	"hartos/sync"
)

// PackEvent packs an input event as type<<48 | code<<32 | value.
func PackEvent(ev hal.InputEvent) uint64 {
	return uint64(ev.EventType)<<48 | uint64(ev.Code)<<32 | uint64(ev.Value)
}

// UnpackEvent reverses PackEvent.
func UnpackEvent(v uint64) hal.InputEvent {
	return hal.InputEvent{
		EventType: uint16(v >> 48),
		Code:      uint16(v >> 32),
		Value:     uint32(v),
	}
}

// Input is a virtio-input driver (keyboard or mouse) buffering packed events.
type Input struct {
	dev    *hal.VirtIOInput
	events *Bridge[uint64]
}

// NewInput returns a driver for dev with an empty event buffer.
func NewInput(dev *hal.VirtIOInput, m *sync.Masking, s sync.Scheduler) *Input {
	return &Input{dev: dev, events: NewBridge[uint64](m, s)}
}

// Name is the device name, "keyboard" or "mouse".
func (in *Input) Name() string { return in.dev.Name() }

// ReadEvent blocks until an event is buffered.
func (in *Input) ReadEvent() uint64 { return in.events.Read() }

// TryReadEvent pops a buffered event without blocking.
func (in *Input) TryReadEvent() (uint64, bool) { return in.events.TryRead() }

// IsEmpty reports whether no event is buffered.
func (in *Input) IsEmpty() bool { return in.events.IsEmpty() }

// HandleIRQ acknowledges the device and drains its event queue.
func (in *Input) HandleIRQ() {
	in.events.HandleIRQ(func(push func(uint64)) {
		in.dev.AckInterrupt()
		for {
			ev, ok := in.dev.PopPendingEvent()
			if !ok {
				return
			}
			push(PackEvent(ev))
		}
	})
}
