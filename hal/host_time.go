//go:build !tinygo

package hal

import (
	"context"
	"time"
)

// hostTime raises the hart's supervisor timer interrupt at a fixed rate.
type hostTime struct {
	hart *Hart
	hz   int
}

func newHostTime(h *Hart, hz int) *hostTime {
	return &hostTime{hart: h, hz: hz}
}

// run drives the timer until ctx is done.
func (t *hostTime) run(ctx context.Context) error {
	if t.hz <= 0 {
		<-ctx.Done()
		return nil
	}
	tk := time.NewTicker(time.Second / time.Duration(t.hz))
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
			t.hart.RaiseTimer()
		}
	}
}
