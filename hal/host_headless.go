//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// App is a booted system the host runners drive.
type App interface {
	// Run executes the hart until the system halts or ctx is done.
	Run(ctx context.Context) error
	// Step runs once per host frame.
	Step() error
}

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	Hz      int
	Ticks   uint64
}

// RunHeadless runs the system without opening a window.
func RunHeadless(ctx context.Context, h HAL, app App, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx, _ := startHart(ctx, cancel, h, app)
	g.Go(func() error {
		t := time.NewTicker(d)
		defer t.Stop()

		var tick uint64
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				if err := app.Step(); err != nil {
					return err
				}
				tick++
				if cfg.Ticks > 0 && tick >= cfg.Ticks {
					cancel()
					return nil
				}
			}
		}
	})
	return g.Wait()
}

// startHart runs app and, on the host HAL, its timer in a group derived from
// ctx. done receives the result of app.Run, after which cancel is called.
func startHart(ctx context.Context, cancel context.CancelFunc, h HAL, app App) (*errgroup.Group, context.Context, <-chan error) {
	g, ctx := errgroup.WithContext(ctx)
	done := make(chan error, 1)
	g.Go(func() error {
		defer cancel()
		err := app.Run(ctx)
		done <- err
		return err
	})
	if ht, ok := h.(*hostHAL); ok {
		g.Go(func() error { return ht.t.run(ctx) })
	}
	return g, ctx, done
}
