// Package app boots the kernel on a HAL: devices, the task layer, the trap
// vector, the syscall layer and initproc.
package app

import (
	"context"
	"fmt"
	"image/color"

	"hartos/apps"
	"hartos/board"
	"hartos/fs"
	"hartos/hal"
	"hartos/internal/buildinfo"
	"hartos/kernel"
	"hartos/syscall"
	"hartos/task"
	"hartos/trap"

	"tinygo.org/x/tinyfont"
)

type Config struct {
	// Init is the command initproc forks and execs. Empty runs initproc
	// alone.
	Init []string
	// LogLevel zero disables the kernel log.
	LogLevel kernel.Level
	// Banner draws the boot banner on the GPU.
	Banner bool
}

// System is a booted machine. It satisfies hal.App.
type System struct {
	h    hal.HAL
	k    *task.Kernel
	dev  *board.Devices
	sys  *syscall.System
	apps *apps.Registry
	log  *kernel.Log
}

var _ hal.App = (*System)(nil)

// Boot brings the kernel up on h and creates initproc. Nothing runs until
// Run is called.
func Boot(h hal.HAL, cfg Config) (*System, error) {
	kernel.ResetPanicState()
	log := kernel.NewLog(h.Logger(), cfg.LogLevel)
	hart := h.Hart()

	k, err := task.NewKernel(task.Config{Hart: hart, Log: log})
	if err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	dev := board.NewDevices(h, k.Masking(), k, log)
	dev.Init(hart.ID())
	k.SetStdio(fs.NewStdin(dev.UART), fs.NewStdout(dev.UART))

	hart.SetTrapVector(trap.NewVector(hart, log, trap.Handlers{
		External: dev.IrqHandler,
		Timer:    k.RequestResched,
	}))
	hart.EnableExternal()
	hart.EnableTimer()
	installPanicHandler(h, dev.GPU)

	reg := apps.New(cfg.Init)
	sys := syscall.New(k, dev, reg.Load)
	p, err := sys.Spawn(apps.InitProc)
	if err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	k.SetInitProc(p)

	s := &System{h: h, k: k, dev: dev, sys: sys, apps: reg, log: log}
	if cfg.Banner {
		s.drawBanner()
	}
	log.Infof("hartos %s: %d blocks of disk, programs %v", buildinfo.Short(), dev.Block.Blocks(), reg.Names())
	return s, nil
}

func (s *System) Kernel() *task.Kernel    { return s.k }
func (s *System) Devices() *board.Devices { return s.dev }

// Run executes the hart until initproc exits, a fault halts it or ctx is
// done. It reports initproc's exit code as an error when non-zero.
func (s *System) Run(ctx context.Context) error {
	if err := s.k.Run(ctx); err != nil {
		return err
	}
	if code, ok := s.k.ExitCode(); ok && code != 0 {
		return fmt.Errorf("initproc exited with code %d", code)
	}
	return nil
}

// Step is called once per host frame.
func (s *System) Step() error { return nil }

func (s *System) drawBanner() {
	d := s.dev.GPU.Display()
	d.Clear(color.RGBA{R: 16, G: 24, B: 48, A: 255})
	fg := color.RGBA{R: 200, G: 220, B: 255, A: 255}
	tinyfont.WriteLine(d, &tinyfont.TomThumb, 8, 12, "hartos "+buildinfo.Short(), fg)
	tinyfont.WriteLine(d, &tinyfont.TomThumb, 8, 20, "riscv64 single hart", fg)
	if err := d.Display(); err != nil {
		s.log.Warnf("boot: banner: %v", err)
	}
}
