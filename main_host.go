//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"hartos/app"
	"hartos/hal"
	"hartos/internal/buildinfo"
	"hartos/kernel"

	"github.com/google/shlex"
)

func main() {
	var cfg hal.HeadlessConfig
	var host hal.HostConfig
	var initCmd, logLevel string
	var version bool
	flag.BoolVar(&cfg.Enabled, "headless", false, "Run without a window.")
	flag.IntVar(&cfg.Hz, "hz", 60, "Tick rate in headless mode.")
	flag.Uint64Var(&cfg.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run until initproc exits).")
	flag.StringVar(&initCmd, "init", "", "Command initproc runs, e.g. \"echo hello world\".")
	flag.StringVar(&host.DiskPath, "disk", os.Getenv("HARTOS_DISK_PATH"), "Raw disk image (empty = in-memory disk).")
	flag.IntVar(&host.DiskBlocks, "disk-blocks", 8192, "Disk size in 512-byte blocks.")
	flag.IntVar(&host.TimerHz, "timer-hz", 100, "Supervisor timer rate (0 = no preemption).")
	flag.BoolVar(&host.Stdin, "stdin", true, "Feed host stdin into the serial port.")
	flag.StringVar(&logLevel, "log", envOr("HARTOS_LOG", "info"), "Kernel log level: off, error, warn, info, debug, trace.")
	flag.BoolVar(&version, "version", false, "Print the build and exit.")
	flag.Parse()

	if version {
		fmt.Println(buildinfo.String())
		return
	}

	argv, err := shlex.Split(initCmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: -init:", err)
		os.Exit(2)
	}

	h, err := hal.New(host)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	sys, err := app.Boot(h, app.Config{
		Init:     argv,
		LogLevel: kernel.ParseLevel(logLevel),
		Banner:   !cfg.Enabled,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	if cfg.Enabled {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := hal.RunHeadless(ctx, h, sys, cfg); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := hal.RunWindow(h, sys); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
