//go:build !tinygo

// Command mkdisk writes a raw block-device image for the host disk. Input
// files are packed from -start, each padded to a whole block, and their
// block ranges are printed.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"hartos/hal"
)

const (
	defaultDiskPath   = "disk.img"
	defaultDiskBlocks = 8192
)

type extent struct {
	path        string
	first, last uint64
}

func main() {
	var outPath string
	var blocks, start uint64
	flag.StringVar(&outPath, "out", defaultDiskPath, "Output disk image path.")
	flag.Uint64Var(&blocks, "blocks", defaultDiskBlocks, "Disk size in blocks.")
	flag.Uint64Var(&start, "start", 2, "First block to pack files into.")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "error: -out is required")
		os.Exit(2)
	}

	exts, err := run(outPath, blocks, start, flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	for _, e := range exts {
		fmt.Printf("%s\tblocks %d-%d\n", e.path, e.first, e.last)
	}
}

func run(outPath string, blocks, start uint64, files []string) ([]extent, error) {
	if blocks == 0 {
		return nil, errors.New("disk: zero blocks")
	}
	f, err := os.OpenFile(outPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open disk image %q: %w", outPath, err)
	}
	defer func() { _ = f.Close() }()

	if err := f.Truncate(int64(blocks) * hal.BlockSize); err != nil {
		return nil, fmt.Errorf("truncate disk image %q to %d blocks: %w", outPath, blocks, err)
	}

	var exts []extent
	next := start
	for _, path := range files {
		n, err := pack(f, path, next, blocks)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		exts = append(exts, extent{path: path, first: next, last: next + n - 1})
		next += n
	}
	return exts, f.Sync()
}

// pack copies path to the image at block first and returns the blocks used.
func pack(w io.WriterAt, path string, first, blocks uint64) (uint64, error) {
	in, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %q: %w", path, err)
	}
	defer func() { _ = in.Close() }()

	buf := make([]byte, hal.BlockSize)
	var n uint64
	for {
		clear(buf)
		read, err := io.ReadFull(in, buf)
		if read > 0 {
			if first+n >= blocks {
				return 0, fmt.Errorf("%q does not fit in %d blocks", path, blocks)
			}
			if _, werr := w.WriteAt(buf, int64(first+n)*hal.BlockSize); werr != nil {
				return 0, fmt.Errorf("write %q: %w", path, werr)
			}
			n++
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return n, nil
		}
		return 0, fmt.Errorf("read %q: %w", path, err)
	}
}
