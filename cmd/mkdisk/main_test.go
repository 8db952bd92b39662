package main

import (
	"os"
	"path/filepath"
	"testing"

	"hartos/hal"
)

func TestRunPacksFilesOnBlockBoundaries(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	if err := os.WriteFile(a, make([]byte, hal.BlockSize+1), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "disk.img")

	exts, err := run(out, 16, 2, []string{a, b})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if len(exts) != 2 {
		t.Fatalf("len(exts) = %d, want 2", len(exts))
	}
	if exts[0].first != 2 || exts[0].last != 3 {
		t.Fatalf("a = %d-%d, want 2-3", exts[0].first, exts[0].last)
	}
	if exts[1].first != 4 || exts[1].last != 4 {
		t.Fatalf("b = %d-%d, want 4-4", exts[1].first, exts[1].last)
	}

	img, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(img) != 16*hal.BlockSize {
		t.Fatalf("image size = %d, want %d", len(img), 16*hal.BlockSize)
	}
	if got := string(img[4*hal.BlockSize : 4*hal.BlockSize+5]); got != "hello" {
		t.Fatalf("block 4 = %q, want %q", got, "hello")
	}
}

func TestRunRejectsOverflow(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	if err := os.WriteFile(a, make([]byte, 4*hal.BlockSize), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(filepath.Join(dir, "disk.img"), 4, 2, []string{a}); err == nil {
		t.Fatalf("run() error = nil, want overflow error")
	}
}
