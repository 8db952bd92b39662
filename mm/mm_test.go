package mm

import (
	"bytes"
	"testing"

	"hartos/kernel"
	"hartos/sync"
)

type noIntr struct{}

func (noIntr) Disable() bool { return false }
func (noIntr) Restore(bool)  {}

func newAlloc(t *testing.T, frames int) *FrameAllocator {
	t.Helper()
	m := sync.NewMasking(noIntr{})
	return NewFrameAllocator(m, NewPhysMem(), KernelEnd, KernelEnd+PhysAddr(frames*PageSize))
}

func TestFrameAllocatorRecycles(t *testing.T) {
	a := newAlloc(t, 2)
	f1, err := a.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	f1.Bytes()[0] = 0xaa
	if _, err := a.Alloc(); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := a.Alloc(); err != ErrOutOfFrames {
		t.Fatalf("Alloc()=%v, want %v", err, ErrOutOfFrames)
	}
	f1.Free()
	f3, err := a.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if f3.PPN != f1.PPN {
		t.Fatalf("ppn=%#x, want recycled %#x", f3.PPN, f1.PPN)
	}
	if f3.Bytes()[0] != 0 {
		t.Fatalf("recycled frame not zeroed")
	}
}

func TestFrameDoubleFreeFaults(t *testing.T) {
	a := newAlloc(t, 1)
	f, _ := a.Alloc()
	f.Free()
	defer func() {
		if fl := kernel.AsFault(recover()); fl == nil || fl.Code != kernel.FaultDoubleRelease {
			t.Fatalf("fault=%v, want double release", fl)
		}
	}()
	f.Free()
}

func TestFromImageLayout(t *testing.T) {
	a := newAlloc(t, 64)
	data := bytes.Repeat([]byte{7}, PageSize+10)
	ms, ustack, entry, err := FromImage(a, Image{Name: "t", Data: data, Entry: "main"})
	if err != nil {
		t.Fatalf("FromImage: %v", err)
	}
	if entry != TextBase {
		t.Fatalf("entry=%#x, want %#x", entry, TextBase)
	}
	if want := TextBase + 3*PageSize; ustack != want {
		t.Fatalf("ustack=%#x, want %#x", ustack, want)
	}
	if c, ok := ms.CodeAt(entry); !ok || c != "main" {
		t.Fatalf("CodeAt(entry)=%v,%v, want main", c, ok)
	}
	got, err := ms.ReadBytes(TextBase+PageSize-2, 4)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(got, []byte{7, 7, 7, 7}) {
		t.Fatalf("ReadBytes=%v, want [7 7 7 7]", got)
	}
	if _, ok := ms.Translate(Trampoline.Floor()); !ok {
		t.Fatalf("trampoline not mapped")
	}
}

func TestCloneIsolatesFramedPages(t *testing.T) {
	a := newAlloc(t, 64)
	ms, _, _, err := FromImage(a, Image{Name: "t", Data: []byte("parent"), Entry: 1})
	if err != nil {
		t.Fatalf("FromImage: %v", err)
	}
	child, err := ms.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if err := child.WriteBytes(TextBase, []byte("child!")); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	p, _ := ms.ReadBytes(TextBase, 6)
	c, _ := child.ReadBytes(TextBase, 6)
	if string(p) != "parent" || string(c) != "child!" {
		t.Fatalf("parent=%q child=%q, want parent/child!", p, c)
	}
	if _, ok := child.CodeAt(TextBase); !ok {
		t.Fatalf("code table not cloned")
	}
	if child.Token() == ms.Token() {
		t.Fatalf("clone shares the page table root")
	}
}

func TestPushNoAllocAliasesDevice(t *testing.T) {
	a := newAlloc(t, 16)
	fb := make([]byte, 2*PageSize)
	r := a.Mem().MapDevice(0x9000_0000, fb)
	if r.Len() != 2 {
		t.Fatalf("frames=%d, want 2", r.Len())
	}
	ms, _, _, err := FromImage(a, Image{Name: "t", Entry: 1})
	if err != nil {
		t.Fatalf("FromImage: %v", err)
	}
	live := a.Allocated()
	const va VirtAddr = 0x1000_0000
	if err := ms.PushNoAlloc(NewMapArea(va, va+VirtAddr(len(fb)), Framed, PermR|PermW|PermU), r); err != nil {
		t.Fatalf("PushNoAlloc: %v", err)
	}
	if a.Allocated() != live {
		t.Fatalf("allocated=%d, want %d", a.Allocated(), live)
	}
	if err := ms.StoreByte(va+PageSize+1, 0x5a); err != nil {
		t.Fatalf("StoreByte: %v", err)
	}
	if fb[PageSize+1] != 0x5a {
		t.Fatalf("device buffer not written through")
	}
	if err := ms.PushNoAlloc(NewMapArea(va, va+PageSize, Framed, PermR), r); err != ErrOverlap {
		t.Fatalf("second PushNoAlloc()=%v, want %v", err, ErrOverlap)
	}

	child, err := ms.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if err := child.StoreByte(va, 0x11); err != nil {
		t.Fatalf("StoreByte: %v", err)
	}
	if fb[0] != 0x11 {
		t.Fatalf("cloned device mapping not shared")
	}
}

func TestReleaseFreesEverything(t *testing.T) {
	a := newAlloc(t, 16)
	if _, err := a.Trampoline(); err != nil {
		t.Fatalf("Trampoline: %v", err)
	}
	base := a.Allocated()
	ms, ustack, _, err := FromImage(a, Image{Name: "t", Data: []byte{1}, Entry: 1})
	if err != nil {
		t.Fatalf("FromImage: %v", err)
	}
	if err := ms.InsertFramedArea(ustack, ustack+UserStackSize, PermR|PermW|PermU); err != nil {
		t.Fatalf("InsertFramedArea: %v", err)
	}
	ms.Release()
	if a.Allocated() != base {
		t.Fatalf("allocated=%d, want %d", a.Allocated(), base)
	}
}

func TestUnmappedAccess(t *testing.T) {
	a := newAlloc(t, 8)
	ms, err := NewBare(a)
	if err != nil {
		t.Fatalf("NewBare: %v", err)
	}
	if _, err := ms.ReadBytes(0x4000, 1); err != ErrUnmapped {
		t.Fatalf("ReadBytes()=%v, want %v", err, ErrUnmapped)
	}
	if err := ms.WriteUint64(0x4000, 1); err != ErrUnmapped {
		t.Fatalf("WriteUint64()=%v, want %v", err, ErrUnmapped)
	}
}

func TestCStringAndWords(t *testing.T) {
	a := newAlloc(t, 8)
	ms, _, _, err := FromImage(a, Image{Name: "t", Entry: 1})
	if err != nil {
		t.Fatalf("FromImage: %v", err)
	}
	if err := ms.WriteBytes(TextBase, []byte("hi\x00junk")); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	s, err := ms.ReadCString(TextBase, 16)
	if err != nil || s != "hi" {
		t.Fatalf("ReadCString()=%q,%v, want hi", s, err)
	}
	if err := ms.WriteUint64(TextBase+8, 0x0102030405060708); err != nil {
		t.Fatalf("WriteUint64: %v", err)
	}
	v, _ := ms.ReadUint64(TextBase + 8)
	if v != 0x0102030405060708 {
		t.Fatalf("ReadUint64=%#x, want 0x0102030405060708", v)
	}
}
