package mm

import (
	"errors"
	"fmt"
)

var ErrEmptyImage = errors.New("mm: image has no entry point")

// Image is a loadable user program: its data segment placed at TextBase and
// the entry point installed there.
type Image struct {
	Name  string
	Data  []byte
	Entry Code
}

// FromImage builds a user address space for img. It returns the space, the
// user stack base (one guard page above the image) and the entry address.
func FromImage(a *FrameAllocator, img Image) (*MemorySet, VirtAddr, VirtAddr, error) {
	if img.Entry == nil {
		return nil, 0, 0, ErrEmptyImage
	}
	ms, err := NewBare(a)
	if err != nil {
		return nil, 0, 0, err
	}
	if err := ms.mapTrampoline(); err != nil {
		ms.Release()
		return nil, 0, 0, err
	}
	end := TextBase + VirtAddr(max(len(img.Data), 1))
	if err := ms.Push(NewMapArea(TextBase, end, Framed, PermR|PermW|PermX|PermU), img.Data); err != nil {
		ms.Release()
		return nil, 0, 0, fmt.Errorf("load %s: %w", img.Name, err)
	}
	ms.SetCode(TextBase, img.Entry)
	ustackBase := end.Ceil().Addr() + PageSize
	return ms, ustackBase, TextBase, nil
}
