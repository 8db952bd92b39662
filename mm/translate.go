package mm

import "encoding/binary"

func (ms *MemorySet) page(va VirtAddr) ([]byte, bool) {
	e, ok := ms.pt.Translate(va.Floor())
	if !ok {
		return nil, false
	}
	p := ms.alloc.mem.Page(e.PPN)
	return p, p != nil
}

// PageBytes returns the frame backing the page that holds va.
func (ms *MemorySet) PageBytes(va VirtAddr) ([]byte, error) {
	p, ok := ms.page(va)
	if !ok {
		return nil, ErrUnmapped
	}
	return p, nil
}

// ReadBytes copies n bytes starting at va, crossing pages as needed.
func (ms *MemorySet) ReadBytes(va VirtAddr, n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrBadLength
	}
	out := make([]byte, 0, n)
	for len(out) < n {
		p, ok := ms.page(va)
		if !ok {
			return nil, ErrUnmapped
		}
		off := va.PageOffset()
		chunk := min(n-len(out), PageSize-off)
		out = append(out, p[off:off+chunk]...)
		va += VirtAddr(chunk)
	}
	return out, nil
}

// WriteBytes copies data to va, crossing pages as needed.
func (ms *MemorySet) WriteBytes(va VirtAddr, data []byte) error {
	for len(data) > 0 {
		p, ok := ms.page(va)
		if !ok {
			return ErrUnmapped
		}
		n := copy(p[va.PageOffset():], data)
		data = data[n:]
		va += VirtAddr(n)
	}
	return nil
}

func (ms *MemorySet) StoreByte(va VirtAddr, b byte) error {
	p, ok := ms.page(va)
	if !ok {
		return ErrUnmapped
	}
	p[va.PageOffset()] = b
	return nil
}

func (ms *MemorySet) LoadByte(va VirtAddr) (byte, error) {
	p, ok := ms.page(va)
	if !ok {
		return 0, ErrUnmapped
	}
	return p[va.PageOffset()], nil
}

// WriteUint64 stores a little-endian machine word.
func (ms *MemorySet) WriteUint64(va VirtAddr, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return ms.WriteBytes(va, b[:])
}

// ReadUint64 loads a little-endian machine word.
func (ms *MemorySet) ReadUint64(va VirtAddr) (uint64, error) {
	b, err := ms.ReadBytes(va, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadCString reads a NUL-terminated string of at most limit bytes.
func (ms *MemorySet) ReadCString(va VirtAddr, limit int) (string, error) {
	var out []byte
	for len(out) < limit {
		b, err := ms.LoadByte(va)
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		out = append(out, b)
		va++
	}
	return string(out), nil
}
