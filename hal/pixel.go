package hal

// bgraToRGBA converts B8G8R8A8 pixels to R8G8B8A8, forcing opaque alpha.
func bgraToRGBA(dst, src []byte) {
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}
	for i := 0; i+3 < n; i += 4 {
		dst[i+0] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i+0]
		dst[i+3] = 0xFF
	}
}

// PutBGRA stores one pixel into a B8G8R8A8 buffer.
func PutBGRA(buf []byte, off int, r, g, b uint8) {
	if off < 0 || off+3 >= len(buf) {
		return
	}
	buf[off+0] = b
	buf[off+1] = g
	buf[off+2] = r
	buf[off+3] = 0xFF
}
