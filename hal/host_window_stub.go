//go:build !tinygo && !cgo

package hal

import "errors"

// RunWindow needs ebiten, which needs cgo on the host; use RunHeadless.
func RunWindow(HAL, App) error {
	return errors.New("hal: no window without cgo; rebuild with CGO_ENABLED=1 or pass -headless")
}
