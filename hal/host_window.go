//go:build !tinygo && cgo

package hal

import (
	"context"
	"errors"
	"image"

	"hartos/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
)

var errWindowClosed = errors.New("window closed")

// RunWindow opens a desktop window that presents the virtio-gpu scanout and
// feeds keyboard and mouse input into the virtio-input devices. It blocks
// until the window closes or the system halts.
func RunWindow(h HAL, app App) error {
	ht, ok := h.(*hostHAL)
	if !ok {
		return ErrNotImplemented
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eg, _, done := startHart(ctx, cancel, ht, app)

	g := &hostGame{h: ht, app: app, done: done, in: newHostInput(ht.kbd, ht.mouse)}
	ebiten.SetWindowTitle("hartos (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(ht.gpu.Width(), ht.gpu.Height())
	ebiten.SetTPS(60)
	err := ebiten.RunGame(g)
	cancel()
	werr := eg.Wait()
	if err != nil && !errors.Is(err, errWindowClosed) {
		return err
	}
	if errors.Is(werr, context.Canceled) {
		return nil
	}
	return werr
}

type hostGame struct {
	h    *hostHAL
	app  App
	in   *hostInput
	done <-chan error

	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []byte
}

func (g *hostGame) Update() error {
	select {
	case <-g.done:
		return errWindowClosed
	default:
	}
	g.in.poll()
	return g.app.Step()
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	gpu := g.h.gpu
	w, h := gpu.Width(), gpu.Height()
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, w, h))
		g.scratch = make([]byte, w*h*4)
		g.fbImg = ebiten.NewImage(w, h)
	}
	if gpu.SnapshotScanout(g.scratch) == 0 {
		return
	}
	bgraToRGBA(g.img.Pix, g.scratch)
	g.fbImg.WritePixels(g.img.Pix)
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.gpu.Width(), g.h.gpu.Height()
}
