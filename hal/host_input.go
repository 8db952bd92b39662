//go:build !tinygo && cgo

package hal

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Linux input codes for the keys and buttons the host forwards.
const (
	keyEsc       = 1
	keyBackspace = 14
	keyTab       = 15
	keyEnter     = 28
	keySpace     = 57
	keyUp        = 103
	keyLeft      = 105
	keyRight     = 106
	keyDown      = 108
	relX         = 0
	relY         = 1
	btnLeft      = 0x110
	btnRight     = 0x111
)

var hostKeymap = map[ebiten.Key]uint16{
	ebiten.KeyEscape:     keyEsc,
	ebiten.KeyBackspace:  keyBackspace,
	ebiten.KeyTab:        keyTab,
	ebiten.KeyEnter:      keyEnter,
	ebiten.KeySpace:      keySpace,
	ebiten.KeyArrowUp:    keyUp,
	ebiten.KeyArrowLeft:  keyLeft,
	ebiten.KeyArrowRight: keyRight,
	ebiten.KeyArrowDown:  keyDown,
	ebiten.KeyQ:          16,
	ebiten.KeyW:          17,
	ebiten.KeyE:          18,
	ebiten.KeyR:          19,
	ebiten.KeyA:          30,
	ebiten.KeyS:          31,
	ebiten.KeyD:          32,
}

// hostInput turns ebiten key and cursor state into virtio-input events.
type hostInput struct {
	kbd    *VirtIOInput
	mouse  *VirtIOInput
	lastX  int
	lastY  int
	primed bool
}

func newHostInput(kbd, mouse *VirtIOInput) *hostInput {
	return &hostInput{kbd: kbd, mouse: mouse}
}

func (in *hostInput) poll() {
	for key, code := range hostKeymap {
		if inpututil.IsKeyJustPressed(key) {
			in.key(code, 1)
		}
		if inpututil.IsKeyJustReleased(key) {
			in.key(code, 0)
		}
	}

	x, y := ebiten.CursorPosition()
	if in.primed && (x != in.lastX || y != in.lastY) {
		if dx := x - in.lastX; dx != 0 {
			in.mouse.Inject(InputEvent{EventType: EvRel, Code: relX, Value: uint32(int32(dx))})
		}
		if dy := y - in.lastY; dy != 0 {
			in.mouse.Inject(InputEvent{EventType: EvRel, Code: relY, Value: uint32(int32(dy))})
		}
		in.mouse.Inject(InputEvent{EventType: EvSyn})
	}
	in.lastX, in.lastY, in.primed = x, y, true

	in.button(ebiten.MouseButtonLeft, btnLeft)
	in.button(ebiten.MouseButtonRight, btnRight)
}

func (in *hostInput) key(code uint16, value uint32) {
	in.kbd.Inject(InputEvent{EventType: EvKey, Code: code, Value: value})
	in.kbd.Inject(InputEvent{EventType: EvSyn})
}

func (in *hostInput) button(b ebiten.MouseButton, code uint16) {
	if inpututil.IsMouseButtonJustPressed(b) {
		in.mouse.Inject(InputEvent{EventType: EvKey, Code: code, Value: 1})
		in.mouse.Inject(InputEvent{EventType: EvSyn})
	}
	if inpututil.IsMouseButtonJustReleased(b) {
		in.mouse.Inject(InputEvent{EventType: EvKey, Code: code, Value: 0})
		in.mouse.Inject(InputEvent{EventType: EvSyn})
	}
}
