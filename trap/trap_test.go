package trap

import (
	"testing"

	"hartos/hal"
	"hartos/kernel"
)

func TestContextRoundTrip(t *testing.T) {
	page := make([]byte, 4096)
	cx := AppInitContext(0x1000, 0x8000, 7, 0x9000, HandlerAddr)
	cx.X[RegA0] = 3
	cx.Store(page)

	got := Load(page)
	if got != cx {
		t.Fatalf("Load() = %+v, want %+v", got, cx)
	}
	if got.SP() != 0x8000 || got.Sepc != 0x1000 {
		t.Fatalf("sp, sepc = %#x, %#x, want 0x8000, 0x1000", got.SP(), got.Sepc)
	}
	if sp := Load(page).SP(); sp != 0x8000 {
		t.Fatalf("Load().SP() = %#x, want 0x8000", sp)
	}
	if got.Sstatus&sstatusSPP != 0 {
		t.Fatalf("sstatus.SPP set, want user mode")
	}

	Update(page, func(cx *TrapContext) { cx.X[RegA1] = 9 })
	if got := Load(page); got.X[RegA1] != 9 || got.X[RegA0] != 3 {
		t.Fatalf("Update() a0, a1 = %d, %d, want 3, 9", got.X[RegA0], got.X[RegA1])
	}
}

func TestVectorDispatch(t *testing.T) {
	hart := hal.NewHart(0)
	var ext, timer int
	hart.SetTrapVector(NewVector(hart, kernel.NewLog(nil, kernel.LevelError), Handlers{
		External: func() { ext++ },
		Timer:    func() { timer++ },
	}))
	hart.EnableTimer()
	hart.RaiseTimer()
	hart.Enable()
	if timer != 1 || ext != 0 {
		t.Fatalf("timer, external = %d, %d, want 1, 0", timer, ext)
	}
	if hart.Pending() {
		t.Fatalf("timer still pending after the vector ran")
	}
}
