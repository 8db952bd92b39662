package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"hartos/drivers"
	"hartos/hal"
	"hartos/kernel"

	"tinygo.org/x/tinyfont"
)

func installPanicHandler(h hal.HAL, gpu *drivers.GPU) {
	kernel.SetPanicHandler(func(info kernel.PanicInfo) {
		if l := h.Logger(); l != nil {
			l.WriteLineString(fmt.Sprintf("hartos panic: pid=%d tid=%d fault=%v", info.Pid, info.Tid, info.Fault))
			for _, line := range strings.Split(string(info.Stack), "\n") {
				if line == "" {
					continue
				}
				l.WriteLineString(line)
			}
		}
		if gpu == nil {
			return
		}
		drawPanicScreen(gpu.Display(), info)
		_ = h.GPU().Flush()
	})
}

func drawPanicScreen(d *drivers.Display, info kernel.PanicInfo) {
	d.Clear(color.RGBA{R: 255, G: 255, B: 255, A: 255})

	font := &tinyfont.TomThumb
	const fontHeight, fontOffset = int16(7), int16(5)
	_, outboxWidth := tinyfont.LineWidth(font, "0")
	fontWidth := int16(outboxWidth)
	if fontWidth <= 0 {
		return
	}

	lines := []string{
		"hartos panic:",
		fmt.Sprintf("pid: %d tid: %d", info.Pid, info.Tid),
		fmt.Sprintf("fault: %v", info.Fault),
	}
	if len(info.Stack) > 0 {
		lines = append(lines, "stack:")
		for _, line := range strings.Split(string(info.Stack), "\n") {
			if line == "" {
				continue
			}
			lines = append(lines, line)
		}
	} else {
		lines = append(lines, "stack: unavailable")
	}

	fg := color.RGBA{A: 255}
	maxW, maxH := d.Size()
	cols := maxW / fontWidth
	if cols <= 0 {
		cols = 1
	}
	y := int16(0)
	for _, line := range lines {
		for len(line) > 0 {
			if y+fontHeight > maxH {
				return
			}
			chunk, rest := takeRunes(line, cols)
			drawTextLine(d, font, fontWidth, fontOffset, 0, y, chunk, fg)
			y += fontHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
}

func drawTextLine(
	d *drivers.Display,
	font tinyfont.Fonter,
	fontWidth, fontOffset int16,
	x0, y0 int16,
	s string,
	fg color.RGBA,
) {
	x := x0
	for _, r := range s {
		tinyfont.DrawChar(d, font, x, y0+fontOffset, r, fg)
		x += fontWidth
	}
}

func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if int64(len(s)) <= int64(n) {
		return s, ""
	}
	var i int
	var count int16
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		if size <= 0 {
			break
		}
		i += size
		count++
	}
	if i >= len(s) {
		return s, ""
	}
	return s[:i], s[i:]
}
