package vterm

import (
	"fmt"

	"github.com/charmbracelet/x/ansi"
)

func (e *Emulator) handleCsi(cmd ansi.Cmd, params ansi.Params) {
	if cmd.Prefix() == '?' {
		e.handlePrivateMode(cmd, params)
		return
	}

	p := func(i, def int) int {
		v, _, ok := params.Param(i, def)
		if !ok {
			return def
		}
		return v
	}

	switch cmd.Final() {
	case 'A': // cursor up
		e.scr.cy = max(e.scr.cy-max(p(0, 1), 1), 0)
		e.wrapNext = false
	case 'B': // cursor down
		e.scr.cy = min(e.scr.cy+max(p(0, 1), 1), e.height-1)
		e.wrapNext = false
	case 'C': // cursor forward
		e.scr.cx = min(e.scr.cx+max(p(0, 1), 1), e.width-1)
		e.wrapNext = false
	case 'D': // cursor back
		e.scr.cx = max(e.scr.cx-max(p(0, 1), 1), 0)
		e.wrapNext = false
	case 'E': // next line
		e.scr.cy = min(e.scr.cy+max(p(0, 1), 1), e.height-1)
		e.scr.cx = 0
		e.wrapNext = false
	case 'F': // previous line
		e.scr.cy = max(e.scr.cy-max(p(0, 1), 1), 0)
		e.scr.cx = 0
		e.wrapNext = false
	case 'G', '`': // cursor horizontal absolute
		e.scr.cx = clamp(p(0, 1)-1, 0, e.width-1)
		e.wrapNext = false
	case 'd': // line position absolute
		e.scr.cy = clamp(p(0, 1)-1, 0, e.height-1)
		e.wrapNext = false
	case 'H', 'f': // cursor position
		e.scr.cy = clamp(p(0, 1)-1, 0, e.height-1)
		e.scr.cx = clamp(p(1, 1)-1, 0, e.width-1)
		e.wrapNext = false
	case 'J':
		e.eraseDisplay(p(0, 0))
	case 'K':
		e.eraseLine(p(0, 0))
	case 'L': // insert lines
		e.insertLines(max(p(0, 1), 1))
	case 'M': // delete lines
		e.deleteLines(max(p(0, 1), 1))
	case '@': // insert blank characters
		e.insertCells(max(p(0, 1), 1))
	case 'P': // delete characters
		e.deleteCells(max(p(0, 1), 1))
	case 'X': // erase characters
		row := e.row(e.scr.cy)
		for i := 0; i < max(p(0, 1), 1) && e.scr.cx+i < e.width; i++ {
			row[e.scr.cx+i] = Cell{}
		}
	case 'S': // scroll up
		for i := 0; i < max(p(0, 1), 1); i++ {
			e.scrollUp(false)
		}
	case 'T': // scroll down
		for i := 0; i < max(p(0, 1), 1); i++ {
			e.reverseLineFeedAtTop()
		}
	case 's': // save cursor
		e.scr.savedX = e.scr.cx
		e.scr.savedY = e.scr.cy
	case 'u': // restore cursor
		if e.scr.savedX >= 0 {
			e.scr.cx = min(e.scr.savedX, e.width-1)
			e.scr.cy = min(e.scr.savedY, e.height-1)
		}
	case 'm':
		e.handleSgr(params)
	case 'n': // device status report
		switch p(0, 0) {
		case 5:
			e.output([]byte("\x1b[0n"))
		case 6:
			e.output(fmt.Appendf(nil, "\x1b[%d;%dR", e.scr.cy+1, e.scr.cx+1))
		}
	case 'c': // device attributes
		e.output([]byte("\x1b[?6c"))
	}
}

func (e *Emulator) handlePrivateMode(cmd ansi.Cmd, params ansi.Params) {
	set := cmd.Final() == 'h'
	if !set && cmd.Final() != 'l' {
		return
	}
	for i := 0; ; i++ {
		mode, _, ok := params.Param(i, -1)
		if !ok || mode < 0 {
			if i == 0 {
				return
			}
			break
		}
		switch mode {
		case 47, 1047:
			if set {
				e.enterAltScreen(false)
			} else {
				e.exitAltScreen(false)
			}
		case 1049:
			if set {
				e.enterAltScreen(true)
			} else {
				e.exitAltScreen(true)
			}
		}
		// Remaining private modes (cursor visibility, mouse tracking,
		// bracketed paste) are ignored.
	}
}

func (e *Emulator) handleEsc(cmd ansi.Cmd) {
	switch cmd.Final() {
	case '7': // save cursor
		e.scr.savedX = e.scr.cx
		e.scr.savedY = e.scr.cy
	case '8': // restore cursor
		if e.scr.savedX >= 0 {
			e.scr.cx = min(e.scr.savedX, e.width-1)
			e.scr.cy = min(e.scr.savedY, e.height-1)
		}
	case 'D': // index
		e.lineFeed(false)
	case 'E': // next line
		e.scr.cx = 0
		e.lineFeed(false)
	case 'M': // reverse index
		e.reverseLineFeed()
	case 'c': // full reset
		e.reset()
	}
}

func (e *Emulator) handleOsc(cmd int, data []byte) {
	// Titles and clipboard sequences are not modeled.
	_ = cmd
	_ = data
}

func (e *Emulator) handleSgr(params ansi.Params) {
	if len(params) == 0 {
		e.pen = Cell{Width: 1}
		return
	}
	for i := 0; i < len(params); i++ {
		v, _, ok := params.Param(i, 0)
		if !ok {
			break
		}
		switch {
		case v == 0:
			e.pen = Cell{Width: 1}
		case v == 1:
			e.pen.Bold = true
		case v == 3:
			e.pen.Italic = true
		case v == 4:
			e.pen.Underline = true
		case v == 7:
			e.pen.Reverse = true
		case v == 22:
			e.pen.Bold = false
		case v == 23:
			e.pen.Italic = false
		case v == 24:
			e.pen.Underline = false
		case v == 27:
			e.pen.Reverse = false
		case v >= 30 && v <= 37:
			e.pen.FG = Color{Mode: ColorIndexed, Index: uint8(v - 30)}
		case v == 38:
			c, n := readExtendedColor(params, i)
			if n == 0 {
				return
			}
			e.pen.FG = c
			i += n
		case v == 39:
			e.pen.FG = Color{}
		case v >= 40 && v <= 47:
			e.pen.BG = Color{Mode: ColorIndexed, Index: uint8(v - 40)}
		case v == 48:
			c, n := readExtendedColor(params, i)
			if n == 0 {
				return
			}
			e.pen.BG = c
			i += n
		case v == 49:
			e.pen.BG = Color{}
		case v >= 90 && v <= 97:
			e.pen.FG = Color{Mode: ColorIndexed, Index: uint8(v - 90 + 8)}
		case v >= 100 && v <= 107:
			e.pen.BG = Color{Mode: ColorIndexed, Index: uint8(v - 100 + 8)}
		}
	}
}

// readExtendedColor parses the 38/48 color forms (…;5;idx and …;2;r;g;b)
// starting at the 38/48 parameter itself. It returns the color and the
// number of extra parameters consumed, 0 on a malformed sequence.
func readExtendedColor(params ansi.Params, i int) (Color, int) {
	kind, _, ok := params.Param(i+1, -1)
	if !ok {
		return Color{}, 0
	}
	switch kind {
	case 5:
		idx, _, ok := params.Param(i+2, 0)
		if !ok {
			return Color{}, 0
		}
		return Color{Mode: ColorIndexed, Index: uint8(clamp(idx, 0, 255))}, 2
	case 2:
		r, _, ok1 := params.Param(i+2, 0)
		g, _, ok2 := params.Param(i+3, 0)
		b, _, ok3 := params.Param(i+4, 0)
		if !ok1 || !ok2 || !ok3 {
			return Color{}, 0
		}
		return Color{
			Mode: ColorRGB,
			R:    uint8(clamp(r, 0, 255)),
			G:    uint8(clamp(g, 0, 255)),
			B:    uint8(clamp(b, 0, 255)),
		}, 4
	}
	return Color{}, 0
}

func (e *Emulator) eraseDisplay(mode int) {
	switch mode {
	case 0: // cursor to end
		row := e.row(e.scr.cy)
		for x := e.scr.cx; x < e.width; x++ {
			row[x] = Cell{}
		}
		for y := e.scr.cy + 1; y < e.height; y++ {
			clearRow(e.row(y))
		}
	case 1: // start to cursor
		for y := 0; y < e.scr.cy; y++ {
			clearRow(e.row(y))
		}
		row := e.row(e.scr.cy)
		for x := 0; x <= e.scr.cx && x < e.width; x++ {
			row[x] = Cell{}
		}
	case 2, 3:
		for y := 0; y < e.height; y++ {
			clearRow(e.row(y))
		}
	}
}

func (e *Emulator) eraseLine(mode int) {
	row := e.row(e.scr.cy)
	switch mode {
	case 0:
		for x := e.scr.cx; x < e.width; x++ {
			row[x] = Cell{}
		}
	case 1:
		for x := 0; x <= e.scr.cx && x < e.width; x++ {
			row[x] = Cell{}
		}
	case 2:
		clearRow(row)
	}
}

func (e *Emulator) insertLines(n int) {
	for ; n > 0; n-- {
		for y := e.height - 1; y > e.scr.cy; y-- {
			copy(e.row(y), e.row(y-1))
			e.scr.cont[y] = e.scr.cont[y-1]
		}
		clearRow(e.row(e.scr.cy))
		e.scr.cont[e.scr.cy] = false
	}
}

func (e *Emulator) deleteLines(n int) {
	for ; n > 0; n-- {
		for y := e.scr.cy; y < e.height-1; y++ {
			copy(e.row(y), e.row(y+1))
			e.scr.cont[y] = e.scr.cont[y+1]
		}
		clearRow(e.row(e.height - 1))
		e.scr.cont[e.height-1] = false
	}
}

func (e *Emulator) insertCells(n int) {
	row := e.row(e.scr.cy)
	for ; n > 0; n-- {
		copy(row[e.scr.cx+1:], row[e.scr.cx:len(row)-1])
		row[e.scr.cx] = Cell{}
	}
}

func (e *Emulator) deleteCells(n int) {
	row := e.row(e.scr.cy)
	for ; n > 0; n-- {
		copy(row[e.scr.cx:], row[e.scr.cx+1:])
		row[len(row)-1] = Cell{}
	}
}

// reverseLineFeedAtTop scrolls the screen down one row regardless of the
// cursor position.
func (e *Emulator) reverseLineFeedAtTop() {
	copy(e.scr.cells[e.width:], e.scr.cells[:len(e.scr.cells)-e.width])
	clearRow(e.row(0))
	copy(e.scr.cont[1:], e.scr.cont[:len(e.scr.cont)-1])
	e.scr.cont[0] = false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
