// Package vterm is the embedded terminal emulator. It consumes the raw
// byte stream a shell writes to its PTY and maintains a screen of styled
// cells that callers read back one cell at a time.
//
// The emulator is deliberately self-contained: the pane layer talks to it
// only through the capability surface (feed bytes, read cells, read the
// cursor, resize, callbacks), never through its internals.
package vterm

import (
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

// ColorMode says how a Color is encoded.
type ColorMode uint8

const (
	// ColorDefault means the terminal's default foreground/background.
	ColorDefault ColorMode = iota
	// ColorIndexed is a 256-color palette index.
	ColorIndexed
	// ColorRGB is a 24-bit direct color.
	ColorRGB
)

// Color is a cell color in one of the three encodings.
type Color struct {
	Mode    ColorMode
	Index   uint8
	R, G, B uint8
}

// Cell is one screen cell as the emulator sees it.
type Cell struct {
	// Rune is the cell's character; 0 renders as a blank.
	Rune  rune
	Width int
	FG    Color
	BG    Color

	Bold      bool
	Underline bool
	Italic    bool
	Reverse   bool
}

// Callbacks connect the emulator to its host pane.
type Callbacks struct {
	// ScrollLine is invoked once per row that scrolls off the top of the
	// main screen, before the screen shifts. continuation reports whether
	// the row was a soft-wrap continuation of the previous one.
	ScrollLine func(cells []Cell, continuation bool)
	// Output receives bytes the terminal wants to write back to the
	// application (cursor position reports and similar).
	Output func(data []byte)
}

// screen is one of the two cell buffers (main and alternate).
type screen struct {
	cells  []Cell
	cont   []bool // per-row soft-wrap continuation
	cx, cy int
	savedX int
	savedY int
}

func newScreen(w, h int) *screen {
	return &screen{
		cells:  make([]Cell, w*h),
		cont:   make([]bool, h),
		savedX: -1,
		savedY: -1,
	}
}

// Emulator is a virtual terminal fed with PTY output.
type Emulator struct {
	width  int
	height int

	screens [2]*screen
	scr     *screen
	alt     bool

	pen        Cell
	wrapNext   bool
	utf8       bool
	altEnabled bool

	cb     Callbacks
	parser *ansi.Parser
}

// New creates an emulator with the given size in cells.
func New(width, height int) *Emulator {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	e := &Emulator{
		width:  width,
		height: height,
	}
	e.screens[0] = newScreen(width, height)
	e.screens[1] = newScreen(width, height)
	e.scr = e.screens[0]
	e.pen = Cell{Width: 1}

	e.parser = ansi.NewParser()
	e.parser.SetParamsSize(32)
	e.parser.SetDataSize(4096)
	e.parser.SetHandler(ansi.Handler{
		Print:     e.handlePrint,
		Execute:   e.handleControl,
		HandleCsi: e.handleCsi,
		HandleEsc: e.handleEsc,
		HandleOsc: e.handleOsc,
	})
	return e
}

// SetCallbacks registers the host callbacks.
func (e *Emulator) SetCallbacks(cb Callbacks) { e.cb = cb }

// SetUTF8 records the UTF-8 input mode flag. The parser decodes UTF-8
// whether or not the flag is set; nothing else reads it.
func (e *Emulator) SetUTF8(on bool) { e.utf8 = on }

// EnableAltScreen allows applications to switch to the alternate screen
// buffer. Without it, alt-screen mode changes are ignored.
func (e *Emulator) EnableAltScreen(on bool) { e.altEnabled = on }

// IsAltScreen reports whether the alternate screen is active.
func (e *Emulator) IsAltScreen() bool { return e.alt }

// Width returns the emulator width in cells.
func (e *Emulator) Width() int { return e.width }

// Height returns the emulator height in cells.
func (e *Emulator) Height() int { return e.height }

// Write feeds PTY output into the emulator. It always consumes the whole
// buffer.
func (e *Emulator) Write(p []byte) (int, error) {
	for i := range p {
		e.parser.Advance(p[i])
	}
	return len(p), nil
}

// CellAt returns the cell at (col x, row y), or a zero cell out of bounds.
func (e *Emulator) CellAt(x, y int) Cell {
	if x < 0 || x >= e.width || y < 0 || y >= e.height {
		return Cell{}
	}
	return e.scr.cells[y*e.width+x]
}

// Cursor returns the cursor position as (col, row).
func (e *Emulator) Cursor() (x, y int) {
	return e.scr.cx, e.scr.cy
}

// RowContinuation reports whether row y is a soft-wrap continuation of the
// previous row.
func (e *Emulator) RowContinuation(y int) bool {
	if y < 0 || y >= e.height {
		return false
	}
	return e.scr.cont[y]
}

// Resize changes the emulator size, preserving the top-left subrectangle
// of both screens and clamping the cursor.
func (e *Emulator) Resize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if width == e.width && height == e.height {
		return
	}
	for _, s := range e.screens {
		cells := make([]Cell, width*height)
		cont := make([]bool, height)
		copyWidth := min(e.width, width)
		for y := 0; y < e.height && y < height; y++ {
			copy(cells[y*width:y*width+copyWidth], s.cells[y*e.width:y*e.width+copyWidth])
			cont[y] = s.cont[y]
		}
		s.cells = cells
		s.cont = cont
		s.cx = min(s.cx, width-1)
		s.cy = min(s.cy, height-1)
		if s.savedX >= width {
			s.savedX = width - 1
		}
		if s.savedY >= height {
			s.savedY = height - 1
		}
	}
	e.width = width
	e.height = height
	e.wrapNext = false
}

func (e *Emulator) row(y int) []Cell {
	return e.scr.cells[y*e.width : (y+1)*e.width]
}

func (e *Emulator) output(data []byte) {
	if e.cb.Output != nil {
		e.cb.Output(data)
	}
}

// handlePrint places a printable rune at the cursor, handling wide cells
// and soft wrapping.
func (e *Emulator) handlePrint(r rune) {
	w := runewidth.RuneWidth(r)
	if w == 0 {
		// Combining characters are not composed; drop them.
		return
	}

	if e.wrapNext || e.scr.cx+w > e.width {
		e.wrapNext = false
		e.scr.cx = 0
		e.lineFeed(true)
	}

	cell := e.pen
	cell.Rune = r
	cell.Width = w
	e.row(e.scr.cy)[e.scr.cx] = cell
	// A wide cell shadows the following column.
	for i := 1; i < w && e.scr.cx+i < e.width; i++ {
		e.row(e.scr.cy)[e.scr.cx+i] = Cell{Width: 0, FG: cell.FG, BG: cell.BG}
	}

	e.scr.cx += w
	if e.scr.cx >= e.width {
		e.scr.cx = e.width - 1
		e.wrapNext = true
	}
}

// handleControl handles C0 control bytes.
func (e *Emulator) handleControl(b byte) {
	switch b {
	case '\r':
		e.scr.cx = 0
		e.wrapNext = false
	case '\n', '\v', '\f':
		e.lineFeed(false)
	case '\b':
		if e.scr.cx > 0 {
			e.scr.cx--
		}
		e.wrapNext = false
	case '\t':
		e.scr.cx = min(((e.scr.cx/8)+1)*8, e.width-1)
		e.wrapNext = false
	}
}

// lineFeed moves the cursor down one row, scrolling at the bottom. A soft
// wrap marks the new row as a continuation.
func (e *Emulator) lineFeed(wrapped bool) {
	if e.scr.cy < e.height-1 {
		e.scr.cy++
		e.scr.cont[e.scr.cy] = wrapped
		return
	}
	e.scrollUp(wrapped)
}

// scrollUp pushes the top row out of the screen. On the main screen the
// departing row is reported through the ScrollLine callback first.
func (e *Emulator) scrollUp(wrapped bool) {
	if !e.alt && e.cb.ScrollLine != nil {
		row := make([]Cell, e.width)
		copy(row, e.row(0))
		e.cb.ScrollLine(row, e.scr.cont[0])
	}
	copy(e.scr.cells, e.scr.cells[e.width:])
	clearRow(e.row(e.height - 1))
	copy(e.scr.cont, e.scr.cont[1:])
	e.scr.cont[e.height-1] = wrapped
}

// reverseLineFeed moves the cursor up one row, scrolling the screen down
// at the top. Rows pushed off the bottom are lost.
func (e *Emulator) reverseLineFeed() {
	if e.scr.cy > 0 {
		e.scr.cy--
		return
	}
	copy(e.scr.cells[e.width:], e.scr.cells[:len(e.scr.cells)-e.width])
	clearRow(e.row(0))
	copy(e.scr.cont[1:], e.scr.cont[:len(e.scr.cont)-1])
	e.scr.cont[0] = false
}

func clearRow(row []Cell) {
	for i := range row {
		row[i] = Cell{}
	}
}

// reset restores the power-on state.
func (e *Emulator) reset() {
	e.screens[0] = newScreen(e.width, e.height)
	e.screens[1] = newScreen(e.width, e.height)
	e.scr = e.screens[0]
	e.alt = false
	e.pen = Cell{Width: 1}
	e.wrapNext = false
}

// enterAltScreen switches to the alternate buffer, clearing it.
func (e *Emulator) enterAltScreen(saveCursor bool) {
	if !e.altEnabled || e.alt {
		return
	}
	if saveCursor {
		e.screens[0].savedX = e.screens[0].cx
		e.screens[0].savedY = e.screens[0].cy
	}
	e.screens[1] = newScreen(e.width, e.height)
	e.scr = e.screens[1]
	e.alt = true
	e.wrapNext = false
}

// exitAltScreen switches back to the main buffer.
func (e *Emulator) exitAltScreen(restoreCursor bool) {
	if !e.alt {
		return
	}
	e.scr = e.screens[0]
	e.alt = false
	e.wrapNext = false
	if restoreCursor && e.scr.savedX >= 0 {
		e.scr.cx = min(e.scr.savedX, e.width-1)
		e.scr.cy = min(e.scr.savedY, e.height-1)
	}
}
