// Package pane models one terminal pane: a PTY master, the embedded
// emulator that interprets its output, and the cell grid that makes the
// pane's content serializable for detach/attach. The adaptor code here is
// the only place that maps between emulator cells and grid cells.
package pane

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/LatosProject/muxkit/internal/grid"
	"github.com/LatosProject/muxkit/internal/vterm"
)

// Pane is one terminal inside a window.
type Pane struct {
	ID uint32

	// Geometry: size and offset inside the terminal.
	SX, SY     int
	XOff, YOff int

	// Cursor, relative to the pane.
	CX, CY int

	Grid   *grid.Grid
	Term   *vterm.Emulator
	Master *os.File

	window *Window
}

// New creates a pane with its grid and emulator. The emulator runs in
// UTF-8 mode with the alternate screen enabled, and its scrollback
// callback feeds the grid's history ring.
func New(w *Window, sx, sy, xoff, yoff, historySize int) *Pane {
	p := &Pane{
		SX:     sx,
		SY:     sy,
		XOff:   xoff,
		YOff:   yoff,
		Grid:   grid.New(sx, sy, historySize),
		Term:   vterm.New(sx, sy),
		window: w,
	}
	p.Term.SetUTF8(true)
	p.Term.EnableAltScreen(true)
	p.Term.SetCallbacks(vterm.Callbacks{
		ScrollLine: p.onScrollLine,
		Output:     p.onTermOutput,
	})
	return p
}

// SetMaster attaches the PTY master fd to the pane. Emulator responses
// (cursor reports and similar) are written to it from then on.
func (p *Pane) SetMaster(f *os.File) {
	p.Master = f
}

// Window returns the owning window.
func (p *Pane) Window() *Window { return p.window }

// Input feeds PTY output through the emulator and re-syncs the grid,
// cursor and line flags from it.
func (p *Pane) Input(data []byte) {
	_, _ = p.Term.Write(data)
	p.syncGridFromTerm()
}

// onScrollLine captures a row scrolled off the emulator's top into the
// grid history before any further mutation.
func (p *Pane) onScrollLine(cells []vterm.Cell, continuation bool) {
	row := make([]grid.Cell, len(cells))
	for i := range cells {
		row[i] = cellFromTerm(cells[i])
	}
	var flags uint8
	if continuation {
		flags = grid.FlagContinuation
	}
	p.Grid.PushRow(row, flags)
}

// onTermOutput forwards emulator responses to the PTY master.
func (p *Pane) onTermOutput(data []byte) {
	if p.Master != nil {
		_, _ = p.Master.Write(data)
	}
}

// syncGridFromTerm copies every live emulator cell into the grid and syncs
// the cursor and per-row continuation flags.
func (p *Pane) syncGridFromTerm() {
	for y := 0; y < p.SY && y < p.Grid.Height; y++ {
		row := p.Grid.Line(y)
		for x := 0; x < p.SX && x < p.Grid.Width; x++ {
			row[x] = cellFromTerm(p.Term.CellAt(x, y))
		}
		if p.Term.RowContinuation(y) {
			p.Grid.LineFlags[y] = grid.FlagContinuation
		} else {
			p.Grid.LineFlags[y] = 0
		}
	}
	p.CX, p.CY = p.Term.Cursor()
	p.clampCursor()
}

// cellFromTerm maps an emulator cell into the grid cell model: default
// colors become flag bits, indexed colors pass through, RGB is projected
// onto the 216-color cube.
func cellFromTerm(c vterm.Cell) grid.Cell {
	var g grid.Cell
	if c.Rune != 0 {
		g.SetRune(c.Rune)
		g.Width = uint8(c.Width)
	}
	switch c.FG.Mode {
	case vterm.ColorDefault:
		g.Flags |= grid.FlagDefaultFG
	case vterm.ColorIndexed:
		g.Fg = c.FG.Index
	case vterm.ColorRGB:
		g.Fg = rgbToCube(c.FG.R, c.FG.G, c.FG.B)
	}
	switch c.BG.Mode {
	case vterm.ColorDefault:
		g.Flags |= grid.FlagDefaultBG
	case vterm.ColorIndexed:
		g.Bg = c.BG.Index
	case vterm.ColorRGB:
		g.Bg = rgbToCube(c.BG.R, c.BG.G, c.BG.B)
	}
	if c.Bold {
		g.Attr |= grid.AttrBold
	}
	if c.Underline {
		g.Attr |= grid.AttrUnderline
	}
	if c.Italic {
		g.Attr |= grid.AttrItalic
	}
	if c.Reverse {
		g.Attr |= grid.AttrReverse
	}
	return g
}

// rgbToCube projects a 24-bit color onto the 216-color cube.
func rgbToCube(r, g, b uint8) uint8 {
	return uint8(16 + (int(r)/51)*36 + (int(g)/51)*6 + int(b)/51)
}

// SyncTermFromGrid replays the grid's live cells into the emulator as an
// ANSI program, then positions the cursor. Scrollback is not replayed:
// the grid itself holds the history. Used when an attach restores a
// snapshot into a fresh pane.
func (p *Pane) SyncTermFromGrid() {
	g := p.Grid
	var buf []byte
	buf = append(buf, "\x1b[H\x1b[2J\x1b[0m"...)

	last := grid.Cell{Flags: grid.FlagDefaultFG | grid.FlagDefaultBG}
	for y := 0; y < g.Height; y++ {
		buf = fmt.Appendf(buf, "\x1b[%d;1H", y+1)
		row := g.Line(y)
		for x := 0; x < g.Width; {
			c := row[x]
			if c.Fg != last.Fg || c.Bg != last.Bg || c.Attr != last.Attr || c.Flags != last.Flags {
				buf = append(buf, "\x1b[0m"...)
				if c.Attr&grid.AttrBold != 0 {
					buf = append(buf, "\x1b[1m"...)
				}
				if c.Attr&grid.AttrUnderline != 0 {
					buf = append(buf, "\x1b[4m"...)
				}
				if c.Attr&grid.AttrItalic != 0 {
					buf = append(buf, "\x1b[3m"...)
				}
				if c.Attr&grid.AttrReverse != 0 {
					buf = append(buf, "\x1b[7m"...)
				}
				if c.Flags&grid.FlagDefaultFG == 0 {
					buf = fmt.Appendf(buf, "\x1b[38;5;%dm", c.Fg)
				}
				if c.Flags&grid.FlagDefaultBG == 0 {
					buf = fmt.Appendf(buf, "\x1b[48;5;%dm", c.Bg)
				}
				last = c
			}
			if ch := c.Rune(); ch != "" {
				buf = append(buf, ch...)
				if c.Width > 1 {
					x += int(c.Width)
				} else {
					x++
				}
			} else {
				buf = append(buf, ' ')
				x++
			}
		}
	}
	buf = fmt.Appendf(buf, "\x1b[0m\x1b[%d;%dH", p.CY+1, p.CX+1)
	_, _ = p.Term.Write(buf)
}

// RestoreSnapshot replays a detach snapshot into the pane: the grid
// buffers are replaced, the cursor restored, and the live cells replayed
// into the emulator. When the snapshot was taken at a different size the
// grid is folded back to the pane's current geometry afterwards.
func (p *Pane) RestoreSnapshot(data []byte) error {
	_, cx, cy, err := p.Grid.Deserialize(data)
	if err != nil {
		return err
	}
	p.CX, p.CY = int(cx), int(cy)
	p.SyncTermFromGrid()
	if p.Grid.Width != p.SX || p.Grid.Height != p.SY {
		p.Grid.Resize(p.SX, p.SY)
	}
	p.clampCursor()
	return nil
}

// Resize reallocates the grid, resizes the emulator and clamps the cursor
// into the new rectangle.
func (p *Pane) Resize(sx, sy int) {
	if sx < 1 {
		sx = 1
	}
	if sy < 1 {
		sy = 1
	}
	p.Grid.Resize(sx, sy)
	p.Term.Resize(sx, sy)
	p.SX = sx
	p.SY = sy
	p.clampCursor()
}

func (p *Pane) clampCursor() {
	if p.CX >= p.SX {
		p.CX = p.SX - 1
	}
	if p.CY >= p.SY {
		p.CY = p.SY - 1
	}
	if p.CX < 0 {
		p.CX = 0
	}
	if p.CY < 0 {
		p.CY = 0
	}
}

// UpdateMasterSize tells the PTY about the pane's current size.
func (p *Pane) UpdateMasterSize() error {
	if p.Master == nil {
		return nil
	}
	ws := &unix.Winsize{Row: uint16(p.SY), Col: uint16(p.SX)}
	return unix.IoctlSetWinsize(int(p.Master.Fd()), unix.TIOCSWINSZ, ws)
}

// Close releases the pane's PTY master. The grid and emulator are left to
// the garbage collector.
func (p *Pane) Close() {
	if p.Master != nil {
		_ = p.Master.Close()
		p.Master = nil
	}
}
