// Package render turns panes, borders and the status bar into ANSI output.
// Rendering is stateless re-emission: every drawing call positions the
// cursor explicitly instead of relying on where earlier output left it.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/LatosProject/muxkit/internal/grid"
	"github.com/LatosProject/muxkit/internal/pane"
)

const (
	cursorHide = "\x1b[?25l"
	cursorShow = "\x1b[?25h"
	reset      = "\x1b[0m"
)

// ClearScreen erases the display and homes the cursor.
func ClearScreen(w io.Writer) {
	_, _ = io.WriteString(w, "\x1b[2J\x1b[H")
}

// EnterAltScreen switches the controlling terminal to the alternate
// buffer; ExitAltScreen switches back.
func EnterAltScreen(w io.Writer) { _, _ = io.WriteString(w, "\x1b[?1049h") }

// ExitAltScreen leaves the alternate screen buffer.
func ExitAltScreen(w io.Writer) { _, _ = io.WriteString(w, "\x1b[?1049l") }

// PlaceCursor moves the terminal cursor to the pane's cursor position.
func PlaceCursor(w io.Writer, p *pane.Pane) {
	_, _ = fmt.Fprintf(w, "\x1b[%d;%dH", p.YOff+p.CY+1, p.XOff+p.CX+1)
}

// Pane renders a pane's visible grid. While the pane is scrolled into
// history the cursor stays hidden; otherwise it is repositioned and shown.
func Pane(w io.Writer, p *pane.Pane) {
	g := p.Grid
	_, _ = io.WriteString(w, cursorHide)
	_, _ = io.WriteString(w, reset)

	lastFg, lastBg := uint8(0), uint8(0)
	lastAttr := uint8(0)
	lastFlags := uint8(grid.FlagDefaultFG | grid.FlagDefaultBG)

	for y := 0; y < p.SY; y++ {
		_, _ = fmt.Fprintf(w, "\x1b[%d;%dH", p.YOff+y+1, p.XOff+1)
		line := g.DisplayLine(y)
		if line == nil {
			_, _ = io.WriteString(w, strings.Repeat(" ", p.SX))
			continue
		}
		for x := 0; x < p.SX && x < len(line); {
			c := &line[x]
			if c.Fg != lastFg || c.Bg != lastBg || c.Attr != lastAttr || c.Flags != lastFlags {
				_, _ = io.WriteString(w, reset)
				if c.Attr&grid.AttrBold != 0 {
					_, _ = io.WriteString(w, "\x1b[1m")
				}
				if c.Attr&grid.AttrUnderline != 0 {
					_, _ = io.WriteString(w, "\x1b[4m")
				}
				if c.Attr&grid.AttrItalic != 0 {
					_, _ = io.WriteString(w, "\x1b[3m")
				}
				if c.Attr&grid.AttrReverse != 0 {
					_, _ = io.WriteString(w, "\x1b[7m")
				}
				if c.Flags&grid.FlagDefaultFG == 0 {
					_, _ = fmt.Fprintf(w, "\x1b[38;5;%dm", c.Fg)
				}
				if c.Flags&grid.FlagDefaultBG == 0 {
					_, _ = fmt.Fprintf(w, "\x1b[48;5;%dm", c.Bg)
				}
				lastFg, lastBg, lastAttr, lastFlags = c.Fg, c.Bg, c.Attr, c.Flags
			}
			if ch := c.Rune(); ch != "" {
				_, _ = io.WriteString(w, ch)
				if c.Width > 1 {
					x += int(c.Width)
				} else {
					x++
				}
			} else {
				_, _ = io.WriteString(w, " ")
				x++
			}
		}
	}
	_, _ = io.WriteString(w, reset)

	if g.ScrollOffset > 0 {
		_, _ = io.WriteString(w, cursorHide)
	} else {
		PlaceCursor(w, p)
		_, _ = io.WriteString(w, cursorShow)
	}
}

// Borders draws the single-column vertical bar on the right edge of p,
// separating it from its neighbor.
func Borders(w io.Writer, p *pane.Pane) {
	_, _ = io.WriteString(w, cursorHide)
	for y := 0; y < p.SY; y++ {
		_, _ = fmt.Fprintf(w, "\x1b[%d;%dH\x1b[34m│\x1b[0m", p.YOff+y+1, p.XOff+p.SX+1)
	}
	PlaceCursor(w, p)
	_, _ = io.WriteString(w, cursorShow)
}

// StatusBar describes what the bottom row shows.
type StatusBar struct {
	WindowName string
	Version    string
	// HistoryMarker is inserted after the window name while the active
	// pane is scrolled into history; empty otherwise.
	HistoryMarker string
	// Foreground and Background are 256-color palette indexes.
	Foreground int
	Background int
}

// Content returns the status line text padded to cols columns: the window
// name on the left, the version right-aligned.
func (s StatusBar) Content(cols int) string {
	left := " " + s.WindowName + " " + s.HistoryMarker
	right := s.Version + " "
	pad := cols - runewidth.StringWidth(left) - runewidth.StringWidth(right)
	if pad < 0 {
		pad = 0
	}
	line := left + strings.Repeat(" ", pad) + right
	return runewidth.Truncate(line, cols, "")
}

// Render writes the status bar onto the last terminal row and, unless the
// active pane is viewing history, parks the cursor back on it.
func (s StatusBar) Render(w io.Writer, cols, rows int, active *pane.Pane) {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(fmt.Sprintf("%d", s.Foreground))).
		Background(lipgloss.Color(fmt.Sprintf("%d", s.Background)))

	_, _ = io.WriteString(w, cursorHide)
	_, _ = fmt.Fprintf(w, "\x1b[%d;1H", rows)
	_, _ = io.WriteString(w, style.Render(s.Content(cols)))
	_, _ = io.WriteString(w, "\x1b[K")
	_, _ = io.WriteString(w, reset)

	if active != nil && active.Grid.ScrollOffset == 0 {
		PlaceCursor(w, active)
		_, _ = io.WriteString(w, cursorShow)
	}
}
