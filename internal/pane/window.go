package pane

// Window is an ordered strip of equal-width panes separated by one-column
// borders, plus the status bar row below them.
type Window struct {
	Name       string
	Panes      []*Pane
	nextPaneID uint32
}

// NewWindow creates an empty window.
func NewWindow(name string) *Window {
	return &Window{Name: name}
}

// AddPane creates a pane at the end of the strip.
func (w *Window) AddPane(sx, sy, xoff, yoff, historySize int) *Pane {
	p := New(w, sx, sy, xoff, yoff, historySize)
	p.ID = w.nextPaneID
	w.nextPaneID++
	w.Panes = append(w.Panes, p)
	return p
}

// RemovePane drops p from the window. The caller owns closing it.
func (w *Window) RemovePane(p *Pane) {
	for i, q := range w.Panes {
		if q == p {
			w.Panes = append(w.Panes[:i], w.Panes[i+1:]...)
			return
		}
	}
}

// NextPane returns the pane after cur in list order, wrapping around.
func (w *Window) NextPane(cur *Pane) *Pane {
	if len(w.Panes) == 0 {
		return nil
	}
	for i, p := range w.Panes {
		if p == cur {
			return w.Panes[(i+1)%len(w.Panes)]
		}
	}
	return w.Panes[0]
}

// PaneWidth computes the per-pane width for n panes across cols columns,
// with one border column between neighbors. Leftover columns from the
// integer division are dropped.
func PaneWidth(cols, n int) int {
	if n < 1 {
		n = 1
	}
	width := (cols - (n - 1)) / n
	if width < 1 {
		width = 1
	}
	return width
}

// Relayout resizes every pane to the equal-width layout for a terminal of
// the given size (one row reserved for the status bar) and recomputes
// offsets. PTY sizes are not touched; the caller notifies masters.
func (w *Window) Relayout(cols, rows int) {
	n := len(w.Panes)
	if n == 0 {
		return
	}
	height := rows - 1
	if height < 1 {
		height = 1
	}
	width := PaneWidth(cols, n)
	xoff := 0
	for _, p := range w.Panes {
		p.Resize(width, height)
		p.XOff = xoff
		p.YOff = 0
		xoff += width + 1
	}
}
