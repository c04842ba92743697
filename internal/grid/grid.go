package grid

// Grid is a pane's live height×width cell array plus its scrollback ring.
//
// The ring is mono-directional: HistoryCount only ever grows. The physical
// slot of logical history line k (0 = oldest still stored) is
// (HistoryCount-stored+k) mod HistorySize where stored =
// min(HistoryCount, HistorySize).
type Grid struct {
	Cells  []Cell // Cells[y*Width+x]
	Width  int
	Height int

	History      []Cell // ring of HistorySize rows
	HistorySize  int
	HistoryCount int
	ScrollOffset int

	// LineFlags holds one flag byte per live row; HistoryLineFlags one per
	// ring slot. Bit 0x01 marks a soft-wrap continuation row.
	LineFlags        []uint8
	HistoryLineFlags []uint8
}

// New allocates a zeroed grid with the given live size and scrollback
// capacity in rows.
func New(width, height, historySize int) *Grid {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if historySize < 0 {
		historySize = 0
	}
	return &Grid{
		Cells:            make([]Cell, width*height),
		Width:            width,
		Height:           height,
		History:          make([]Cell, historySize*width),
		HistorySize:      historySize,
		LineFlags:        make([]uint8, height),
		HistoryLineFlags: make([]uint8, historySize),
	}
}

// Stored returns the number of history rows currently held in the ring.
func (g *Grid) Stored() int {
	if g.HistoryCount < g.HistorySize {
		return g.HistoryCount
	}
	return g.HistorySize
}

// Line returns the live row y as a subslice of Cells.
func (g *Grid) Line(y int) []Cell {
	return g.Cells[y*g.Width : (y+1)*g.Width]
}

// PushLineToHistory copies live row y into the next ring slot, carrying the
// row's continuation flag along.
func (g *Grid) PushLineToHistory(y int) {
	if g.HistorySize == 0 || y < 0 || y >= g.Height {
		return
	}
	g.pushRow(g.Line(y), g.LineFlags[y])
}

// PushRow copies an externally built row into the next ring slot. Rows
// shorter than the grid width are blank padded; longer rows are truncated.
func (g *Grid) PushRow(row []Cell, flags uint8) {
	if g.HistorySize == 0 {
		return
	}
	g.pushRow(row, flags)
}

func (g *Grid) pushRow(row []Cell, flags uint8) {
	slot := g.HistoryCount % g.HistorySize
	dst := g.History[slot*g.Width : (slot+1)*g.Width]
	n := copy(dst, row)
	for i := n; i < g.Width; i++ {
		dst[i] = Cell{}
	}
	g.HistoryLineFlags[slot] = flags
	g.HistoryCount++
}

// ScrollUp moves the view deeper into history by n rows, saturating at the
// oldest stored row.
func (g *Grid) ScrollUp(n int) {
	maxScroll := g.Stored()
	if g.ScrollOffset+n > maxScroll {
		g.ScrollOffset = maxScroll
	} else {
		g.ScrollOffset += n
	}
}

// ScrollDown moves the view back toward the live screen by n rows,
// saturating at zero.
func (g *Grid) ScrollDown(n int) {
	if n > g.ScrollOffset {
		g.ScrollOffset = 0
	} else {
		g.ScrollOffset -= n
	}
}

// historySlot maps logical history line k (0 = oldest stored) to its
// physical ring slot.
func (g *Grid) historySlot(k int) int {
	if g.HistoryCount <= g.HistorySize {
		return k
	}
	oldest := g.HistoryCount % g.HistorySize
	return (oldest + k) % g.HistorySize
}

// HistoryLine returns logical history line k (0 = oldest stored), or nil
// when out of range.
func (g *Grid) HistoryLine(k int) []Cell {
	if k < 0 || k >= g.Stored() {
		return nil
	}
	slot := g.historySlot(k)
	return g.History[slot*g.Width : (slot+1)*g.Width]
}

// DisplayLine returns the row to render at screen row y, honoring the
// current scroll offset. While scrolled, the view is a virtual sequence
// whose last Height entries are the live grid preceded by the stored
// history in chronological order. Rows scrolled past the oldest stored row
// return nil; the caller draws blanks.
func (g *Grid) DisplayLine(y int) []Cell {
	if g.ScrollOffset == 0 {
		return g.Line(y)
	}
	if g.HistoryCount == 0 || g.HistorySize == 0 {
		return nil
	}
	available := g.Stored()
	line := available - g.ScrollOffset + y
	if line < 0 {
		return nil
	}
	if line >= available {
		return g.Line(line - available)
	}
	slot := g.historySlot(line)
	return g.History[slot*g.Width : (slot+1)*g.Width]
}

// Resize reallocates the live cell array to the new size, preserving the
// top-left subrectangle that fits. A width change also reflows the
// scrollback ring to the new width.
func (g *Grid) Resize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if width != g.Width {
		g.ReflowHistory(width)
	}

	cells := make([]Cell, width*height)
	copyWidth := min(g.Width, width)
	for y := 0; y < g.Height && y < height; y++ {
		copy(cells[y*width:y*width+copyWidth], g.Cells[y*g.Width:y*g.Width+copyWidth])
	}
	flags := make([]uint8, height)
	copy(flags, g.LineFlags)

	g.Cells = cells
	g.LineFlags = flags
	g.Width = width
	g.Height = height
	if g.ScrollOffset > g.Stored() {
		g.ScrollOffset = g.Stored()
	}
}
