package grid

// ReflowHistory rebuilds the scrollback ring for a new width. Rows are
// first joined into logical lines using their continuation flags and
// stripped of trailing blanks, then re-emitted at the new width with fresh
// continuation flags. Capacity is preserved; when the reflowed content is
// longer than the ring, the leading overflow is dropped. Reflow is
// best-effort: fully blank logical lines at the tail are discarded.
func (g *Grid) ReflowHistory(newWidth int) {
	if g.HistorySize == 0 || newWidth < 1 {
		return
	}
	stored := g.Stored()
	if stored == 0 {
		g.History = make([]Cell, g.HistorySize*newWidth)
		g.HistoryLineFlags = make([]uint8, g.HistorySize)
		return
	}

	// Collect logical lines in chronological order.
	var logical [][]Cell
	for k := 0; k < stored; k++ {
		slot := g.historySlot(k)
		row := g.History[slot*g.Width : (slot+1)*g.Width]
		cont := g.HistoryLineFlags[slot]&FlagContinuation != 0
		if cont && len(logical) > 0 {
			logical[len(logical)-1] = append(logical[len(logical)-1], row...)
		} else {
			line := make([]Cell, len(row))
			copy(line, row)
			logical = append(logical, line)
		}
	}

	// Trim trailing blanks from each logical line, and drop blank lines
	// at the tail entirely.
	for i := range logical {
		logical[i] = trimTrailingBlanks(logical[i])
	}
	for len(logical) > 0 && len(logical[len(logical)-1]) == 0 {
		logical = logical[:len(logical)-1]
	}

	// Re-emit at the new width.
	type flowRow struct {
		cells []Cell
		flags uint8
	}
	var rows []flowRow
	for _, line := range logical {
		if len(line) == 0 {
			rows = append(rows, flowRow{})
			continue
		}
		for off := 0; off < len(line); off += newWidth {
			end := min(off+newWidth, len(line))
			var flags uint8
			if off > 0 {
				flags = FlagContinuation
			}
			rows = append(rows, flowRow{cells: line[off:end], flags: flags})
		}
	}
	if len(rows) > g.HistorySize {
		rows = rows[len(rows)-g.HistorySize:]
	}

	history := make([]Cell, g.HistorySize*newWidth)
	flags := make([]uint8, g.HistorySize)
	for i, row := range rows {
		copy(history[i*newWidth:(i+1)*newWidth], row.cells)
		flags[i] = row.flags
	}

	g.History = history
	g.HistoryLineFlags = flags
	g.HistoryCount = len(rows)
	if g.ScrollOffset > len(rows) {
		g.ScrollOffset = len(rows)
	}
}

func trimTrailingBlanks(row []Cell) []Cell {
	end := len(row)
	for end > 0 && row[end-1].IsBlank() {
		end--
	}
	return row[:end]
}
