package grid

import (
	"encoding/binary"
	"errors"
)

// ErrBadSnapshot reports a snapshot buffer that is too short for the
// geometry it declares.
var ErrBadSnapshot = errors.New("grid: malformed snapshot")

// snapshotHeader is eight 32-bit words: pane id, cx, cy, width, height,
// history size, history count, scroll offset.
const snapshotHeader = 8 * 4

// Serialize packs the grid into a detach snapshot: the header words, the
// live cells, then the stored history rows in chronological order (oldest
// first), unwrapping the ring.
func (g *Grid) Serialize(paneID, cx, cy uint32) []byte {
	stored := g.Stored()
	cellsSize := g.Width * g.Height * CellSize
	histSize := stored * g.Width * CellSize
	buf := make([]byte, snapshotHeader+cellsSize+histSize)

	words := []uint32{
		paneID, cx, cy,
		uint32(g.Width), uint32(g.Height),
		uint32(g.HistorySize), uint32(g.HistoryCount), uint32(g.ScrollOffset),
	}
	for i, w := range words {
		binary.NativeEndian.PutUint32(buf[i*4:], w)
	}

	off := snapshotHeader
	for i := range g.Cells {
		g.Cells[i].encode(buf[off:])
		off += CellSize
	}
	for k := 0; k < stored; k++ {
		row := g.HistoryLine(k)
		for i := range row {
			row[i].encode(buf[off:])
			off += CellSize
		}
	}
	return buf
}

// Deserialize is the inverse of Serialize. On success it replaces the
// grid's buffers with the snapshot's content and returns the pane id and
// cursor. HistoryCount is reset to the number of rows actually replayed,
// since the serialized history is already in chronological order.
func (g *Grid) Deserialize(buf []byte) (paneID, cx, cy uint32, err error) {
	if len(buf) < snapshotHeader {
		return 0, 0, 0, ErrBadSnapshot
	}
	var words [8]uint32
	for i := range words {
		words[i] = binary.NativeEndian.Uint32(buf[i*4:])
	}
	paneID, cx, cy = words[0], words[1], words[2]
	width := int(words[3])
	height := int(words[4])
	historySize := int(words[5])
	historyCount := int(words[6])
	scrollOffset := int(words[7])

	if width <= 0 || height <= 0 || historySize < 0 {
		return 0, 0, 0, ErrBadSnapshot
	}
	stored := historyCount
	if stored > historySize {
		stored = historySize
	}
	cellsSize := width * height * CellSize
	histSize := stored * width * CellSize
	if len(buf) < snapshotHeader+cellsSize+histSize {
		return 0, 0, 0, ErrBadSnapshot
	}

	cells := make([]Cell, width*height)
	off := snapshotHeader
	for i := range cells {
		cells[i].decode(buf[off:])
		off += CellSize
	}
	history := make([]Cell, historySize*width)
	for i := 0; i < stored*width; i++ {
		history[i].decode(buf[off:])
		off += CellSize
	}

	g.Cells = cells
	g.Width = width
	g.Height = height
	g.History = history
	g.HistorySize = historySize
	g.HistoryCount = stored
	g.ScrollOffset = scrollOffset
	g.LineFlags = make([]uint8, height)
	g.HistoryLineFlags = make([]uint8, historySize)
	return paneID, cx, cy, nil
}
