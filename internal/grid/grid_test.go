package grid

import (
	"fmt"
	"testing"
)

// textRow builds a row of cells from a string, blank padded to width.
func textRow(s string, width int) []Cell {
	row := make([]Cell, width)
	for i, r := range []rune(s) {
		if i >= width {
			break
		}
		row[i].SetRune(r)
		row[i].Width = 1
		row[i].Flags = FlagDefaultFG | FlagDefaultBG
	}
	for i := len([]rune(s)); i < width; i++ {
		row[i].Flags = FlagDefaultFG | FlagDefaultBG
	}
	return row
}

func rowText(row []Cell) string {
	s := ""
	for i := range row {
		ch := row[i].Rune()
		if ch == "" {
			ch = " "
		}
		s += ch
	}
	return s
}

func TestScrollBounds(t *testing.T) {
	g := New(10, 4, 8)
	for i := 0; i < 5; i++ {
		g.PushRow(textRow(fmt.Sprintf("line%d", i), 10), 0)
	}

	// Scrolling up past the stored history saturates at the oldest row.
	g.ScrollUp(g.HistoryCount + 1)
	if g.ScrollOffset != 5 {
		t.Errorf("ScrollOffset = %d, want 5", g.ScrollOffset)
	}

	// Scrolling down past zero is a no-op.
	g.ScrollDown(100)
	if g.ScrollOffset != 0 {
		t.Errorf("ScrollOffset = %d, want 0", g.ScrollOffset)
	}
	g.ScrollDown(1)
	if g.ScrollOffset != 0 {
		t.Errorf("ScrollOffset after extra down = %d, want 0", g.ScrollOffset)
	}
}

func TestScrollOffsetInvariant(t *testing.T) {
	g := New(8, 3, 4)
	for i := 0; i < 10; i++ {
		g.PushRow(textRow(fmt.Sprintf("h%d", i), 8), 0)
		g.ScrollUp(1)
		stored := g.Stored()
		if g.ScrollOffset > stored {
			t.Fatalf("after push %d: ScrollOffset %d > stored %d", i, g.ScrollOffset, stored)
		}
	}
	if g.HistoryCount != 10 {
		t.Errorf("HistoryCount = %d, want 10", g.HistoryCount)
	}
	if g.Stored() != 4 {
		t.Errorf("Stored = %d, want 4", g.Stored())
	}
}

func TestRingWrapOrder(t *testing.T) {
	g := New(6, 2, 3)
	for i := 0; i < 5; i++ {
		g.PushRow(textRow(fmt.Sprintf("r%d", i), 6), 0)
	}
	// Ring holds r2, r3, r4 with r2 the oldest.
	want := []string{"r2", "r3", "r4"}
	for k, w := range want {
		row := g.HistoryLine(k)
		if row == nil {
			t.Fatalf("HistoryLine(%d) = nil", k)
		}
		if got := rowText(row)[:2]; got != w {
			t.Errorf("HistoryLine(%d) = %q, want %q", k, got, w)
		}
	}
	if g.HistoryLine(3) != nil {
		t.Error("HistoryLine past stored should be nil")
	}
}

func TestDisplayLine(t *testing.T) {
	g := New(6, 2, 4)
	copy(g.Line(0), textRow("live0", 6))
	copy(g.Line(1), textRow("live1", 6))
	g.PushRow(textRow("old0", 6), 0)
	g.PushRow(textRow("old1", 6), 0)

	// Unscrolled: live rows.
	if got := rowText(g.DisplayLine(0))[:5]; got != "live0" {
		t.Errorf("DisplayLine(0) = %q, want live0", got)
	}

	// Scrolled by one: the newest history row appears on top and the
	// first live row below it.
	g.ScrollUp(1)
	if got := rowText(g.DisplayLine(0))[:4]; got != "old1" {
		t.Errorf("scrolled DisplayLine(0) = %q, want old1", got)
	}
	if got := rowText(g.DisplayLine(1))[:5]; got != "live0" {
		t.Errorf("scrolled DisplayLine(1) = %q, want live0", got)
	}

	// Scrolled to the top: oldest row first.
	g.ScrollUp(10)
	if got := rowText(g.DisplayLine(0))[:4]; got != "old0" {
		t.Errorf("top DisplayLine(0) = %q, want old0", got)
	}
}

func TestPushLineToHistoryCapturesRow(t *testing.T) {
	g := New(5, 2, 4)
	copy(g.Line(0), textRow("abcde", 5))
	g.LineFlags[0] = FlagContinuation
	g.PushLineToHistory(0)

	if g.HistoryCount != 1 {
		t.Fatalf("HistoryCount = %d, want 1", g.HistoryCount)
	}
	if got := rowText(g.HistoryLine(0)); got != "abcde" {
		t.Errorf("history row = %q, want abcde", got)
	}
	if g.HistoryLineFlags[0]&FlagContinuation == 0 {
		t.Error("continuation flag not carried into history")
	}
}

func TestResizePreservesTopLeft(t *testing.T) {
	g := New(6, 3, 4)
	copy(g.Line(0), textRow("abcdef", 6))
	copy(g.Line(1), textRow("ghijkl", 6))

	g.Resize(4, 2)
	if g.Width != 4 || g.Height != 2 {
		t.Fatalf("size = %dx%d, want 4x2", g.Width, g.Height)
	}
	if got := rowText(g.Line(0)); got != "abcd" {
		t.Errorf("row 0 after shrink = %q, want abcd", got)
	}
	if got := rowText(g.Line(1)); got != "ghij" {
		t.Errorf("row 1 after shrink = %q, want ghij", got)
	}

	g.Resize(8, 3)
	if got := rowText(g.Line(0))[:4]; got != "abcd" {
		t.Errorf("row 0 after grow = %q, want abcd prefix", got)
	}
}
