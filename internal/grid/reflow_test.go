package grid

import (
	"strings"
	"testing"
)

// historyText flattens the stored history into one string per logical
// line, concatenating continuation rows and trimming trailing blanks.
func historyText(g *Grid) []string {
	var lines []string
	for k := 0; k < g.Stored(); k++ {
		slot := g.historySlot(k)
		row := g.History[slot*g.Width : (slot+1)*g.Width]
		text := strings.TrimRight(rowText(row), " ")
		if g.HistoryLineFlags[slot]&FlagContinuation != 0 && len(lines) > 0 {
			lines[len(lines)-1] += text
		} else {
			lines = append(lines, text)
		}
	}
	return lines
}

func TestReflowNarrower(t *testing.T) {
	g := New(10, 2, 8)
	g.PushRow(textRow("abcdefghij", 10), 0)
	g.PushRow(textRow("klm", 10), 0)

	g.Resize(4, g.Height)

	// Every non-blank character survives in chronological order.
	lines := historyText(g)
	want := []string{"abcdefghij", "klm"}
	if len(lines) != len(want) {
		t.Fatalf("logical lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}

	// abcdefghij wraps into three rows of width 4, klm into one.
	if g.HistoryCount != 4 {
		t.Errorf("HistoryCount = %d, want 4", g.HistoryCount)
	}
	if g.HistoryLineFlags[0]&FlagContinuation != 0 {
		t.Error("first row must not be a continuation")
	}
	if g.HistoryLineFlags[1]&FlagContinuation == 0 || g.HistoryLineFlags[2]&FlagContinuation == 0 {
		t.Error("wrapped rows must carry the continuation flag")
	}
}

func TestReflowJoinsContinuations(t *testing.T) {
	g := New(4, 2, 8)
	g.PushRow(textRow("abcd", 4), 0)
	g.PushRow(textRow("ef", 4), FlagContinuation)
	g.PushRow(textRow("next", 4), 0)

	g.Resize(8, g.Height)

	lines := historyText(g)
	want := []string{"abcdef", "next"}
	if len(lines) != 2 || lines[0] != want[0] || lines[1] != want[1] {
		t.Errorf("lines = %v, want %v", lines, want)
	}
	if g.HistoryCount != 2 {
		t.Errorf("HistoryCount = %d, want 2", g.HistoryCount)
	}
}

func TestReflowDropsLeadingOverflow(t *testing.T) {
	g := New(8, 2, 2)
	g.PushRow(textRow("11111111", 8), 0)
	g.PushRow(textRow("22222222", 8), 0)

	// At width 4 the two rows become four; only the newest two fit.
	g.Resize(4, g.Height)
	if g.HistoryCount != 2 {
		t.Fatalf("HistoryCount = %d, want 2", g.HistoryCount)
	}
	for k := 0; k < 2; k++ {
		if got := rowText(g.HistoryLine(k)); got != "2222" {
			t.Errorf("line %d = %q, want 2222", k, got)
		}
	}
}

func TestReflowDropsBlankTail(t *testing.T) {
	g := New(4, 2, 8)
	g.PushRow(textRow("text", 4), 0)
	g.PushRow(textRow("", 4), 0)
	g.PushRow(textRow("", 4), 0)

	g.Resize(5, g.Height)
	if g.HistoryCount != 1 {
		t.Errorf("HistoryCount = %d, want 1", g.HistoryCount)
	}
}
