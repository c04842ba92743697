package vterm

import (
	"bytes"
	"testing"
)

func screenText(e *Emulator, y int) string {
	var b bytes.Buffer
	for x := 0; x < e.Width(); x++ {
		c := e.CellAt(x, y)
		if c.Rune == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteRune(c.Rune)
		}
	}
	return b.String()
}

func TestPrintAndCursor(t *testing.T) {
	e := New(10, 3)
	e.SetUTF8(true)

	if _, err := e.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if got := screenText(e, 0); got != "hello     " {
		t.Errorf("row 0 = %q", got)
	}
	x, y := e.Cursor()
	if x != 5 || y != 0 {
		t.Errorf("cursor = %d,%d, want 5,0", x, y)
	}
}

func TestControlBytes(t *testing.T) {
	e := New(10, 3)
	e.Write([]byte("ab\r\ncd\bX"))

	if got := screenText(e, 0); got[:2] != "ab" {
		t.Errorf("row 0 = %q", got)
	}
	if got := screenText(e, 1); got[:2] != "cX" {
		t.Errorf("row 1 = %q", got)
	}
}

func TestCursorPositioning(t *testing.T) {
	e := New(10, 5)
	e.Write([]byte("\x1b[3;4Hx"))
	if c := e.CellAt(3, 2); c.Rune != 'x' {
		t.Errorf("cell(3,2) = %q, want x", c.Rune)
	}

	// Out-of-range positions clamp.
	e.Write([]byte("\x1b[99;99H"))
	x, y := e.Cursor()
	if x != 9 || y != 4 {
		t.Errorf("cursor = %d,%d, want 9,4", x, y)
	}
}

func TestSgrStyling(t *testing.T) {
	e := New(20, 2)
	e.Write([]byte("\x1b[1;4;31mA\x1b[0mB\x1b[38;5;200mC\x1b[48;2;10;20;30mD"))

	a := e.CellAt(0, 0)
	if !a.Bold || !a.Underline || a.FG.Mode != ColorIndexed || a.FG.Index != 1 {
		t.Errorf("A = %+v, want bold underline fg idx 1", a)
	}
	b := e.CellAt(1, 0)
	if b.Bold || b.FG.Mode != ColorDefault {
		t.Errorf("B = %+v, want plain default", b)
	}
	c := e.CellAt(2, 0)
	if c.FG.Mode != ColorIndexed || c.FG.Index != 200 {
		t.Errorf("C fg = %+v, want idx 200", c.FG)
	}
	d := e.CellAt(3, 0)
	if d.BG.Mode != ColorRGB || d.BG.R != 10 || d.BG.G != 20 || d.BG.B != 30 {
		t.Errorf("D bg = %+v, want rgb 10/20/30", d.BG)
	}
}

func TestWideCell(t *testing.T) {
	e := New(10, 2)
	e.Write([]byte("中a"))

	c := e.CellAt(0, 0)
	if c.Rune != '中' || c.Width != 2 {
		t.Errorf("wide cell = %+v", c)
	}
	if shadow := e.CellAt(1, 0); shadow.Width != 0 {
		t.Errorf("shadow cell width = %d, want 0", shadow.Width)
	}
	if c := e.CellAt(2, 0); c.Rune != 'a' {
		t.Errorf("cell(2,0) = %q, want a", c.Rune)
	}
}

func TestSoftWrapContinuation(t *testing.T) {
	e := New(4, 3)
	e.Write([]byte("abcdef"))

	if got := screenText(e, 0); got != "abcd" {
		t.Errorf("row 0 = %q", got)
	}
	if got := screenText(e, 1); got[:2] != "ef" {
		t.Errorf("row 1 = %q", got)
	}
	if !e.RowContinuation(1) {
		t.Error("row 1 should be a continuation")
	}
}

func TestScrollLineCallback(t *testing.T) {
	e := New(5, 2)
	var scrolled []string
	e.SetCallbacks(Callbacks{
		ScrollLine: func(cells []Cell, cont bool) {
			var b bytes.Buffer
			for _, c := range cells {
				if c.Rune == 0 {
					b.WriteByte(' ')
				} else {
					b.WriteRune(c.Rune)
				}
			}
			scrolled = append(scrolled, b.String())
		},
	})

	e.Write([]byte("one\r\ntwo\r\nthree\r\nfour"))

	// Two rows scrolled off a 2-row screen.
	want := []string{"one  ", "two  "}
	if len(scrolled) != len(want) {
		t.Fatalf("scrolled = %v, want %v", scrolled, want)
	}
	for i := range want {
		if scrolled[i] != want[i] {
			t.Errorf("scrolled[%d] = %q, want %q", i, scrolled[i], want[i])
		}
	}
	if got := screenText(e, 0); got != "three" {
		t.Errorf("row 0 = %q, want three", got)
	}
}

func TestDeviceStatusReport(t *testing.T) {
	e := New(10, 5)
	var out bytes.Buffer
	e.SetCallbacks(Callbacks{Output: func(b []byte) { out.Write(b) }})

	e.Write([]byte("\x1b[2;3H\x1b[6n"))
	if got := out.String(); got != "\x1b[2;3R" {
		t.Errorf("DSR reply = %q, want ESC[2;3R", got)
	}
}

func TestAltScreen(t *testing.T) {
	e := New(10, 3)
	e.EnableAltScreen(true)
	e.Write([]byte("main"))

	e.Write([]byte("\x1b[?1049h"))
	if !e.IsAltScreen() {
		t.Fatal("alt screen should be active")
	}
	e.Write([]byte("alt!"))
	if got := screenText(e, 0); got[:4] != "alt!" {
		t.Errorf("alt row 0 = %q", got)
	}

	e.Write([]byte("\x1b[?1049l"))
	if e.IsAltScreen() {
		t.Fatal("alt screen should be off")
	}
	if got := screenText(e, 0); got[:4] != "main" {
		t.Errorf("main row 0 = %q", got)
	}
}

func TestAltScreenDisabled(t *testing.T) {
	e := New(10, 3)
	e.Write([]byte("\x1b[?1049h"))
	if e.IsAltScreen() {
		t.Error("alt screen must stay off when not enabled")
	}
}

func TestEraseLine(t *testing.T) {
	e := New(6, 2)
	e.Write([]byte("abcdef\x1b[1;3H\x1b[K"))
	if got := screenText(e, 0); got != "ab    " {
		t.Errorf("row 0 = %q, want %q", got, "ab    ")
	}
}

func TestResizeClampsCursor(t *testing.T) {
	e := New(10, 5)
	e.Write([]byte("\x1b[5;10H"))
	e.Resize(4, 2)
	x, y := e.Cursor()
	if x > 3 || y > 1 {
		t.Errorf("cursor = %d,%d out of 4x2", x, y)
	}
	if e.Width() != 4 || e.Height() != 2 {
		t.Errorf("size = %dx%d", e.Width(), e.Height())
	}
}
