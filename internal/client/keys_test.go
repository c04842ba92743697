package client

import (
	"os"
	"testing"
	"time"
)

// attachTestPane gives the client one active pane whose master is the
// write end of a pipe; the returned file is the read end.
func attachTestPane(t *testing.T, c *Client) *os.File {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = r.Close()
		_ = w.Close()
	})
	p := c.window.AddPane(20, 5, 0, 0, 50)
	p.SetMaster(w)
	c.active = p
	return r
}

func readPipe(t *testing.T, r *os.File, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	done := make(chan struct{})
	go func() {
		defer close(done)
		total := 0
		for total < n {
			m, err := r.Read(buf[total:])
			if err != nil {
				return
			}
			total += m
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out reading pipe")
	}
	return buf
}

func TestPlainKeysForwarded(t *testing.T) {
	c, _ := testClient(t)
	r := attachTestPane(t, c)

	c.handleStdin([]byte("ls\r"))
	if got := string(readPipe(t, r, 3)); got != "ls\r" {
		t.Errorf("forwarded = %q, want ls\\r", got)
	}
}

func TestPrefixUnboundKeyForwarded(t *testing.T) {
	c, _ := testClient(t)
	r := attachTestPane(t, c)

	c.handleStdin([]byte{prefixByte, 'z'})
	if got := readPipe(t, r, 2); got[0] != prefixByte || got[1] != 'z' {
		t.Errorf("forwarded = %v, want prefix+z", got)
	}
}

func TestDoublePrefixSendsLiteral(t *testing.T) {
	c, _ := testClient(t)
	r := attachTestPane(t, c)

	c.handleStdin([]byte{prefixByte, prefixByte})
	if got := readPipe(t, r, 1); got[0] != prefixByte {
		t.Errorf("forwarded = %v, want literal prefix", got)
	}
	if c.prefixSticky {
		t.Error("sticky flag must clear after the literal prefix")
	}
}

func TestPrefixDetachDispatches(t *testing.T) {
	c, _ := testClient(t)
	attachTestPane(t, c)

	c.handleStdin([]byte{prefixByte, 'd'})
	if c.state != StateExiting {
		t.Errorf("state = %d, want exiting after detach", c.state)
	}
}

func TestPrefixUppercaseDetach(t *testing.T) {
	// handle_key lowercases alphabetic input before lookup.
	c, _ := testClient(t)
	attachTestPane(t, c)

	c.handleStdin([]byte{prefixByte, 'D'})
	if c.state != StateExiting {
		t.Error("uppercase D must resolve to detach")
	}
}

func TestPrefixScrollKeys(t *testing.T) {
	c, _ := testClient(t)
	attachTestPane(t, c)
	for i := 0; i < 20; i++ {
		c.active.Input([]byte("line\r\n"))
	}

	c.handleStdin([]byte{prefixByte, '['})
	if c.active.Grid.ScrollOffset == 0 {
		t.Fatal("scroll up did not move into history")
	}
	offset := c.active.Grid.ScrollOffset

	c.handleStdin([]byte{prefixByte, ']'})
	if c.active.Grid.ScrollOffset >= offset {
		t.Error("scroll down did not move back")
	}
}

func TestHistoryModeKeyExit(t *testing.T) {
	c, _ := testClient(t)
	r := attachTestPane(t, c)
	for i := 0; i < 20; i++ {
		c.active.Input([]byte("line\r\n"))
	}
	c.active.Grid.ScrollUp(3)

	// q exits history mode and is swallowed.
	c.handleStdin([]byte{'q'})
	if c.active.Grid.ScrollOffset != 0 {
		t.Fatal("q must zero the scroll offset")
	}

	// The next plain key goes to the shell.
	c.handleStdin([]byte{'x'})
	if got := readPipe(t, r, 1); got[0] != 'x' {
		t.Errorf("forwarded = %v, want x", got)
	}
}

func TestHistoryModeForwardsNonEscapeKey(t *testing.T) {
	c, _ := testClient(t)
	r := attachTestPane(t, c)
	for i := 0; i < 20; i++ {
		c.active.Input([]byte("line\r\n"))
	}
	c.active.Grid.ScrollUp(3)

	c.handleStdin([]byte{'a'})
	if c.active.Grid.ScrollOffset != 0 {
		t.Fatal("any key must exit history mode")
	}
	if got := readPipe(t, r, 1); got[0] != 'a' {
		t.Errorf("forwarded = %v, want a", got)
	}
}

func TestNextPaneCycles(t *testing.T) {
	c, _ := testClient(t)
	attachTestPane(t, c)
	first := c.active
	second := c.window.AddPane(20, 5, 21, 0, 50)

	c.handleStdin([]byte{prefixByte, 'o'})
	if c.active != second {
		t.Error("next_pane should move to the second pane")
	}
	c.handleStdin([]byte{prefixByte, 'o'})
	if c.active != first {
		t.Error("next_pane should wrap back to the first pane")
	}
}
