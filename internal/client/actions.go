package client

import (
	"os"
	"time"

	"golang.org/x/term"

	"github.com/LatosProject/muxkit/internal/pane"
	"github.com/LatosProject/muxkit/internal/protocol"
	"github.com/LatosProject/muxkit/internal/render"
)

// actEnableRawMode switches the controlling terminal to raw mode:
// canonical input, echo, signal generation and CR→NL translation all
// off. The original settings are restored on every exit path.
func (c *Client) actEnableRawMode(Event) {
	fd := int(c.in.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		c.logger.Error("raw mode", "err", err)
		return
	}
	c.rawRestore = func() { _ = term.Restore(fd, oldState) }
}

// actResize re-reads the terminal size, resizes every pane and its PTY,
// redraws everything, and informs the server of the new window size.
func (c *Client) actResize(Event) {
	cols, rows, err := c.termSize()
	if err != nil {
		return
	}
	c.ws = protocol.Winsize{Rows: uint16(rows), Cols: uint16(cols)}

	c.window.Relayout(cols, rows)
	for _, p := range c.window.Panes {
		_ = p.UpdateMasterSize()
	}

	render.ClearScreen(c.out)
	c.renderAll()

	// Informational: the server caches the size for new panes but never
	// pushes it to existing PTYs.
	paneWS := protocol.Winsize{Rows: uint16(rows - 1), Cols: uint16(cols)}
	_ = protocol.WriteMessage(c.conn, protocol.MsgResize, paneWS.Encode())
}

// actChildExit restores the terminal; the loop exits through the state
// change.
func (c *Client) actChildExit(Event) {
	c.exitScreen()
}

// actPtyRead feeds pending PTY output into its pane and redraws it.
func (c *Client) actPtyRead(Event) {
	ev := c.pendingPane
	if ev.p == nil {
		return
	}
	ev.p.Input(ev.data)
	render.Pane(c.out, ev.p)
	for i, p := range c.window.Panes {
		if p == ev.p && i+1 < len(c.window.Panes) {
			render.Borders(c.out, p)
		}
	}
	if c.active != nil && c.active.Grid.ScrollOffset == 0 {
		render.PlaceCursor(c.out, c.active)
	}
}

// actStdinRead runs the prefix-key state machine over the pending
// keyboard bytes (see keys.go).
func (c *Client) actStdinRead(Event) {
	c.handleStdin(c.pendingStdin)
	c.pendingStdin = nil
}

// actDetach serializes every pane's grid to the server, sends the detach
// request, and restores the terminal. The server keeps masters and
// shells alive.
func (c *Client) actDetach(Event) {
	// Snapshots are keyed by window position: pane ids can have gaps
	// after a pane death, positions never do, and the server lays its
	// pane list out in the same order.
	for k, p := range c.window.Panes {
		snap := p.Grid.Serialize(uint32(k), uint32(p.CX), uint32(p.CY))
		if err := protocol.WriteMessage(c.conn, protocol.MsgGridSave, snap); err != nil {
			c.logger.Error("send snapshot", "pane", k, "err", err)
		}
	}
	if err := protocol.WriteMessage(c.conn, protocol.MsgDetach, nil); err != nil {
		c.logger.Error("send detach", "err", err)
	}
	c.logger.Info("detached", "panes", len(c.window.Panes))
	c.exitScreen()
}

// actPaneSplit asks the server for a new pane, receives its master by FD
// passing, shrinks the existing panes to the new equal width and appends
// the new pane on the right.
func (c *Client) actPaneSplit(Event) {
	w := c.window
	if c.active == nil {
		return
	}
	cols := int(c.ws.Cols)
	height := c.active.SY
	newCount := len(w.Panes) + 1
	width := pane.PaneWidth(cols, newCount)

	// Park the link watcher: the FD transfer must not race its reads.
	c.linkSuspend.Store(true)
	c.linkMu.Lock()
	_ = c.conn.SetReadDeadline(time.Time{})

	paneWS := protocol.Winsize{Rows: uint16(height), Cols: uint16(width)}
	err := protocol.WriteMessage(c.conn, protocol.MsgResize, paneWS.Encode())
	if err == nil {
		err = protocol.WriteMessage(c.conn, protocol.MsgCommand, []byte("pane-split\x00"))
	}
	var fd int
	if err == nil {
		fd, err = protocol.RecvFD(c.conn)
	}
	c.linkMu.Unlock()
	c.linkSuspend.Store(false)
	if err != nil {
		c.logger.Error("pane split", "err", err)
		return
	}

	// Shrink the existing strip, then append the new pane.
	xoff := 0
	for _, p := range w.Panes {
		p.Resize(width, height)
		p.XOff = xoff
		xoff += width + 1
		_ = p.UpdateMasterSize()
	}
	p := w.AddPane(width, height, xoff, c.active.YOff, c.cfg.HistorySize)
	p.SetMaster(os.NewFile(uintptr(fd), "pty-master"))
	_ = p.UpdateMasterSize()
	go c.readPane(p)

	render.ClearScreen(c.out)
	c.renderAll()
}
