package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/LatosProject/muxkit/internal/config"
	"github.com/LatosProject/muxkit/internal/i18n"
	"github.com/LatosProject/muxkit/internal/pane"
	"github.com/LatosProject/muxkit/internal/protocol"
	"github.com/LatosProject/muxkit/internal/render"
)

// ErrAttachMiss reports an attach target that does not exist or is not
// detached. It is a user-level miss, not a system error.
var ErrAttachMiss = errors.New("attach miss")

// ErrNested reports a refused nested session.
var ErrNested = errors.New("nested session refused")

// paneEvent carries one PTY master read result into the main loop.
type paneEvent struct {
	p    *pane.Pane
	data []byte
	eof  bool
}

// Client is the front-end context: the FSM state, the server link, the
// window with its panes, and the controlling terminal.
type Client struct {
	state State

	conn   *net.UnixConn
	window *pane.Window
	active *pane.Pane

	ws protocol.Winsize

	in  *os.File
	out io.Writer

	cfg      *config.UserConfig
	keybinds *config.Keybinds
	logger   *log.Logger
	version  string

	prefixSticky  bool
	syncInputMode bool // wired into the context but never toggled

	rawRestore func()
	screenUp   bool

	paneCh    chan paneEvent
	stdinCh   chan []byte
	serverEOF chan struct{}
	kbCh      chan *config.Keybinds

	// linkSuspend parks the server-link EOF watcher while an FD transfer
	// is in flight on the connection; linkMu serializes the actual reads.
	linkSuspend atomic.Bool
	linkMu      sync.Mutex

	pendingStdin []byte
	pendingPane  paneEvent
}

// New builds a client around an established, handshaken connection.
func New(conn *net.UnixConn, cfg *config.UserConfig, kb *config.Keybinds, logger *log.Logger, version string) *Client {
	return &Client{
		state:     StateBoot,
		conn:      conn,
		in:        os.Stdin,
		out:       os.Stdout,
		cfg:       cfg,
		keybinds:  kb,
		logger:    logger,
		version:   version,
		paneCh:    make(chan paneEvent, 16),
		stdinCh:   make(chan []byte, 4),
		serverEOF: make(chan struct{}, 1),
		kbCh:      make(chan *config.Keybinds, 1),
	}
}

// KeybindsChan returns the channel a config watcher feeds reloaded
// keybinding tables into.
func (c *Client) KeybindsChan() chan<- *config.Keybinds { return c.kbCh }

func (c *Client) termSize() (cols, rows int, err error) {
	cols, rows, err = term.GetSize(int(c.in.Fd()))
	if err != nil {
		return 0, 0, fmt.Errorf("terminal size: %w", err)
	}
	return cols, rows, nil
}

// NewSession creates a fresh session with one pane and runs the loop.
// Nesting inside an existing muxkit or tmux is refused.
func (c *Client) NewSession() error {
	if CheckNested() {
		return ErrNested
	}
	cols, rows, err := c.termSize()
	if err != nil {
		return err
	}
	c.ws = protocol.Winsize{Rows: uint16(rows), Cols: uint16(cols)}

	// The server sizes the PTY slave from the announced window size.
	paneWS := protocol.Winsize{Rows: uint16(rows - 1), Cols: uint16(cols)}
	if err := protocol.WriteMessage(c.conn, protocol.MsgResize, paneWS.Encode()); err != nil {
		return err
	}
	if err := protocol.WriteMessage(c.conn, protocol.MsgCommand, []byte("new-session\x00")); err != nil {
		return err
	}
	fd, err := protocol.RecvFD(c.conn)
	if err != nil {
		return fmt.Errorf("receive master: %w", err)
	}

	w := pane.NewWindow(i18n.T(i18n.MsgWindowNew))
	p := w.AddPane(cols, rows-1, 0, 0, c.cfg.HistorySize)
	p.SetMaster(os.NewFile(uintptr(fd), "pty-master"))
	_ = p.UpdateMasterSize()

	c.window = w
	c.active = p
	return c.runLoop()
}

// Attach binds this front-end to a detached session: receive the masters,
// rebuild the panes, replay the cached snapshots, then run the loop.
func (c *Client) Attach(sessionID int) error {
	cols, rows, err := c.termSize()
	if err != nil {
		return err
	}
	c.ws = protocol.Winsize{Rows: uint16(rows), Cols: uint16(cols)}

	if err := protocol.WriteMessage(c.conn, protocol.MsgDetach, protocol.EncodeInt(uint32(sessionID))); err != nil {
		return err
	}
	paneCount, err := protocol.ReadInt(c.conn)
	if err != nil || paneCount == 0 {
		return ErrAttachMiss
	}
	c.logger.Info("attaching", "session", sessionID, "panes", paneCount)

	w := pane.NewWindow(i18n.T(i18n.MsgWindowAttached))
	height := rows - 1
	width := pane.PaneWidth(cols, int(paneCount))
	xoff := 0
	for i := 0; i < int(paneCount); i++ {
		fd, err := protocol.RecvFD(c.conn)
		if err != nil {
			c.logger.Error("receive pane master", "pane", i, "err", err)
			continue
		}
		p := w.AddPane(width, height, xoff, 0, c.cfg.HistorySize)
		p.SetMaster(os.NewFile(uintptr(fd), "pty-master"))
		_ = p.UpdateMasterSize()
		xoff += width + 1
	}
	if len(w.Panes) == 0 {
		return ErrAttachMiss
	}

	gridCount, err := protocol.ReadInt(c.conn)
	if err == nil {
		for i := 0; i < int(gridCount); i++ {
			typ, payload, err := protocol.ReadMessage(c.conn)
			if err != nil || typ != protocol.MsgGridSave {
				break
			}
			// The server keys each snapshot by the pane's position in the
			// strip, re-keyed at send time if panes died while detached.
			pos, err := protocol.DecodeInt(payload)
			if err != nil || int(pos) >= len(w.Panes) {
				c.logger.Warn("snapshot for unknown pane", "pane", pos)
				continue
			}
			p := w.Panes[pos]
			if err := p.RestoreSnapshot(payload); err != nil {
				c.logger.Warn("snapshot restore", "pane", pos, "err", err)
			}
		}
	}

	c.window = w
	c.active = w.Panes[0]
	return c.runLoop()
}

// runLoop is the multiplexed readiness loop: stdin, server link, pane
// masters and signals all feed the FSM until it reaches the exiting
// state.
func (c *Client) runLoop() error {
	defer c.shutdown()

	c.Dispatch(EventEnableRawMode)
	render.EnterAltScreen(c.out)
	c.screenUp = true
	render.ClearScreen(c.out)
	c.renderAll()

	winch := make(chan os.Signal, 1)
	chld := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	signal.Notify(chld, syscall.SIGCHLD)
	defer signal.Stop(winch)
	defer signal.Stop(chld)

	go c.readStdin()
	go c.watchServerLink()
	for _, p := range c.window.Panes {
		go c.readPane(p)
	}

	for c.state != StateExiting {
		select {
		case <-winch:
			c.Dispatch(EventWinch)
		case <-chld:
			if reapedChild() {
				c.Dispatch(EventChldExit)
			}
		case <-c.serverEOF:
			c.Dispatch(EventEOFPty)
		case ev := <-c.paneCh:
			if ev.eof {
				c.removePane(ev.p)
			} else {
				c.pendingPane = ev
				c.Dispatch(EventPtyRead)
			}
		case data, ok := <-c.stdinCh:
			if !ok {
				c.Dispatch(EventEOFStdin)
				continue
			}
			c.pendingStdin = data
			c.Dispatch(EventStdinRead)
		case kb := <-c.kbCh:
			c.keybinds = kb
			c.logger.Info("keybindings reloaded")
		}

		if c.state == StateRunning {
			c.renderStatus()
		}
	}
	return nil
}

// shutdown restores the terminal on every exit path and announces the
// departure to the server.
func (c *Client) shutdown() {
	c.exitScreen()
	_ = protocol.WriteMessage(c.conn, protocol.MsgExited, []byte(strconv.Itoa(os.Getpid())+"\x00"))
	_ = c.conn.Close()
	for _, p := range c.window.Panes {
		p.Close()
	}
	c.logger.Info("client exiting")
}

// exitScreen leaves the alternate screen and restores the original
// terminal modes. Safe to call more than once.
func (c *Client) exitScreen() {
	if c.screenUp {
		render.ExitAltScreen(c.out)
		c.screenUp = false
	}
	if c.rawRestore != nil {
		c.rawRestore()
		c.rawRestore = nil
	}
}

// readStdin pumps keyboard input into the loop; the channel closes on
// EOF.
func (c *Client) readStdin() {
	buf := make([]byte, 4096)
	for {
		n, err := c.in.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			c.stdinCh <- data
		}
		if err != nil || n == 0 {
			close(c.stdinCh)
			return
		}
	}
}

// readPane pumps one PTY master into the loop until EOF.
func (c *Client) readPane(p *pane.Pane) {
	buf := make([]byte, 4096)
	for {
		master := p.Master
		if master == nil {
			return
		}
		n, err := master.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			c.paneCh <- paneEvent{p: p, data: data}
		}
		if err != nil || n == 0 {
			c.paneCh <- paneEvent{p: p, eof: true}
			return
		}
	}
}

// watchServerLink watches the server connection for EOF. The watcher
// polls with a short read deadline so it can be parked while an FD
// transfer is in flight (the split path), and resumes afterwards.
func (c *Client) watchServerLink() {
	one := make([]byte, 1)
	for {
		if c.linkSuspend.Load() {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		c.linkMu.Lock()
		_ = c.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		_, err := c.conn.Read(one)
		c.linkMu.Unlock()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case c.serverEOF <- struct{}{}:
			default:
			}
			return
		}
		// Stray bytes outside a suspended window carry no meaning.
	}
}

// reapedChild drains any exited children (non-blocking) and reports
// whether one was actually reaped.
func reapedChild() bool {
	var status unix.WaitStatus
	pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
	return err == nil && pid > 0
}

// removePane handles a pane master EOF: drop the pane, move the active
// pane to the next in list order, re-layout survivors, and exit when
// none remain.
func (c *Client) removePane(p *pane.Pane) {
	p.Close()
	w := c.window

	if c.active == p {
		idx := -1
		for i, q := range w.Panes {
			if q == p {
				idx = i
				break
			}
		}
		switch {
		case idx >= 0 && idx+1 < len(w.Panes):
			c.active = w.Panes[idx+1]
		case idx > 0:
			c.active = w.Panes[idx-1]
		}
	}
	w.RemovePane(p)

	if len(w.Panes) == 0 {
		c.Dispatch(EventEOFPty)
		return
	}

	cols, rows := int(c.ws.Cols), int(c.ws.Rows)
	w.Relayout(cols, rows)
	for _, q := range w.Panes {
		_ = q.UpdateMasterSize()
	}
	render.ClearScreen(c.out)
	c.renderAll()
}

// renderAll redraws every pane, the borders between neighbors, and the
// status bar, then parks the cursor on the active pane.
func (c *Client) renderAll() {
	for i, p := range c.window.Panes {
		render.Pane(c.out, p)
		if i+1 < len(c.window.Panes) {
			render.Borders(c.out, p)
		}
	}
	c.renderStatus()
}

func (c *Client) renderStatus() {
	marker := ""
	if c.active != nil && c.active.Grid.ScrollOffset > 0 {
		marker = i18n.T(i18n.MsgStatusHistory)
	}
	bar := render.StatusBar{
		WindowName:    c.window.Name,
		Version:       c.version,
		HistoryMarker: marker,
		Foreground:    c.cfg.StatusBar.Foreground,
		Background:    c.cfg.StatusBar.Background,
	}
	bar.Render(c.out, int(c.ws.Cols), int(c.ws.Rows), c.active)
}
