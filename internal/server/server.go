package server

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"

	"github.com/LatosProject/muxkit/internal/i18n"
	"github.com/LatosProject/muxkit/internal/protocol"
)

// Server is the per-user daemon: it owns the session list and serves
// front-end connections on the unix socket. The session list is guarded
// by mu; connection handlers and the reaper both go through it.
type Server struct {
	mu       sync.Mutex
	sessions []*Session
	nextID   int

	listener *net.UnixListener
	reapCh   chan int
	logger   *log.Logger
	shell    string
}

// New creates a server. shellOverride, when non-empty, wins over $SHELL
// for spawned panes.
func New(logger *log.Logger, shellOverride string) *Server {
	return &Server{
		reapCh: make(chan int, MaxPanes),
		logger: logger,
		shell:  shellOverride,
	}
}

// Run binds the socket and serves until the listener fails. It owns the
// socket file: a stale one has already been unlinked by the client that
// spawned us, under the startup lock.
func (s *Server) Run(socketPath string) error {
	addr, err := net.ResolveUnixAddr("unix", socketPath)
	if err != nil {
		return err
	}
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	s.listener = listener
	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.logger.Info("server started", "socket", socketPath, "pid", os.Getpid())

	go s.reapLoop()

	for {
		conn, err := listener.AcceptUnix()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept", "err", err)
			continue
		}
		go s.handleConn(conn)
	}
}

// reapLoop drains child-exit notifications. For each exited shell it
// closes the server's master copy and frees the slot; a session whose
// last pane exited is torn down, closing any attached connection.
func (s *Server) reapLoop() {
	for pid := range s.reapCh {
		s.paneExited(pid)
	}
}

func (s *Server) paneExited(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sess := range s.sessions {
		if !sess.freePane(pid) {
			continue
		}
		s.logger.Info("pane exited", "session", sess.ID, "pid", pid)
		if sess.paneCount() == 0 {
			sess.childExited = true
			sess.closeAll()
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			s.logger.Info("session torn down", "session", sess.ID)
		}
		return
	}
	// Children of killed sessions are reaped after their session is gone.
	s.logger.Debug("reaped orphan child", "pid", pid)
}

// bindSession returns the session bound to conn, allocating a new one on
// the first non-administrative message. New ids come from a counter that
// only grows, so ids are never reused, even after the highest is freed.
func (s *Server) bindSession(cur *Session, conn *net.UnixConn) *Session {
	if cur != nil {
		return cur
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	sess := &Session{ID: id, conn: conn}
	s.sessions = append(s.sessions, sess)
	s.logger.Debug("created session", "session", id)
	return sess
}

func (s *Server) findSession(id int) *Session {
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

// handleConn reads framed messages in arrival order until the peer
// disconnects or an administrative exchange finishes.
func (s *Server) handleConn(conn *net.UnixConn) {
	defer func() { _ = conn.Close() }()

	var sess *Session
	for {
		typ, payload, err := protocol.ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("connection read", "err", err)
			}
			s.dropConn(sess, conn)
			return
		}

		switch typ {
		case protocol.MsgVersion:
			// The reply is a raw int, not a framed message.
			clientVersion, _ := protocol.DecodeInt(payload)
			_ = protocol.WriteInt(conn, protocol.Version)
			if clientVersion != protocol.Version {
				s.logger.Error("protocol version mismatch", "client", clientVersion, "server", protocol.Version)
				return
			}

		case protocol.MsgListSessions:
			_ = protocol.WriteText(conn, s.listSessions())
			return

		case protocol.MsgDetachKill:
			id, err := protocol.DecodeInt(payload)
			if err != nil {
				return
			}
			_ = protocol.WriteText(conn, s.killSession(int(id)))
			return

		case protocol.MsgExited:
			s.logger.Info("client exited", "pid", strings.TrimRight(string(payload), "\x00"))
			return

		case protocol.MsgCommand:
			sess = s.bindSession(sess, conn)
			cmd := strings.TrimRight(string(payload), "\x00")
			if cmd == "new-session" || cmd == "pane-split" {
				if err := s.createPane(sess, conn); err != nil {
					s.logger.Error("create pane", "session", sess.ID, "err", err)
				}
			} else {
				s.logger.Warn("unknown command", "cmd", cmd)
			}

		case protocol.MsgResize:
			sess = s.bindSession(sess, conn)
			ws, err := protocol.DecodeWinsize(payload)
			if err == nil {
				s.mu.Lock()
				sess.ws = ws
				s.mu.Unlock()
			}

		case protocol.MsgDetach:
			if len(payload) == 0 {
				// Detach request: masters and children stay alive.
				sess = s.bindSession(sess, conn)
				s.mu.Lock()
				sess.detached = true
				sess.conn = nil
				s.mu.Unlock()
				s.logger.Info("session detached", "session", sess.ID)
				return
			}
			// Attach request: binds the connection to the target session
			// without ever allocating one. A miss leaves the connection
			// unbound.
			id, err := protocol.DecodeInt(payload)
			if err != nil {
				return
			}
			if target := s.attach(int(id), conn); target != nil {
				sess = target
			}

		case protocol.MsgGridSave:
			sess = s.bindSession(sess, conn)
			pos, err := protocol.DecodeInt(payload)
			if err != nil {
				continue
			}
			s.mu.Lock()
			stored := sess.storeGrid(int(pos), payload)
			s.mu.Unlock()
			if stored {
				s.logger.Debug("stored grid snapshot", "session", sess.ID, "pane", pos, "bytes", len(payload))
			} else {
				s.logger.Warn("snapshot for unknown pane", "session", sess.ID, "pane", pos)
			}

		default:
			s.logger.Warn("unknown message type", "type", uint32(typ))
		}
	}
}

// dropConn clears the connection pointer of the session bound to conn.
// The session itself keeps its state according to its detached flag.
func (s *Server) dropConn(sess *Session, conn *net.UnixConn) {
	if sess == nil {
		return
	}
	s.mu.Lock()
	if sess.conn == conn {
		sess.conn = nil
	}
	s.mu.Unlock()
}

// createPane builds a new PTY pair, hands the master to the front-end by
// FD passing, and spawns the shell on the slave. At MaxPanes the request
// is logged and ignored.
func (s *Server) createPane(sess *Session, conn *net.UnixConn) error {
	s.mu.Lock()
	if sess.paneCount() >= MaxPanes {
		s.mu.Unlock()
		s.logger.Error("max panes reached", "session", sess.ID)
		return nil
	}
	ws := sess.ws
	s.mu.Unlock()

	master, slave, err := pty.Open()
	if err != nil {
		return fmt.Errorf("open pty: %w", err)
	}
	if ws.Rows > 0 && ws.Cols > 0 {
		_ = pty.Setsize(slave, &pty.Winsize{Rows: ws.Rows, Cols: ws.Cols})
	}
	if err := prepareSlave(slave); err != nil {
		s.logger.Warn("prepare slave", "err", err)
	}

	if err := protocol.SendFD(conn, int(master.Fd())); err != nil {
		_ = master.Close()
		_ = slave.Close()
		return err
	}

	cmd, err := spawnShell(slave, resolveShell(s.shell))
	// The parent must not keep the slave open, or the master never sees
	// EOF after the shell exits.
	_ = slave.Close()
	if err != nil {
		_ = master.Close()
		return err
	}
	pid := cmd.Process.Pid

	s.mu.Lock()
	pos := sess.addPane(master, pid)
	s.mu.Unlock()
	if pos < 0 {
		_ = cmd.Process.Kill()
		_ = master.Close()
		return fmt.Errorf("no free pane slot")
	}
	s.logger.Info("created pane", "session", sess.ID, "pane", pos, "pid", pid)

	go func() {
		_ = cmd.Wait()
		s.reapCh <- pid
	}()
	return nil
}

// attach transfers a detached session to conn: pane count, each master by
// FD passing, then the cached snapshots. A miss is signalled by a zero
// pane count. Returns the attached session or nil.
func (s *Server) attach(id int, conn *net.UnixConn) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.findSession(id)
	if target == nil || !target.detached {
		s.logger.Warn("attach failed", "session", id)
		_ = protocol.WriteInt(conn, 0)
		return nil
	}

	_ = protocol.WriteInt(conn, uint32(len(target.panes)))
	for _, p := range target.panes {
		if err := protocol.SendFD(conn, int(p.master.Fd())); err != nil {
			s.logger.Error("attach fd transfer", "session", id, "err", err)
		}
	}

	var gridCount uint32
	for _, p := range target.panes {
		if len(p.grid) >= 4 {
			gridCount++
		}
	}
	_ = protocol.WriteInt(conn, gridCount)
	for pos, p := range target.panes {
		if len(p.grid) < 4 {
			p.grid = nil
			continue
		}
		// A pane death while detached shifts the positions after it, so
		// the snapshot's leading word is re-keyed to the pane's current
		// position before it goes out.
		binary.NativeEndian.PutUint32(p.grid[0:4], uint32(pos))
		_ = protocol.WriteMessage(conn, protocol.MsgGridSave, p.grid)
		p.grid = nil
	}

	target.conn = conn
	target.detached = false
	s.logger.Info("session attached", "session", id, "panes", len(target.panes), "grids", gridCount)
	return target
}

// listSessions renders the session list reply: one line per session with
// panes, or the localized "(no sessions)".
func (s *Server) listSessions() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	count := 0
	for _, sess := range s.sessions {
		if sess.paneCount() == 0 {
			continue
		}
		count++
		status := "attached"
		if sess.detached {
			status = "detached"
		}
		fmt.Fprintf(&b, i18n.T(i18n.MsgSessionFormat), sess.ID, status, sess.anyPID())
	}
	if count == 0 {
		return i18n.T(i18n.MsgNoSessions)
	}
	s.logger.Info("listed sessions", "count", count)
	return b.String()
}

// killSession force-kills every pane shell of the session and frees it.
func (s *Server) killSession(id int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.findSession(id)
	if target == nil || target.paneCount() == 0 {
		s.logger.Warn("kill failed", "session", id)
		return fmt.Sprintf(i18n.T(i18n.MsgSessionNotFound), id)
	}
	s.logger.Info("killing session", "session", id)
	for _, p := range target.panes {
		if p.pid > 0 {
			_ = syscall.Kill(p.pid, syscall.SIGKILL)
		}
	}
	target.closeAll()
	for i, sess := range s.sessions {
		if sess == target {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			break
		}
	}
	return fmt.Sprintf(i18n.T(i18n.MsgSessionKilled), id)
}

// StartDetached launches the daemon process: the current executable with
// the hidden server argument, in a new session with stdio on the null
// device. The caller holds the startup lock and has already unlinked any
// stale socket.
func StartDetached() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open null device: %w", err)
	}
	defer devNull.Close()

	cmd := exec.Command(exe, "server")
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return cmd.Process.Release()
}
