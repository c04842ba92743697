// Package server implements the muxkit daemon: the session engine owning
// PTY masters and shell children, and the unix-socket dispatcher serving
// front-end connections.
package server

import (
	"net"
	"os"

	"github.com/LatosProject/muxkit/internal/protocol"
)

// MaxPanes bounds the panes of one session.
const MaxPanes = 64

// paneEntry holds one pane's server-side state: the PTY master, the
// shell child bound to its slave, and the cached detach snapshot until
// the next attach consumes it.
type paneEntry struct {
	master *os.File
	pid    int
	grid   []byte
}

// Session is one unit of persistence: up to MaxPanes PTY masters and
// their shells, surviving front-end disconnection.
//
// Panes are kept in the order the front-end lays them out; a dead pane
// is removed from the list on both sides, so snapshots are keyed by
// position in this list and the two orderings never drift apart.
type Session struct {
	ID int

	// conn is the attached front-end connection, nil when none.
	conn *net.UnixConn

	panes []*paneEntry

	detached bool

	// ws caches the window size most recently reported by the front-end.
	// It is used to size new PTY slaves and is never pushed to existing
	// panes; the front-end owns per-pane sizes.
	ws protocol.Winsize

	childExited bool
}

// paneCount returns the number of live panes.
func (s *Session) paneCount() int { return len(s.panes) }

// addPane appends a new pane and returns its position, or -1 when the
// session is full.
func (s *Session) addPane(master *os.File, pid int) int {
	if len(s.panes) >= MaxPanes {
		return -1
	}
	s.panes = append(s.panes, &paneEntry{master: master, pid: pid})
	return len(s.panes) - 1
}

// freePane releases the pane owning pid: the server's master copy is
// closed and the entry removed, taking any cached snapshot with it. It
// returns true when the pid belonged to this session.
func (s *Session) freePane(pid int) bool {
	for i, p := range s.panes {
		if p.pid == pid {
			if p.master != nil {
				_ = p.master.Close()
			}
			s.panes = append(s.panes[:i], s.panes[i+1:]...)
			return true
		}
	}
	return false
}

// storeGrid caches a detach snapshot for the pane at the given position.
func (s *Session) storeGrid(pos int, data []byte) bool {
	if pos < 0 || pos >= len(s.panes) {
		return false
	}
	s.panes[pos].grid = data
	return true
}

// anyPID returns the pid of the first live pane, or -1. The session list
// output reports it.
func (s *Session) anyPID() int {
	for _, p := range s.panes {
		if p.pid > 0 {
			return p.pid
		}
	}
	return -1
}

// closeAll releases every master, the connection, and the snapshot cache.
func (s *Session) closeAll() {
	for _, p := range s.panes {
		if p.master != nil {
			_ = p.master.Close()
		}
	}
	s.panes = nil
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}
