package client

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/LatosProject/muxkit/internal/config"
	"github.com/LatosProject/muxkit/internal/protocol"
	"github.com/LatosProject/muxkit/internal/server"
)

// Connect dials the per-user socket, lazily starting the server when
// nothing is listening. The cooperative lock on <socket>.lock covers
// "unlink stale socket + start server"; a client that loses the race
// blocks on the lock until the winner's server is up, then connects
// normally.
func Connect(socketPath string) (*net.UnixConn, error) {
	conn, err := dial(socketPath)
	if err == nil {
		return conn, nil
	}

	lockFile, err := os.OpenFile(config.LockPath(socketPath), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if !errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("lock %s: %w", lockFile.Name(), err)
		}
		// Another client is starting the server; wait for it to finish,
		// then connect to the server it spawned.
		for {
			err = unix.Flock(int(lockFile.Fd()), unix.LOCK_EX)
			if err == nil || !errors.Is(err, unix.EINTR) {
				break
			}
		}
		_ = unix.Flock(int(lockFile.Fd()), unix.LOCK_UN)
		return dialRetry(socketPath)
	}
	defer func() { _ = unix.Flock(int(lockFile.Fd()), unix.LOCK_UN) }()

	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("unlink stale socket: %w", err)
	}
	if err := server.StartDetached(); err != nil {
		return nil, err
	}
	return dialRetry(socketPath)
}

func dial(socketPath string) (*net.UnixConn, error) {
	addr, err := net.ResolveUnixAddr("unix", socketPath)
	if err != nil {
		return nil, err
	}
	return net.DialUnix("unix", nil, addr)
}

// dialRetry polls the socket while the freshly started server binds it.
func dialRetry(socketPath string) (*net.UnixConn, error) {
	var lastErr error
	for i := 0; i < 100; i++ {
		conn, err := dial(socketPath)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	return nil, fmt.Errorf("server did not come up: %w", lastErr)
}

// Handshake runs the version exchange: the client sends a framed VERSION,
// the server answers with its version as a raw int. Any mismatch is
// fatal for the connection.
func Handshake(conn *net.UnixConn) error {
	if err := protocol.WriteMessage(conn, protocol.MsgVersion, protocol.EncodeInt(protocol.Version)); err != nil {
		return err
	}
	serverVersion, err := protocol.ReadInt(conn)
	if err != nil {
		return protocol.ErrVersionMismatch
	}
	if serverVersion != protocol.Version {
		return protocol.ErrVersionMismatch
	}
	return nil
}

// ListSessions asks the server for the session list text.
func ListSessions(conn *net.UnixConn) (string, error) {
	if err := protocol.WriteMessage(conn, protocol.MsgListSessions, nil); err != nil {
		return "", err
	}
	return protocol.ReadText(conn)
}

// KillSession asks the server to kill session id and returns the reply
// text.
func KillSession(conn *net.UnixConn, id int) (string, error) {
	if err := protocol.WriteMessage(conn, protocol.MsgDetachKill, protocol.EncodeInt(uint32(id))); err != nil {
		return "", err
	}
	return protocol.ReadText(conn)
}

// NewDetachedSession creates a session with one pane and immediately
// detaches from it, leaving the shell running in the background with no
// terminal attached.
func NewDetachedSession(conn *net.UnixConn, ws protocol.Winsize) error {
	if ws.Rows > 1 {
		ws.Rows--
	}
	if err := protocol.WriteMessage(conn, protocol.MsgResize, ws.Encode()); err != nil {
		return err
	}
	if err := protocol.WriteMessage(conn, protocol.MsgCommand, []byte("new-session\x00")); err != nil {
		return err
	}
	fd, err := protocol.RecvFD(conn)
	if err != nil {
		return err
	}
	// The server retains its own master copy; ours is not needed.
	_ = os.NewFile(uintptr(fd), "pty-master").Close()
	return protocol.WriteMessage(conn, protocol.MsgDetach, nil)
}

// CheckNested reports whether the front-end already runs inside a muxkit
// or tmux session.
func CheckNested() bool {
	return os.Getenv("MUXKIT") != "" || os.Getenv("TMUX") != ""
}
