package client

import (
	"bytes"
	"io"
	"net"
	"os"
	"testing"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"github.com/LatosProject/muxkit/internal/config"
	"github.com/LatosProject/muxkit/internal/pane"
	"github.com/LatosProject/muxkit/internal/protocol"
)

// socketPair returns a connected unix stream pair: one end as a
// *net.UnixConn for the client, the other as a raw file for the test.
func socketPair(t *testing.T) (*net.UnixConn, *os.File) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	f := os.NewFile(uintptr(fds[0]), "client-end")
	conn, err := net.FileConn(f)
	_ = f.Close()
	if err != nil {
		t.Fatal(err)
	}
	uconn, ok := conn.(*net.UnixConn)
	if !ok {
		t.Fatal("not a unix conn")
	}
	peer := os.NewFile(uintptr(fds[1]), "server-end")
	t.Cleanup(func() {
		_ = uconn.Close()
		_ = peer.Close()
	})
	return uconn, peer
}

// testClient builds a client against a loopback socketpair and a buffer
// for terminal output.
func testClient(t *testing.T) (*Client, *bytes.Buffer) {
	t.Helper()
	conn, _ := socketPair(t)
	out := &bytes.Buffer{}
	// Stdin is replaced by the null device so raw-mode and size probes
	// fail cleanly instead of touching the test terminal.
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = devNull.Close() })
	c := &Client{
		conn:      conn,
		state:     StateRunning,
		in:        devNull,
		cfg:       config.DefaultConfig(),
		keybinds:  config.DefaultKeybinds(),
		logger:    log.New(io.Discard),
		version:   "test",
		ws:        protocol.Winsize{Rows: 24, Cols: 80},
		paneCh:    make(chan paneEvent, 16),
		stdinCh:   make(chan []byte, 4),
		serverEOF: make(chan struct{}, 1),
		kbCh:      make(chan *config.Keybinds, 1),
	}
	c.window = pane.NewWindow("test")
	c.out = out
	return c, out
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name  string
		from  State
		event Event
		want  State
	}{
		{"boot to running", StateBoot, EventEnableRawMode, StateRunning},
		{"winch stays running", StateRunning, EventWinch, StateRunning},
		{"child exit", StateRunning, EventChldExit, StateExiting},
		{"stdin eof", StateRunning, EventEOFStdin, StateExiting},
		{"pty eof", StateRunning, EventEOFPty, StateExiting},
		{"interrupt", StateRunning, EventInterrupt, StateExiting},
		{"exiting absorbs stdin", StateExiting, EventStdinRead, StateExiting},
		{"exiting absorbs pty", StateExiting, EventPtyRead, StateExiting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := testClient(t)
			c.state = tt.from
			c.Dispatch(tt.event)
			if c.state != tt.want {
				t.Errorf("state = %d, want %d", c.state, tt.want)
			}
		})
	}
}

func TestUnknownPairIgnored(t *testing.T) {
	c, _ := testClient(t)
	c.state = StateBoot
	c.Dispatch(EventWinch)
	if c.state != StateBoot {
		t.Errorf("unknown pair changed state to %d", c.state)
	}

	// The reserved sync-input event has no transition anywhere.
	c.state = StateRunning
	c.Dispatch(EventSyncInput)
	if c.state != StateRunning {
		t.Error("reserved event must not transition")
	}
}
