// Package client implements the front-end: raw-mode terminal handling,
// the finite state machine over I/O events and signals, prefix-key
// dispatch, pane layout, and the attach/detach flows against the server.
package client

// State is a front-end FSM state.
type State int

const (
	StateBoot State = iota
	StateRunning
	// StateResizing exists in the table's vocabulary but nothing
	// transitions into it; resize is handled synchronously from running.
	StateResizing
	StateExiting
)

// Event is a front-end FSM event.
type Event int

const (
	EventStdinRead Event = iota
	EventPtyRead
	EventWinch
	EventChldExit
	EventInterrupt
	EventEOFStdin
	EventEOFPty
	EventEnableRawMode
	EventDetached
	EventPaneSplit
	// EventSyncInput is reserved; no transition consumes it.
	EventSyncInput
)

// actionFn runs a transition's side effect before the state changes.
type actionFn func(c *Client, ev Event)

// transition is one row of the FSM table.
type transition struct {
	state  State
	event  Event
	next   State
	action actionFn
}

// transitions is scanned linearly per event; the first matching
// (state, event) row wins. Unknown pairs are logged and ignored.
//
// Built in init() rather than a var initializer: the table's action
// funcs transitively reference Dispatch, which reads transitions, and
// that chain trips Go's package-level initialization-cycle check even
// though no action runs before transitions is populated.
var transitions []transition

func init() {
	transitions = []transition{
		{StateBoot, EventEnableRawMode, StateRunning, (*Client).actEnableRawMode},
		{StateRunning, EventWinch, StateRunning, (*Client).actResize},
		{StateRunning, EventChldExit, StateExiting, (*Client).actChildExit},
		{StateRunning, EventPtyRead, StateRunning, (*Client).actPtyRead},
		{StateRunning, EventStdinRead, StateRunning, (*Client).actStdinRead},
		{StateExiting, EventStdinRead, StateExiting, nil},
		{StateExiting, EventPtyRead, StateExiting, nil},
		{StateRunning, EventEOFPty, StateExiting, (*Client).actChildExit},
		{StateRunning, EventEOFStdin, StateExiting, nil},
		{StateRunning, EventInterrupt, StateExiting, nil},
		{StateRunning, EventDetached, StateExiting, (*Client).actDetach},
		{StateRunning, EventPaneSplit, StateRunning, (*Client).actPaneSplit},
	}
}

// Dispatch feeds one event through the transition table.
func (c *Client) Dispatch(ev Event) {
	for i := range transitions {
		t := &transitions[i]
		if t.state == c.state && t.event == ev {
			if t.action != nil {
				t.action(c, ev)
			}
			c.state = t.next
			return
		}
	}
	c.logger.Warn("unhandled FSM event", "event", int(ev), "state", int(c.state))
}
