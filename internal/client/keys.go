package client

import (
	"github.com/LatosProject/muxkit/internal/config"
	"github.com/LatosProject/muxkit/internal/render"
)

// prefixByte is Ctrl+B.
const prefixByte = 0x02

// handleStdin walks the keyboard bytes through the prefix-key state
// machine. A sticky flag remembers that the previous byte was the
// prefix; a second prefix forwards one literal prefix byte and clears
// the flag.
func (c *Client) handleStdin(data []byte) {
	for _, b := range data {
		if b == prefixByte {
			if c.prefixSticky {
				c.writeActive([]byte{b})
				c.prefixSticky = false
			} else {
				c.prefixSticky = true
			}
			continue
		}
		if c.prefixSticky {
			c.prefixSticky = false
			c.handlePrefixKey(b)
			continue
		}
		// Any plain keystroke leaves history mode; escape and q are
		// swallowed, everything else still reaches the shell.
		if c.active != nil && c.active.Grid.ScrollOffset > 0 {
			c.active.Grid.ScrollOffset = 0
			render.Pane(c.out, c.active)
			if b == 0x1b || b == 'q' {
				continue
			}
		}
		c.writeActive([]byte{b})
	}
}

// handlePrefixKey looks the key up in the prefix table and runs its
// action; an unbound key forwards the prefix byte plus the key to the
// active pane.
func (c *Client) handlePrefixKey(key byte) {
	action, ok := c.keybinds.Lookup(key)
	if !ok {
		c.writeActive([]byte{prefixByte, key})
		return
	}
	switch action {
	case config.ActionDetach:
		c.Dispatch(EventDetached)
	case config.ActionNewPane:
		c.Dispatch(EventPaneSplit)
	case config.ActionNextPane:
		c.nextPane()
	case config.ActionScrollUp:
		c.scroll(+1)
	case config.ActionScrollDown:
		c.scroll(-1)
	}
}

func (c *Client) writeActive(data []byte) {
	if c.active == nil || c.active.Master == nil {
		return
	}
	if _, err := c.active.Master.Write(data); err != nil {
		c.logger.Warn("write to pane", "err", err)
	}
}

func (c *Client) nextPane() {
	if next := c.window.NextPane(c.active); next != nil {
		c.active = next
		render.Pane(c.out, c.active)
	}
}

// scroll moves the active pane one page through its history. dir is +1
// toward older rows, -1 toward the live screen.
func (c *Client) scroll(dir int) {
	p := c.active
	if p == nil {
		return
	}
	if dir > 0 {
		p.Grid.ScrollUp(p.SY)
	} else {
		p.Grid.ScrollDown(p.SY)
	}
	render.Pane(c.out, p)
	c.renderStatus()
}
