/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package tui holds the terminal versions of the display and respond pages.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Seednode/blindboard/internal/relay"
)

// EventMsg carries one relayed event into the update loop.
type EventMsg relay.Event

// ClosedMsg reports that the relay connection ended.
type ClosedMsg struct {
	Err error
}

// Listen returns a command that waits for the next event on events.
// Call it again after handling each EventMsg to keep receiving.
func Listen(events <-chan relay.Event, errFn func() error) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			var err error
			if errFn != nil {
				err = errFn()
			}
			return ClosedMsg{Err: err}
		}
		return EventMsg(e)
	}
}
