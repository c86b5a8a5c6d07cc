/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Seednode/blindboard/internal/relay"
)

// MaxResponse is the longest response the input accepts.
const MaxResponse = 100

var successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#16a34a"))

type respondState int

const (
	waiting respondState = iota
	answering
	submitted
)

// sentMsg reports the outcome of sending a response.
type sentMsg struct {
	err error
}

// Respond lets one participant answer each question once.
type Respond struct {
	events <-chan relay.Event
	errFn  func() error
	send   func(string) error

	input    textinput.Model
	state    respondState
	question string

	closed bool
	err    error
}

func NewRespond(events <-chan relay.Event, errFn func() error, send func(string) error) *Respond {
	input := textinput.New()
	input.Placeholder = "Type your response..."
	input.CharLimit = MaxResponse
	input.Width = 50

	return &Respond{
		events: events,
		errFn:  errFn,
		send:   send,
		input:  input,
	}
}

func (r *Respond) Init() tea.Cmd {
	return tea.Batch(Listen(r.events, r.errFn), textinput.Blink)
}

func (r *Respond) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return r, tea.Quit
		case tea.KeyEnter:
			return r, r.submit()
		}

		if r.state != answering {
			if msg.String() == "q" {
				return r, tea.Quit
			}
			return r, nil
		}

	case EventMsg:
		if msg.Event == relay.QuestionEvent {
			r.question = msg.Data
			r.state = answering
			r.err = nil
			r.input.Reset()
			r.input.Focus()
		}
		return r, Listen(r.events, r.errFn)

	case sentMsg:
		if msg.err != nil {
			r.err = msg.err
			r.state = answering
			r.input.Focus()
		}
		return r, nil

	case ClosedMsg:
		r.closed = true
		if msg.Err != nil {
			r.err = msg.Err
		}
		return r, tea.Quit
	}

	var cmd tea.Cmd
	r.input, cmd = r.input.Update(msg)

	return r, cmd
}

// submit sends the input verbatim. Blank input is ignored.
func (r *Respond) submit() tea.Cmd {
	if r.state != answering {
		return nil
	}

	text := r.input.Value()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	r.state = submitted
	r.input.Blur()

	send := r.send
	return func() tea.Msg {
		return sentMsg{err: send(text)}
	}
}

// Question is the question currently being answered.
func (r *Respond) Question() string { return r.question }

// Submitted reports whether a response went out for the current question.
func (r *Respond) Submitted() bool { return r.state == submitted }

func (r *Respond) Err() error { return r.err }

func (r *Respond) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Blind Board"))
	b.WriteString("\n\n")

	switch r.state {
	case waiting:
		b.WriteString(mutedStyle.Render("Waiting for a question..."))
	case answering:
		b.WriteString(questionStyle.Render(r.question))
		b.WriteString("\n\n")
		b.WriteString(r.input.View())
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("enter to submit"))
	case submitted:
		b.WriteString(questionStyle.Render(r.question))
		b.WriteString("\n\n")
		b.WriteString(successStyle.Render("Response submitted!"))
	}

	if r.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(r.err.Error()))
	}

	if r.closed {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("Disconnected."))
	}

	b.WriteString("\n")

	return b.String()
}
