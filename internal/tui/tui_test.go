package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/blindboard/internal/relay"
)

func question(text string) EventMsg {
	return EventMsg{Event: relay.QuestionEvent, Data: text}
}

func word(text string) EventMsg {
	return EventMsg{Event: relay.WordEvent, Data: text}
}

func typeText(t *testing.T, m tea.Model, text string) tea.Model {
	t.Helper()

	for _, r := range text {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	return m
}

func placed(d *Display) []string {
	var out []string
	for _, p := range d.placements {
		out = append(out, p.Text)
	}
	return out
}

func TestListen_DeliversEventsThenClose(t *testing.T) {
	events := make(chan relay.Event, 1)
	events <- relay.Event{Event: relay.WordEvent, Data: "hi"}

	cmd := Listen(events, func() error { return errors.New("boom") })
	require.Equal(t, word("hi"), cmd())

	close(events)
	msg := cmd()
	require.IsType(t, ClosedMsg{}, msg)
	require.EqualError(t, msg.(ClosedMsg).Err, "boom")
}

func TestDisplay_AccumulatesAndResets(t *testing.T) {
	d := NewDisplay(make(chan relay.Event), nil)

	d.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	d.Update(question("Favorite color?"))
	d.Update(word("blue"))
	d.Update(word("red"))

	require.Equal(t, "Favorite color?", d.Question())
	require.Equal(t, []string{"blue", "red"}, d.Words())

	require.Contains(t, d.View(), "Favorite color?")
	require.Contains(t, d.View(), "2 responses")
	require.ElementsMatch(t, []string{"blue", "red"}, placed(d))

	d.Update(question("Favorite food?"))
	require.Empty(t, d.Words())
	require.Empty(t, placed(d))
	require.Contains(t, d.View(), "0 responses")
}

func TestDisplay_IgnoresUnknownEvents(t *testing.T) {
	d := NewDisplay(make(chan relay.Event), nil)

	_, cmd := d.Update(EventMsg{Event: "other", Data: "x"})
	require.NotNil(t, cmd)
	require.Empty(t, d.Words())
}

func TestDisplay_WaitingView(t *testing.T) {
	d := NewDisplay(make(chan relay.Event), nil)

	require.Contains(t, d.View(), "Waiting for a question...")
	require.Contains(t, d.View(), "0 responses  q to quit")
}

func TestDisplay_QuitsOnClose(t *testing.T) {
	d := NewDisplay(make(chan relay.Event), nil)

	_, cmd := d.Update(ClosedMsg{Err: errors.New("gone")})
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
	require.EqualError(t, d.Err(), "gone")
	require.Contains(t, d.View(), "Disconnected: gone")
}

func TestDisplay_StableAcrossRelayouts(t *testing.T) {
	d := NewDisplay(make(chan relay.Event), nil)

	d.Update(question("q"))
	for _, w := range []string{"alpha", "beta", "gamma"} {
		d.Update(word(w))
	}
	first := d.View()

	d.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	require.Equal(t, first, d.View())
}

func TestRenderCloud_Dimensions(t *testing.T) {
	out := renderCloud(nil, 10, 3)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		require.Equal(t, strings.Repeat(" ", 10), line)
	}
}

func TestRespond_WaitsForQuestion(t *testing.T) {
	var sent []string
	r := NewRespond(make(chan relay.Event), nil, func(s string) error {
		sent = append(sent, s)
		return nil
	})

	require.Contains(t, r.View(), "Waiting for a question...")

	_, cmd := r.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
	require.Empty(t, sent)
}

func TestRespond_SubmitsVerbatimOnce(t *testing.T) {
	var sent []string
	r := NewRespond(make(chan relay.Event), nil, func(s string) error {
		sent = append(sent, s)
		return nil
	})

	r.Update(question("Favorite color?"))
	typeText(t, r, " blue ")

	_, cmd := r.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	r.Update(cmd())

	require.Equal(t, []string{" blue "}, sent)
	require.True(t, r.Submitted())
	require.Contains(t, r.View(), "Response submitted!")

	_, cmd = r.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
	require.Len(t, sent, 1)
}

func TestRespond_IgnoresBlankInput(t *testing.T) {
	r := NewRespond(make(chan relay.Event), nil, func(string) error {
		t.Fatal("blank input must not be sent")
		return nil
	})

	r.Update(question("q"))
	typeText(t, r, "   ")

	_, cmd := r.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
	require.False(t, r.Submitted())
}

func TestRespond_NewQuestionResetsForm(t *testing.T) {
	r := NewRespond(make(chan relay.Event), nil, func(string) error { return nil })

	r.Update(question("first"))
	typeText(t, r, "yes")
	_, cmd := r.Update(tea.KeyMsg{Type: tea.KeyEnter})
	r.Update(cmd())
	require.True(t, r.Submitted())

	r.Update(question("second"))
	require.False(t, r.Submitted())
	require.Equal(t, "second", r.Question())
	require.Empty(t, r.input.Value())
}

func TestRespond_EmptyQuestionStillShowsForm(t *testing.T) {
	r := NewRespond(make(chan relay.Event), nil, func(string) error { return nil })

	r.Update(question(""))
	require.Equal(t, answering, r.state)
}

func TestRespond_CharLimit(t *testing.T) {
	r := NewRespond(make(chan relay.Event), nil, func(string) error { return nil })

	r.Update(question("q"))
	typeText(t, r, strings.Repeat("x", MaxResponse+20))

	require.Len(t, r.input.Value(), MaxResponse)
}

func TestRespond_SendFailureAllowsRetry(t *testing.T) {
	r := NewRespond(make(chan relay.Event), nil, func(string) error { return errors.New("connection closed") })

	r.Update(question("q"))
	typeText(t, r, "maybe")
	_, cmd := r.Update(tea.KeyMsg{Type: tea.KeyEnter})
	r.Update(cmd())

	require.False(t, r.Submitted())
	require.EqualError(t, r.Err(), "connection closed")
	require.Equal(t, "maybe", r.input.Value())
}
