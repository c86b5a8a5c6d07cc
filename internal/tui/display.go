/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package tui

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Seednode/blindboard/internal/cloud"
	"github.com/Seednode/blindboard/internal/relay"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1f2937"))
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2563eb")).
			Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#93c5fd")).Padding(0, 1)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
)

// words at or above this size are drawn bold
const boldSize = 45

// Display renders the current question and a word cloud of the responses.
type Display struct {
	board  cloud.Board
	events <-chan relay.Event
	errFn  func() error

	width, height int
	seed          uint64
	placements    []cloud.Placement

	closed bool
	err    error
}

func NewDisplay(events <-chan relay.Event, errFn func() error) *Display {
	return &Display{
		events: events,
		errFn:  errFn,
		width:  80,
		height: 24,
	}
}

func (d *Display) Init() tea.Cmd {
	return Listen(d.events, d.errFn)
}

func (d *Display) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return d, tea.Quit
		}

	case tea.WindowSizeMsg:
		d.width, d.height = msg.Width, msg.Height
		d.relayout()

	case EventMsg:
		e := relay.Event(msg)
		if d.board.Apply(e) {
			if e.Event == relay.QuestionEvent {
				d.seed = seedFor(e.Data)
			}
			d.relayout()
		}
		return d, Listen(d.events, d.errFn)

	case ClosedMsg:
		d.closed = true
		d.err = msg.Err
		return d, tea.Quit
	}

	return d, nil
}

// Question and Words expose the accumulated state.
func (d *Display) Question() string { return d.board.Question() }
func (d *Display) Words() []string  { return d.board.Words() }

// Err is the reason the connection ended, if it ended abnormally.
func (d *Display) Err() error { return d.err }

// cloudArea is the space left for words under the title and question box.
func (d *Display) cloudArea() (int, int) {
	return max(d.width-2, 1), max(d.height-7, 1)
}

func (d *Display) relayout() {
	w, h := d.cloudArea()
	d.placements = cloud.Layout(d.board.Words(), cloud.Options{
		Width:   w,
		Height:  h,
		PadX:    1,
		MinSize: cloud.DefaultMinSize,
		MaxSize: cloud.DefaultMaxSize,
		Measure: cloud.Cells,
		Rand:    rand.New(rand.NewPCG(d.seed, d.seed^0x9e3779b97f4a7c15)),
	})
}

// seedFor keeps a question's cloud stable across relayouts.
func seedFor(question string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(question))
	return h.Sum64()
}

func (d *Display) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Blind Board"))
	b.WriteString("\n")

	if q := d.board.Question(); q != "" {
		b.WriteString(questionStyle.Render(q))
	} else {
		b.WriteString(mutedStyle.Render("Waiting for a question..."))
	}
	b.WriteString("\n")

	w, h := d.cloudArea()
	b.WriteString(renderCloud(d.placements, w, h))

	if d.closed {
		b.WriteString("\n")
		if d.err != nil {
			b.WriteString(errorStyle.Render("Disconnected: " + d.err.Error()))
		} else {
			b.WriteString(mutedStyle.Render("Disconnected."))
		}
	} else {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(responses(d.board.Len()) + "  q to quit"))
	}

	return b.String()
}

func responses(n int) string {
	if n == 1 {
		return "1 response"
	}
	return fmt.Sprintf("%d responses", n)
}

type cell struct {
	r     rune
	style int // index into Palette, -1 for blank
	bold  bool
	skip  bool // trailing half of a wide rune
}

func renderCloud(placements []cloud.Placement, width, height int) string {
	grid := make([][]cell, height)
	for y := range grid {
		grid[y] = make([]cell, width)
		for x := range grid[y] {
			grid[y][x] = cell{r: ' ', style: -1}
		}
	}

	put := func(x, y int, r rune, p cloud.Placement) {
		if y < 0 || y >= height || x < 0 || x >= width {
			return
		}
		grid[y][x] = cell{r: r, style: p.Color, bold: p.Size >= boldSize}
		if runewidth.RuneWidth(r) == 2 && x+1 < width {
			grid[y][x+1] = cell{skip: true}
		}
	}

	for _, p := range placements {
		x, y := p.X, p.Y
		for _, r := range p.Text {
			put(x, y, r, p)
			if p.Rotated {
				y++
			} else {
				x += max(runewidth.RuneWidth(r), 1)
			}
		}
	}

	var out strings.Builder
	for y, row := range grid {
		if y > 0 {
			out.WriteString("\n")
		}
		writeRow(&out, row)
	}

	return out.String()
}

// writeRow renders runs of identically styled cells together.
func writeRow(out *strings.Builder, row []cell) {
	var run strings.Builder
	style, bold := -1, false

	flush := func() {
		if run.Len() == 0 {
			return
		}
		if style < 0 {
			out.WriteString(run.String())
		} else {
			s := lipgloss.NewStyle().Foreground(lipgloss.Color(cloud.Palette[style])).Bold(bold)
			out.WriteString(s.Render(run.String()))
		}
		run.Reset()
	}

	for _, c := range row {
		if c.skip {
			continue
		}
		if c.style != style || c.bold != bold {
			flush()
			style, bold = c.style, c.bold
		}
		run.WriteRune(c.r)
	}
	flush()
}
