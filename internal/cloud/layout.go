/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package cloud

import (
	"math"
	"math/rand/v2"
)

// Palette holds the fill colours words are drawn with.
var Palette = [10]string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

const (
	DefaultMinSize = 10
	DefaultMaxSize = 60
)

// Measure returns the box a word occupies at the given size and orientation.
type Measure func(text string, size int, rotated bool) (w, h int)

type Options struct {
	Width, Height int

	// Gap kept between neighbouring words.
	PadX, PadY int

	// Word sizes are drawn uniformly from [MinSize, MaxSize).
	MinSize, MaxSize int

	Measure Measure
	Rand    *rand.Rand
}

// Placement is one word positioned inside the cloud, by its top-left corner.
type Placement struct {
	Text    string
	Size    int
	Rotated bool
	Color   int
	X, Y    int
	W, H    int
}

func (p Placement) overlaps(o Placement, padX, padY int) bool {
	return p.X < o.X+o.W+padX && o.X < p.X+p.W+padX &&
		p.Y < o.Y+o.H+padY && o.Y < p.Y+p.H+padY
}

// Layout places words in order, spiralling outward from the centre until
// each finds a free spot. Words that do not fit anywhere are left out.
// Given the same seed and word prefix, earlier words land in the same place,
// so a growing cloud stays stable as words arrive.
func Layout(words []string, opts Options) []Placement {
	if opts.Width <= 0 || opts.Height <= 0 || opts.Measure == nil {
		return nil
	}
	if opts.MinSize <= 0 {
		opts.MinSize = DefaultMinSize
	}
	if opts.MaxSize <= opts.MinSize {
		opts.MaxSize = opts.MinSize + 1
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	placed := make([]Placement, 0, len(words))

	for _, text := range words {
		p := Placement{
			Text:    text,
			Size:    opts.MinSize + opts.Rand.IntN(opts.MaxSize-opts.MinSize),
			Rotated: opts.Rand.IntN(2) == 1,
			Color:   opts.Rand.IntN(len(Palette)),
		}
		p.W, p.H = opts.Measure(text, p.Size, p.Rotated)

		if p.W <= 0 || p.H <= 0 || p.W > opts.Width || p.H > opts.Height {
			continue
		}

		if spiral(&p, placed, opts) {
			placed = append(placed, p)
		}
	}

	return placed
}

// spiral walks an Archimedean spiral stretched to the area's aspect ratio.
func spiral(p *Placement, placed []Placement, opts Options) bool {
	cx := (opts.Width - p.W) / 2
	cy := (opts.Height - p.H) / 2
	aspect := float64(opts.Width) / float64(opts.Height)

	for step := 0; ; step++ {
		t := float64(step) * 0.1
		dx := aspect * t * math.Cos(t)
		dy := t * math.Sin(t)

		if math.Abs(dx) > float64(opts.Width) && math.Abs(dy) > float64(opts.Height) {
			return false
		}

		p.X = cx + int(math.Round(dx))
		p.Y = cy + int(math.Round(dy))

		if p.X < 0 || p.Y < 0 || p.X+p.W > opts.Width || p.Y+p.H > opts.Height {
			continue
		}

		if fits(*p, placed, opts.PadX, opts.PadY) {
			return true
		}
	}
}

func fits(p Placement, placed []Placement, padX, padY int) bool {
	for _, o := range placed {
		if p.overlaps(o, padX, padY) {
			return false
		}
	}

	return true
}
