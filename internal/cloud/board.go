/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package cloud accumulates submitted words and lays them out as a word cloud.
package cloud

import "github.com/Seednode/blindboard/internal/relay"

// Board is the display-side state: the current question and every word
// submitted since it was asked.
type Board struct {
	question string
	words    []string
}

// Apply folds one relayed event into the board and reports whether anything changed.
// A question always resets the words, even when it repeats the previous one.
func (b *Board) Apply(e relay.Event) bool {
	switch e.Event {
	case relay.QuestionEvent:
		b.question = e.Data
		b.words = nil
		return true
	case relay.WordEvent:
		b.words = append(b.words, e.Data)
		return true
	}

	return false
}

func (b *Board) Question() string {
	return b.question
}

// Words returns a copy of the words in arrival order.
func (b *Board) Words() []string {
	return append([]string(nil), b.words...)
}

func (b *Board) Len() int {
	return len(b.words)
}
