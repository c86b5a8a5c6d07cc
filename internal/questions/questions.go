/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package questions keeps the admin's list of previously asked questions.
//
// The on-disk format matches what the admin page keeps in browser local
// storage under the wordcloud_questions key:
//
//	[{"text": "Favourite editor?", "timestamp": "2026-10-18T09:30:00.000Z"}]
package questions

import (
	"fmt"
	"strings"
	"time"
)

// StorageKey is the local storage key used by the browser admin page.
const StorageKey = "wordcloud_questions"

type Question struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// List is an ordered question history. The zero value is empty and ready to use.
type List struct {
	items []Question
}

// NewList copies items into a new List.
func NewList(items []Question) *List {
	return &List{items: append([]Question(nil), items...)}
}

// Add appends text asked at now. Blank text is ignored and reported as false.
func (l *List) Add(text string, now time.Time) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	l.items = append(l.items, Question{Text: text, Timestamp: now.UTC()})
	return true
}

// Remove deletes the question at the zero-based index.
func (l *List) Remove(index int) (Question, error) {
	if index < 0 || index >= len(l.items) {
		return Question{}, fmt.Errorf("no question at position %d (have %d)", index+1, len(l.items))
	}

	removed := l.items[index]
	l.items = append(l.items[:index], l.items[index+1:]...)

	return removed, nil
}

// Get returns the question at the zero-based index.
func (l *List) Get(index int) (Question, error) {
	if index < 0 || index >= len(l.items) {
		return Question{}, fmt.Errorf("no question at position %d (have %d)", index+1, len(l.items))
	}

	return l.items[index], nil
}

// Clear empties the list and reports how many questions it held.
func (l *List) Clear() int {
	n := len(l.items)
	l.items = nil
	return n
}

func (l *List) Len() int {
	return len(l.items)
}

// Items returns a copy of the questions, oldest first.
func (l *List) Items() []Question {
	return append([]Question(nil), l.items...)
}

// FormatTimestamp renders t as hours and minutes in the local time zone.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format("15:04")
}
