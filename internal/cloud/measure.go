/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package cloud

import (
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// Cells measures words in terminal cells. Size does not change a word's
// footprint on a terminal; rotated words are drawn one rune per row.
func Cells(text string, _ int, rotated bool) (int, int) {
	if !rotated {
		return runewidth.StringWidth(text), 1
	}

	w := 0
	for _, r := range text {
		w = max(w, runewidth.RuneWidth(r))
	}

	return w, utf8.RuneCountInString(text)
}
