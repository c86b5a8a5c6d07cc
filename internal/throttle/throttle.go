/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package throttle limits how many words a single address may submit per window.
package throttle

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Limiter is a fixed-window counter keyed by client address.
// A nil Limiter, or one with a limit of zero, allows everything.
type Limiter struct {
	cache  *gocache.Cache
	limit  int
	window time.Duration
}

func New(limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}

	return &Limiter{
		cache:  gocache.New(window, 2*window),
		limit:  limit,
		window: window,
	}
}

// Allow records one submission for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	if l == nil || l.limit <= 0 {
		return true
	}

	// First hit in a window creates the counter; its expiry closes the window.
	if err := l.cache.Add(key, 1, l.window); err == nil {
		return true
	}

	n, err := l.cache.IncrementInt(key, 1)
	if err != nil {
		// expired between Add and IncrementInt
		return true
	}

	return n <= l.limit
}
