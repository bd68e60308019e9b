// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements crawler.Clock. Readings are UTC and truncated to the
// millisecond, the precision listings carry in scrapedAt.
type Clock struct{}

// New creates a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
