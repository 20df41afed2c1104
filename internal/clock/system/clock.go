// Package system supplies the wall-clock ingest.Clock used outside tests.
package system

import "time"

// Clock reads the system time. Every timestamp the pipeline stores is UTC,
// so Now normalizes before returning.
type Clock struct{}

// New returns a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
