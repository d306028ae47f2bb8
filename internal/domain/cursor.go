package domain

import "time"

// Cursor marks how much of the starred feed has been consumed. A zero
// LastSeen means no position has been established yet (cold start).
type Cursor struct {
	ETag     string
	LastSeen time.Time
}

// Advance returns the cursor moved forward to t. The position never
// regresses across polls.
func (c Cursor) Advance(t time.Time) Cursor {
	if t.After(c.LastSeen) {
		c.LastSeen = t
	}
	return c
}
