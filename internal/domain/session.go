package domain

import "time"

// Session represents a live login session held in memory by the session
// registry. Sessions do not survive a process restart.
type Session struct {
	User     string // lowercase account name
	Token    string // opaque random identifier
	IssuedAt time.Time
}
