package domain

import "time"

type Presence struct {
	UserID   int64
	Online   bool
	LastSeen time.Time
}
