package models

import "time"

// RateLimitWindow is one fixed counting window for an opaque key
// (e.g. "ingest:ip:10.0.0.1"). One active window per key at a time;
// a new window starts once the prior one's span has elapsed.
type RateLimitWindow struct {
	ID          int64     `json:"id" db:"id"`
	Key         string    `json:"key" db:"key"`
	Count       int       `json:"count" db:"count"`
	WindowStart time.Time `json:"window_start" db:"window_start"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
}
