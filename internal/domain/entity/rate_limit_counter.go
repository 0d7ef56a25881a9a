package entity

import "time"

// RateLimitCounter is a per-identity fixed-window counter. The identity is a
// hashed client IP; the counter resets entirely when the window expires.
type RateLimitCounter struct {
	IdentityHash string    `gorm:"primaryKey;size:16" json:"identity_hash"`
	Count        int       `gorm:"not null;default:0" json:"count"`
	WindowStart  time.Time `gorm:"not null;index" json:"window_start"`
}

func (RateLimitCounter) TableName() string {
	return "rate_limit_counters"
}

// IsWindowExpired reports whether the current window has elapsed and the
// counter should be reset on the next request.
func (c *RateLimitCounter) IsWindowExpired(now time.Time, window time.Duration) bool {
	return now.Sub(c.WindowStart) >= window
}
