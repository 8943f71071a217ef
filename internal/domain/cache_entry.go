package domain

import "time"

// CacheEntry is a key/value row with an absolute expiry, used when the cache
// store is backed by the relational database instead of Redis/Valkey.
//
// The primary key on Key is what makes conditional inserts atomic: a second
// insert for a live key fails with a unique violation.
type CacheEntry struct {
	Key       string    `gorm:"column:cache_key;type:varchar(512);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (CacheEntry) TableName() string { return "cache_entries" }

// Expired reports whether the entry is no longer visible at now.
func (e CacheEntry) Expired(now time.Time) bool { return !now.Before(e.ExpiresAt) }
