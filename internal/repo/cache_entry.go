// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the CacheEntry
// model, which lets the relational database act as a TTL key/value store with
// an atomic insert-if-absent primitive.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-catalog-cache/internal/domain"
)

// ErrDuplicate indicates that a live cache entry already exists for the key.
var ErrDuplicate = errors.New("duplicate")

// GetCacheEntry returns a non-expired entry or ErrNotFound.
func GetCacheEntry(ctx context.Context, db *gorm.DB, key string, now time.Time) (*domain.CacheEntry, error) {
	var rec domain.CacheEntry
	err := db.WithContext(ctx).
		Where("cache_key = ? AND expires_at > ?", key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutCacheEntry inserts or overwrites the entry for key.
func PutCacheEntry(ctx context.Context, db *gorm.DB, key, value string, ttl time.Duration, now time.Time) error {
	rec := &domain.CacheEntry{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "created_at", "expires_at"}),
	}).Create(rec).Error
}

// CreateCacheEntry inserts an entry only when no live entry exists for key and
// returns ErrDuplicate otherwise. An expired row for the key is removed first
// in the same transaction; the primary key decides concurrent races.
func CreateCacheEntry(ctx context.Context, db *gorm.DB, key, value string, ttl time.Duration, now time.Time) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cache_key = ? AND expires_at <= ?", key, now).
			Delete(&domain.CacheEntry{}).Error; err != nil {
			return err
		}
		rec := &domain.CacheEntry{
			Key:       key,
			Value:     value,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		if err := tx.Create(rec).Error; err != nil {
			if isDuplicate(err) {
				return ErrDuplicate
			}
			return err
		}
		return nil
	})
}

// DeleteExpiredCacheEntries removes every entry that expired at or before now
// and returns the number of rows deleted.
func DeleteExpiredCacheEntries(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.CacheEntry{})
	return res.RowsAffected, res.Error
}

// isDuplicate detects unique-constraint violations across drivers that may not
// map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key") ||
		strings.Contains(low, "duplicate entry")
}
