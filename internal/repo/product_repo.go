// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Product
// catalog.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They follow
// the "thin repository" approach: query composition only, no caching and no
// business rules.
//
// Functions:
//
//   - FindProducts(ctx, db, filter) -> []domain.Product, error
//     Applies a ProductFilter, ordered by id ascending, capped at filter.Limit.
//
//   - CreateProducts(ctx, db, items) -> error
//     Inserts products in batches; ids are assigned by the store.
//
//   - GetProduct(ctx, db, id) -> *domain.Product, error
//     Fetches one product or ErrNotFound.
package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-catalog-cache/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience.
var ErrNotFound = gorm.ErrRecordNotFound

// ProductFilter is the store-level predicate for a catalog query. A nil field
// contributes no condition.
type ProductFilter struct {
	Category     *string  // category = ?
	NameContains *string  // name LIKE %?%
	MinPrice     *float64 // price >= ?
	MaxPrice     *float64 // price <= ?
	AfterID      *uint64  // id > ?
	Limit        int      // LIMIT; <= 0 means no limit
}

// likeEscape is the ESCAPE character used for LIKE patterns. '!' avoids the
// backslash quoting differences between MySQL and the other dialects.
const likeEscape = "!"

var likeReplacer = strings.NewReplacer(
	likeEscape, likeEscape+likeEscape,
	"%", likeEscape+"%",
	"_", likeEscape+"_",
)

// containsPattern turns s into a LIKE pattern matching s literally anywhere.
func containsPattern(s string) string {
	return "%" + likeReplacer.Replace(s) + "%"
}

// FindProducts returns the products matching f ordered by id ascending.
// It returns an empty (non-nil) slice when nothing matches.
func FindProducts(ctx context.Context, db *gorm.DB, f ProductFilter) ([]domain.Product, error) {
	q := db.WithContext(ctx).Model(&domain.Product{})

	if f.Category != nil {
		q = q.Where("category = ?", *f.Category)
	}
	if f.NameContains != nil {
		q = q.Where("name LIKE ? ESCAPE '"+likeEscape+"'", containsPattern(*f.NameContains))
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	if f.AfterID != nil {
		q = q.Where("id > ?", *f.AfterID)
	}

	q = q.Order("id ASC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	out := make([]domain.Product, 0)
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CreateProducts inserts items in batches of batchSize (<= 0 means 1000).
// Assigned ids are written back into items.
func CreateProducts(ctx context.Context, db *gorm.DB, items []domain.Product, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return db.WithContext(ctx).CreateInBatches(&items, batchSize).Error
}

// GetProduct fetches a product by id, or ErrNotFound if missing.
func GetProduct(ctx context.Context, db *gorm.DB, id uint64) (*domain.Product, error) {
	var p domain.Product
	if err := db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
