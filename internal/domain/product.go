// Package domain defines the persistence models and request shapes shared by
// the repository, cache, and service layers. Models are mapped with GORM.
package domain

import "time"

// Product is a single catalog row.
//
// Fields:
//   - ID: autoincrement primary key assigned by the store. It is immutable and
//     strictly increasing in insertion order, which makes it the pagination cursor.
//   - Name: non-empty display name; indexed for substring search.
//   - Price: non-negative unit price.
//   - Category: one of a small open set (e.g. "Fruits", "Dairy"); indexed.
//   - Description: free text.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//
// JSON field names match the payloads already stored in shared caches, so
// entries written by other deployments decode unchanged.
type Product struct {
	ID          uint64    `json:"id"          gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name"        gorm:"type:varchar(255);not null;index:idx_products_name"`
	Price       float64   `json:"price"       gorm:"not null;check:chk_products_price,price >= 0"`
	Category    string    `json:"category"    gorm:"type:varchar(64);index:idx_products_category"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }
