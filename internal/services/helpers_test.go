package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-catalog-cache/internal/domain"
	"github.com/tbourn/go-catalog-cache/internal/repo"
)

// ---------- test helpers ----------

func newCatalogDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:catalog_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Product{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// seedScenario inserts products 1,2,3 in categories Fruits, Vegetables, Fruits.
func seedScenario(t *testing.T, db *gorm.DB) {
	t.Helper()
	items := []domain.Product{
		{Name: "Apple", Price: 1.5, Category: "Fruits"},
		{Name: "Carrot", Price: 0.8, Category: "Vegetables"},
		{Name: "Banana", Price: 0.5, Category: "Fruits"},
	}
	if err := repo.CreateProducts(context.Background(), db, items, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for i, p := range items {
		if p.ID != uint64(i+1) {
			t.Fatalf("expected id %d, got %d", i+1, p.ID)
		}
	}
}

// countingRepo proxies repo.FindProducts and counts calls. When gate is set,
// each call blocks until it is closed.
type countingRepo struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (r *countingRepo) FindProducts(ctx context.Context, db *gorm.DB, f repo.ProductFilter) ([]domain.Product, error) {
	r.calls.Add(1)
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return repo.FindProducts(ctx, db, f)
}

var errCacheDown = errors.New("cache down")

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (string, bool, error) { return "", false, errCacheDown }
func (brokenCache) Set(context.Context, string, string, time.Duration) error {
	return errCacheDown
}
func (brokenCache) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, errCacheDown
}
func (brokenCache) Ping(context.Context) error { return errCacheDown }
func (brokenCache) Close() error              { return nil }

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func productIDs(ps []domain.Product) []uint64 {
	out := make([]uint64, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func equalIDs(a []uint64, b ...uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
