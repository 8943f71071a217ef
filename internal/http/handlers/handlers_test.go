package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-catalog-cache/internal/cache"
	"github.com/tbourn/go-catalog-cache/internal/domain"
	"github.com/tbourn/go-catalog-cache/internal/http/middleware"
	"github.com/tbourn/go-catalog-cache/internal/repo"
	"github.com/tbourn/go-catalog-cache/internal/services"
)

// ---------- test DB + repo shim ----------

func newCatalogDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:catalog_handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Product{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	items := []domain.Product{
		{Name: "Apple", Price: 1.5, Category: "Fruits"},
		{Name: "Carrot", Price: 0.8, Category: "Vegetables"},
		{Name: "Banana", Price: 0.5, Category: "Fruits"},
	}
	if err := repo.CreateProducts(context.Background(), db, items, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

// countingCatalog proxies repo.FindProducts like the router shim does.
type countingCatalog struct{ calls atomic.Int32 }

func (r *countingCatalog) FindProducts(ctx context.Context, db *gorm.DB, f repo.ProductFilter) ([]domain.Product, error) {
	r.calls.Add(1)
	return repo.FindProducts(ctx, db, f)
}

// ---------- stubs ----------

type stubSync struct {
	body json.RawMessage
	err  error
}

func (s stubSync) Fetch(context.Context) (json.RawMessage, error) { return s.body, s.err }

type stubProducts struct {
	res *services.QueryResult
	err error
}

func (s stubProducts) Query(context.Context, domain.ProductQuery) (*services.QueryResult, error) {
	return s.res, s.err
}

// ---------- fixture ----------

type fixture struct {
	router  *gin.Engine
	catalog *countingCatalog
	events  atomic.Int32
}

// newFixture wires real product and webhook services over sqlite and the
// memory cache.
func newFixture(t *testing.T, sync SyncService, checks ...Check) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{catalog: &countingCatalog{}}
	mem := cache.NewMemory()
	products := services.NewProductService(newCatalogDB(t), f.catalog, mem)
	webhooks := &services.WebhookService{
		Guard: services.NewEventGuard(mem),
		Processor: services.EventProcessorFunc(func(context.Context, string, json.RawMessage) error {
			f.events.Add(1)
			return nil
		}),
	}

	h := New(products, webhooks, sync, checks...)
	r := gin.New()
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.GET("/products", h.ListProducts)
	r.POST("/webhook", h.ReceiveWebhook)
	r.GET("/external-sync", h.ExternalSync)
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	f.router = r
	return f
}

func (f *fixture) do(method, target, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return er
}
