// Package services – ProductService
//
// This file implements the cache-aside read path for the product catalog. A
// query is normalized, fingerprinted, and served from the cache when an entry
// exists; otherwise the catalog database is queried and the result is written
// back with a fixed TTL. Entries are never invalidated on writes, so a listing
// may be up to TTL stale.
//
// Concurrent misses for the same fingerprint are coalesced so that only one
// database query runs per key at a time. Cache read failures fall back to the
// database when FailOpen is set; cache write failures are logged and never
// surface to the caller.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/tbourn/go-catalog-cache/internal/cache"
	"github.com/tbourn/go-catalog-cache/internal/domain"
	"github.com/tbourn/go-catalog-cache/internal/repo"
)

var (
	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_requests_total",
			Help: "Product listing lookups by cache outcome (hit|miss|error).",
		},
		[]string{"result"},
	)
	storeQueries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_store_queries_total",
			Help: "Product listing queries executed against the catalog database.",
		},
	)
)

func init() {
	prometheus.MustRegister(cacheRequests, storeQueries)
}

// CatalogRepo defines the repository contract required by ProductService.
type CatalogRepo interface {
	// FindProducts applies f and returns matches ordered by id ascending.
	FindProducts(ctx context.Context, db *gorm.DB, f repo.ProductFilter) ([]domain.Product, error)
}

// QueryResult is a page of products and where it was served from.
type QueryResult struct {
	Products []domain.Product
	// Hit is true when the page came from the cache.
	Hit bool
}

// ProductService serves product listings through the cache.
type ProductService struct {
	// DB is the GORM handle of the catalog database.
	DB *gorm.DB
	// Repo runs catalog queries.
	Repo CatalogRepo
	// Cache holds serialized pages keyed by Fingerprint.
	Cache cache.Store

	// TTL bounds how stale a cached page may be.
	TTL time.Duration
	// DefaultLimit and MaxLimit shape the page size.
	DefaultLimit int
	MaxLimit     int
	// StoreTimeout bounds one catalog query; CacheTimeout bounds one cache call.
	StoreTimeout time.Duration
	CacheTimeout time.Duration
	// FailOpen serves from the database when the cache cannot be read.
	FailOpen bool

	group singleflight.Group
}

// NewProductService constructs a ProductService with the default TTL (300s),
// page sizes (10, max 100), timeouts, and fail-open cache reads.
func NewProductService(db *gorm.DB, r CatalogRepo, c cache.Store) *ProductService {
	return &ProductService{
		DB:           db,
		Repo:         r,
		Cache:        c,
		TTL:          300 * time.Second,
		DefaultLimit: domain.DefaultLimit,
		MaxLimit:     100,
		StoreTimeout: 5 * time.Second,
		CacheTimeout: 500 * time.Millisecond,
		FailOpen:     true,
	}
}

// Query returns the page of products matching q.
func (s *ProductService) Query(ctx context.Context, q domain.ProductQuery) (*QueryResult, error) {
	tr := otel.Tracer("services/ProductService")
	ctx, span := tr.Start(ctx, "Query")
	defer span.End()

	if err := validateQuery(q); err != nil {
		return nil, err
	}
	q = q.Normalize(s.DefaultLimit, s.MaxLimit)
	key := Fingerprint(q, s.DefaultLimit)
	span.SetAttributes(
		attribute.String("cache.key", key),
		attribute.Int("page.limit", q.Limit),
	)
	log := zerolog.Ctx(ctx).With().Str("cache_key", key).Logger()

	raw, ok, err := s.cacheGet(ctx, key)
	switch {
	case err != nil:
		cacheRequests.WithLabelValues("error").Inc()
		if !s.FailOpen {
			span.SetStatus(codes.Error, "cache read failed")
			return nil, fmt.Errorf("%w: cache read: %v", ErrStoreUnavailable, err)
		}
		log.Warn().Err(err).Msg("cache read failed; querying store directly")
	case ok:
		var items []domain.Product
		if jerr := json.Unmarshal([]byte(raw), &items); jerr == nil {
			cacheRequests.WithLabelValues("hit").Inc()
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return &QueryResult{Products: items, Hit: true}, nil
		}
		log.Warn().Msg("discarding undecodable cache entry")
		cacheRequests.WithLabelValues("miss").Inc()
	default:
		cacheRequests.WithLabelValues("miss").Inc()
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// A leader's cancellation must not fail callers sharing its result.
	lctx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.load(lctx, key, q)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store query failed")
		return nil, err
	}
	return &QueryResult{Products: v.([]domain.Product)}, nil
}

// load queries the catalog and writes the page back to the cache.
func (s *ProductService) load(ctx context.Context, key string, q domain.ProductQuery) ([]domain.Product, error) {
	sctx := ctx
	if s.StoreTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, s.StoreTimeout)
		defer cancel()
	}
	storeQueries.Inc()
	items, err := s.Repo.FindProducts(sctx, s.DB, filterFor(q))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode products: %w", err)
	}
	if err := s.cacheSet(ctx, key, string(b)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("cache_key", key).Msg("cache write failed")
	}
	return items, nil
}

func (s *ProductService) cacheGet(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := withTimeout(ctx, s.CacheTimeout)
	defer cancel()
	return s.Cache.Get(ctx, key)
}

func (s *ProductService) cacheSet(ctx context.Context, key, value string) error {
	ctx, cancel := withTimeout(ctx, s.CacheTimeout)
	defer cancel()
	return s.Cache.Set(ctx, key, value, s.TTL)
}

// filterFor maps a normalized query onto the repository predicate.
func filterFor(q domain.ProductQuery) repo.ProductFilter {
	return repo.ProductFilter{
		Category:     q.Category,
		NameContains: q.Search,
		MinPrice:     q.MinPrice,
		MaxPrice:     q.MaxPrice,
		AfterID:      q.Cursor,
		Limit:        q.Limit,
	}
}

func validateQuery(q domain.ProductQuery) error {
	for _, p := range []*float64{q.MinPrice, q.MaxPrice} {
		if p != nil && (math.IsNaN(*p) || math.IsInf(*p, 0)) {
			return fmt.Errorf("%w: price must be a finite number", ErrInvalidQuery)
		}
	}
	return nil
}

// withTimeout applies d when positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
