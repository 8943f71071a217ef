package handlers

import (
	"context"
	"encoding/json"

	"github.com/tbourn/go-catalog-cache/internal/domain"
	"github.com/tbourn/go-catalog-cache/internal/services"
)

//
// Service contracts (context-aware)
//

// ProductService serves cached product listings.
type ProductService interface {
	Query(ctx context.Context, q domain.ProductQuery) (*services.QueryResult, error)
}

// WebhookService admits and processes external events.
type WebhookService interface {
	Ingest(ctx context.Context, eventID string, data json.RawMessage) (services.Admission, error)
}

// SyncService performs the authenticated upstream pull.
type SyncService interface {
	Fetch(ctx context.Context) (json.RawMessage, error)
}

// Check is a named readiness probe.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. Services are injected as interfaces.
type Handlers struct {
	products ProductService
	webhooks WebhookService
	sync     SyncService
	checks   []Check
}

// New constructs Handlers bound to the given services. Readiness checks are
// optional.
func New(products ProductService, webhooks WebhookService, sync SyncService, checks ...Check) *Handlers {
	return &Handlers{products: products, webhooks: webhooks, sync: sync, checks: checks}
}
