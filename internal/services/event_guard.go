package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-catalog-cache/internal/cache"
)

// MaxEventIDLen caps event ids in bytes.
const MaxEventIDLen = 200

// Admission is the outcome of EventGuard.Admit.
type Admission int

const (
	// Admitted means this caller recorded the event first and must process it.
	Admitted Admission = iota + 1
	// AlreadyProcessed means the event id was seen within the retention window.
	AlreadyProcessed
)

func (a Admission) String() string {
	switch a {
	case Admitted:
		return "admitted"
	case AlreadyProcessed:
		return "already_processed"
	default:
		return "unknown"
	}
}

// EventGuard deduplicates external events by id. The first caller to present
// an id within TTL is admitted; everyone else sees AlreadyProcessed. The
// record is written before processing, so delivery is at-most-once.
type EventGuard struct {
	Cache   cache.Store
	TTL     time.Duration
	Timeout time.Duration
}

// NewEventGuard returns a guard that remembers ids for 24h.
func NewEventGuard(c cache.Store) *EventGuard {
	return &EventGuard{Cache: c, TTL: 24 * time.Hour, Timeout: 500 * time.Millisecond}
}

// EventKey returns the cache key recording eventID.
func EventKey(eventID string) string { return EventKeyPrefix + eventID }

// ValidateEventID checks id is not blank and within MaxEventIDLen. The id is
// opaque and returned unchanged.
func ValidateEventID(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", ErrMissingEventID
	}
	if len(id) > MaxEventIDLen {
		return "", ErrInvalidEventID
	}
	return id, nil
}

// Admit atomically records eventID. Cache failures yield ErrStoreUnavailable;
// no event is admitted without a durable record.
func (g *EventGuard) Admit(ctx context.Context, eventID string) (Admission, error) {
	id, err := ValidateEventID(eventID)
	if err != nil {
		return 0, err
	}

	tr := otel.Tracer("services/EventGuard")
	ctx, span := tr.Start(ctx, "Admit")
	defer span.End()
	span.SetAttributes(attribute.String("event.id", id))

	cctx, cancel := withTimeout(ctx, g.Timeout)
	defer cancel()
	stored, err := g.Cache.SetNX(cctx, EventKey(id), "processed", g.TTL)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: record event: %v", ErrStoreUnavailable, err)
	}
	if !stored {
		span.SetAttributes(attribute.Bool("event.duplicate", true))
		return AlreadyProcessed, nil
	}
	return Admitted, nil
}

// Seen reports whether eventID has a live admission record. Unlike Admit it
// never writes.
func (g *EventGuard) Seen(ctx context.Context, eventID string) (bool, error) {
	id, err := ValidateEventID(eventID)
	if err != nil {
		return false, err
	}
	cctx, cancel := withTimeout(ctx, g.Timeout)
	defer cancel()
	_, ok, err := g.Cache.Get(cctx, EventKey(id))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}
