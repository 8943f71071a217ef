package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// EventProcessor handles an admitted webhook event. It is called at most once
// per event id within the admission window.
type EventProcessor interface {
	Process(ctx context.Context, eventID string, data json.RawMessage) error
}

// EventProcessorFunc adapts a function to EventProcessor.
type EventProcessorFunc func(ctx context.Context, eventID string, data json.RawMessage) error

// Process calls f.
func (f EventProcessorFunc) Process(ctx context.Context, eventID string, data json.RawMessage) error {
	return f(ctx, eventID, data)
}

// LogProcessor records the event in the request logger and does nothing else.
var LogProcessor = EventProcessorFunc(func(ctx context.Context, eventID string, data json.RawMessage) error {
	zerolog.Ctx(ctx).Info().
		Str("event_id", eventID).
		Int("data_bytes", len(data)).
		Msg("processing webhook event")
	return nil
})

// WebhookService admits events through the guard and hands new ones to the
// processor.
type WebhookService struct {
	Guard     *EventGuard
	Processor EventProcessor
}

// NewWebhookService wires g with LogProcessor.
func NewWebhookService(g *EventGuard) *WebhookService {
	return &WebhookService{Guard: g, Processor: LogProcessor}
}

// Ingest admits eventID and processes it when new. A processor error is
// returned to the caller but the admission record is kept, so a retried
// delivery is reported as AlreadyProcessed.
func (s *WebhookService) Ingest(ctx context.Context, eventID string, data json.RawMessage) (Admission, error) {
	id, err := ValidateEventID(eventID)
	if err != nil {
		return 0, err
	}
	adm, err := s.Guard.Admit(ctx, id)
	if err != nil {
		return 0, err
	}
	if adm != Admitted {
		return adm, nil
	}
	if s.Processor != nil {
		if err := s.Processor.Process(ctx, id, data); err != nil {
			return adm, fmt.Errorf("process event %s: %w", id, err)
		}
	}
	return adm, nil
}
