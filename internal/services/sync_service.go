package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tbourn/go-catalog-cache/internal/upstream"
)

// maxSyncBody caps the accepted upstream payload.
const maxSyncBody = 4 << 20

// SyncService performs the authenticated pull from the external API.
type SyncService struct {
	Tokens *TokenService
	Client *http.Client
	URL    string
	// Timeout bounds the whole call, token acquisition included.
	Timeout time.Duration
}

// NewSyncService returns a service with a 2s budget.
func NewSyncService(tokens *TokenService, client *http.Client, url string) *SyncService {
	return &SyncService{Tokens: tokens, Client: client, URL: url, Timeout: 2 * time.Second}
}

// Fetch obtains a token, then issues one GET to URL with a bearer token and
// returns the JSON body unchanged. Any failure, including the deadline,
// yields ErrUpstreamUnavailable. There is no retry.
func (s *SyncService) Fetch(ctx context.Context) (json.RawMessage, error) {
	tr := otel.Tracer("services/SyncService")
	ctx, span := tr.Start(ctx, "Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("upstream.url", s.URL))

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	body, err := s.fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "external sync failed")
		return nil, err
	}
	return body, nil
}

func (s *SyncService) fetch(ctx context.Context) (json.RawMessage, error) {
	tok, err := s.Tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxSyncBody))
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, &upstream.StatusError{URL: s.URL, Status: resp.StatusCode})
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxSyncBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstreamUnavailable, err)
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("%w: response is not valid JSON", ErrUpstreamUnavailable)
	}
	return json.RawMessage(b), nil
}
