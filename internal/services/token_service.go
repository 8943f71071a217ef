package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-catalog-cache/internal/cache"
	"github.com/tbourn/go-catalog-cache/internal/upstream"
)

// TokenService caches the upstream access token under TokenKey. Concurrent
// misses share a single issuer call.
type TokenService struct {
	Cache  cache.Store
	Issuer upstream.TokenIssuer

	// TTL is how long a token is reused; keep it below the issuer's expiry.
	TTL time.Duration
	// IssueTimeout bounds one issuer call; CacheTimeout one cache call.
	IssueTimeout time.Duration
	CacheTimeout time.Duration

	group singleflight.Group
}

// NewTokenService returns a service caching tokens for one hour.
func NewTokenService(c cache.Store, iss upstream.TokenIssuer) *TokenService {
	return &TokenService{
		Cache:        c,
		Issuer:       iss,
		TTL:          time.Hour,
		IssueTimeout: 2 * time.Second,
		CacheTimeout: 500 * time.Millisecond,
	}
}

// GetToken returns the cached token or obtains and caches a new one. A cache
// read failure is treated as a miss; issuer failures yield
// ErrUpstreamUnavailable.
func (s *TokenService) GetToken(ctx context.Context) (string, error) {
	log := zerolog.Ctx(ctx)

	cctx, cancel := withTimeout(ctx, s.CacheTimeout)
	tok, ok, err := s.Cache.Get(cctx, TokenKey)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("token cache read failed")
	} else if ok && tok != "" {
		return tok, nil
	}

	ch := s.group.DoChan(TokenKey, func() (any, error) {
		ictx, cancel := withTimeout(context.WithoutCancel(ctx), s.IssueTimeout)
		defer cancel()
		tok, err := s.Issuer.IssueToken(ictx)
		if err != nil {
			return "", fmt.Errorf("%w: issue token: %v", ErrUpstreamUnavailable, err)
		}

		wctx, wcancel := withTimeout(context.WithoutCancel(ctx), s.CacheTimeout)
		defer wcancel()
		if err := s.Cache.Set(wctx, TokenKey, tok, s.TTL); err != nil {
			log.Warn().Err(err).Msg("token cache write failed")
		}
		return tok, nil
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}
