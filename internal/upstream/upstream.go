// Package upstream contains the outbound side of the service: the HTTP client
// used for third-party calls and the issuers that obtain access tokens for
// them.
//
// Clients are instrumented with otelhttp so outbound requests join the
// caller's trace. No call is retried; callers bound every request with a
// context deadline.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/tbourn/go-catalog-cache/internal/config"
)

// ErrNoToken is returned when an issuer response carries no access token.
var ErrNoToken = errors.New("upstream: empty access token")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: %s returned status %d", e.URL, e.Status)
}

// NewHTTPClient returns a client whose transport is traced with otelhttp and
// whose requests are capped at timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "HTTP " + r.Method + " " + r.URL.Host
			}),
		),
	}
}

// TokenIssuer obtains a fresh access token.
type TokenIssuer interface {
	IssueToken(ctx context.Context) (string, error)
}

// StaticIssuer always returns the configured token.
type StaticIssuer struct {
	Token string
}

// IssueToken returns s.Token, or ErrNoToken when it is blank.
func (s StaticIssuer) IssueToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(s.Token) == "" {
		return "", ErrNoToken
	}
	return s.Token, nil
}

// ClientCredentialsIssuer performs an OAuth2 client-credentials grant
// against TokenURL with the client credentials sent as HTTP basic auth.
// Client, when set, carries the request so the grant is traced.
type ClientCredentialsIssuer struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Client       *http.Client
}

// IssueToken runs the grant and returns the access token. A non-2xx answer
// from the token endpoint is reported as *StatusError.
func (c *ClientCredentialsIssuer) IssueToken(ctx context.Context) (string, error) {
	cc := clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	if c.Client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.Client)
	}

	tok, err := cc.Token(ctx)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return "", &StatusError{URL: c.TokenURL, Status: re.Response.StatusCode}
		}
		return "", fmt.Errorf("token request: %w", err)
	}
	if strings.TrimSpace(tok.AccessToken) == "" {
		return "", ErrNoToken
	}
	return tok.AccessToken, nil
}

// NewIssuer picks the client-credentials issuer when a token URL is
// configured and the static issuer otherwise.
func NewIssuer(cfg config.UpstreamConfig, client *http.Client) TokenIssuer {
	if strings.TrimSpace(cfg.TokenURL) != "" {
		return &ClientCredentialsIssuer{
			TokenURL:     cfg.TokenURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Client:       client,
		}
	}
	return StaticIssuer{Token: cfg.StaticToken}
}
