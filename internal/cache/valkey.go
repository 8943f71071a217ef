package cache

import (
	"context"
	"fmt"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"
)

// Valkey is a Store backed by a Valkey (or Redis-compatible) server through
// valkey-go's command builder.
type Valkey struct {
	client valkeylib.Client
}

// NewValkey wraps an existing client.
func NewValkey(client valkeylib.Client) *Valkey {
	return &Valkey{client: client}
}

// DialValkey connects to addr and verifies the connection with PING.
func DialValkey(ctx context.Context, addr, password string, db int) (*Valkey, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{addr},
		SelectDB:    db,
	}
	if password != "" {
		opts.Password = password
	}
	client, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping valkey %s: %w", addr, err)
	}
	return NewValkey(client), nil
}

func (v *Valkey) Get(ctx context.Context, key string) (string, bool, error) {
	s, err := v.client.Do(ctx, v.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if valkeylib.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return s, true, nil
}

func (v *Valkey) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := checkTTL(ttl); err != nil {
		return err
	}
	cmd := v.client.B().Set().
		Key(key).
		Value(value).
		Px(ttl).
		Build()
	return v.client.Do(ctx, cmd).Error()
}

// SetNX issues SET key value NX PX ttl. A nil reply means the key existed.
func (v *Valkey) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := checkTTL(ttl); err != nil {
		return false, err
	}
	cmd := v.client.B().Set().
		Key(key).
		Value(value).
		Nx().
		Px(ttl).
		Build()
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		if valkeylib.IsValkeyNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("set nx %s: %w", key, err)
	}
	return true, nil
}

func (v *Valkey) Ping(ctx context.Context) error {
	return v.client.Do(ctx, v.client.B().Ping().Build()).Error()
}

func (v *Valkey) Close() error {
	v.client.Close()
	return nil
}
