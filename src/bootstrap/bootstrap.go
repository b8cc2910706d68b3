package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marianofino/pocket-mqtt/src/security/crypto"
	"github.com/marianofino/pocket-mqtt/src/security/validation"
	"github.com/marianofino/pocket-mqtt/src/store"
)

// Service implements the tenant bootstrap protocol of §4.8.
type Service struct {
	tenants store.TenantStore
	pepper  crypto.Pepper
	limiter *ipLimiter
}

// New constructs a Service. ratePerMinute is the number of bootstrap
// attempts (successful or not) allowed per client IP per minute; 0 selects
// the default of 5.
func New(tenants store.TenantStore, pepper crypto.Pepper, ratePerMinute int) *Service {
	return &Service{
		tenants: tenants,
		pepper:  pepper,
		limiter: newIPLimiter(ratePerMinute),
	}
}

// Result is what a successful Bootstrap call returns.
type Result struct {
	ID     int64
	Name   string
	APIKey string
}

// Bootstrap checks the per-IP rate limit, validates name and token, and on
// success creates the tenant and returns its freshly generated API key.
// The rate limit is checked first, so every attempt counts against it (see
// ipLimiter.allow). Callers distinguish ErrMalformed, ErrUnauthorized,
// ErrAlreadyExists, and ErrRateLimited.
func (s *Service) Bootstrap(ctx context.Context, clientIP, name, token string) (*Result, error) {
	if !s.limiter.allow(clientIP) {
		return nil, ErrRateLimited
	}

	if err := validation.CheckName(name); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if err := verifyToken(token, name, s.pepper, time.Now()); err != nil {
		return nil, err
	}

	apiKey, err := crypto.GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate api key: %w", err)
	}

	t, err := s.tenants.Create(ctx, name, apiKey)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	return &Result{ID: t.ID, Name: t.Name, APIKey: t.APIKey}, nil
}
