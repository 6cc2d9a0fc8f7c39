package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Validator parses and validates tokens minted by the hosted auth
// provider against its published JWKS.
type Validator struct {
	JWKSURL   string
	Issuer    string
	Audience  string
	ClockSkew time.Duration

	cache *jwk.Cache
}

// NewValidator registers the JWKS endpoint with a refreshing cache.
// The cache refetches keys in the background so rotation never takes
// the API down.
func NewValidator(ctx context.Context, jwksURL, issuer, audience string) (*Validator, error) {
	if strings.TrimSpace(jwksURL) == "" {
		return nil, errors.New("auth: JWKS URL is required")
	}
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("auth: register JWKS: %w", err)
	}
	return &Validator{
		JWKSURL:   jwksURL,
		Issuer:    issuer,
		Audience:  audience,
		ClockSkew: 30 * time.Second,
		cache:     cache,
	}, nil
}

// ParseToken verifies the signature against the cached key set and
// validates issuer, audience and expiry. It returns the subject email.
func (v *Validator) ParseToken(ctx context.Context, raw string) (string, error) {
	if v == nil || v.cache == nil {
		return "", errors.New("auth: validator not configured")
	}
	keySet, err := v.cache.Get(ctx, v.JWKSURL)
	if err != nil {
		return "", fmt.Errorf("auth: fetch JWKS: %w", err)
	}
	options := []jwt.ParseOption{
		jwt.WithKeySet(keySet),
		jwt.WithValidate(true),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	tok, err := jwt.ParseString(raw, options...)
	if err != nil {
		return "", fmt.Errorf("auth: parse token: %w", err)
	}
	email := claimString(tok, "email")
	if email == "" {
		email = tok.Subject()
	}
	if email == "" {
		return "", errors.New("auth: token carries no identity")
	}
	return strings.ToLower(email), nil
}

func claimString(tok jwt.Token, name string) string {
	if raw, ok := tok.Get(name); ok {
		if s, ok := raw.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
