package helpers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenValidator verifies Supabase access tokens, either against the
// project's JWKS or with the shared HS256 secret.
type TokenValidator struct {
	secret []byte
	jwks   *keyfunc.JWKS
}

// NewTokenValidator prefers the JWKS endpoint when one is configured. The
// JWKS is refreshed in the background until ctx ends or Close is called.
func NewTokenValidator(ctx context.Context, jwksURL, secret string, logger *slog.Logger) (*TokenValidator, error) {
	v := &TokenValidator{secret: []byte(secret)}
	if jwksURL == "" {
		if secret == "" {
			return nil, errors.New("either a JWKS url or a JWT secret is required")
		}
		return v, nil
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Warn("jwks refresh failed", "url", jwksURL, "error", err)
		},
	})
	if err != nil {
		if secret == "" {
			return nil, fmt.Errorf("load jwks from %s: %w", jwksURL, err)
		}
		logger.Warn("jwks unavailable, using shared secret", "url", jwksURL, "error", err)
		return v, nil
	}
	v.jwks = jwks
	return v, nil
}

// NewSecretValidator verifies HS256 tokens only.
func NewSecretValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

func (v *TokenValidator) Validate(tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimSpace(strings.TrimPrefix(tokenStr, "Bearer "))
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}

	var keyFunc jwt.Keyfunc
	var methods []string
	if v.jwks != nil {
		keyFunc = v.jwks.Keyfunc
		methods = []string{"RS256", "ES256", "HS256"}
	} else {
		keyFunc = func(t *jwt.Token) (interface{}, error) {
			return v.secret, nil
		}
		methods = []string{"HS256"}
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, keyFunc,
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (v *TokenValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
