package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fleximart/catalog-service/pkg/middleware"
	"github.com/golang-jwt/jwt/v5"
)

// unverifiedClaims exposes the payload of a token whose signature was not checked.
type unverifiedClaims jwt.MapClaims

func (c unverifiedClaims) Claims(v interface{}) error {
	return remarshal(map[string]interface{}(c), v)
}

// InsecureVerifier accepts any well-formed token that names a subject and is
// not expired, without checking its signature. main installs it only when
// ALLOW_INSECURE_TOKEN=true and no JWT secret or Keycloak realm is configured,
// so reviews can be posted against a local catalog.
type InsecureVerifier struct {
	now func() time.Time
}

func NewInsecureVerifier() *InsecureVerifier { return &InsecureVerifier{now: time.Now} }

func (v *InsecureVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("read reviewer token: %w", err)
	}
	if sub, _ := claims.GetSubject(); sub == "" {
		return nil, errors.New("reviewer token has no sub claim")
	}
	if exp, err := claims.GetExpirationTime(); err != nil {
		return nil, fmt.Errorf("reviewer token exp: %w", err)
	} else if exp != nil && !exp.After(v.now()) {
		return nil, errors.New("reviewer token expired")
	}
	return unverifiedClaims(claims), nil
}
