package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is everything the rest of the application knows about a caller.
// ID is an opaque stable string issued by the identity provider.
type Identity struct {
	ID    string
	Email string
}

// Provider resolves a bearer credential to an Identity.
type Provider interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

type jwtProvider struct {
	secret []byte
}

// NewJWTProvider returns a Provider that accepts HS256 tokens signed with
// the shared secret of the hosted identity provider.
func NewJWTProvider(secret string) Provider {
	return &jwtProvider{secret: []byte(secret)}
}

func (p *jwtProvider) Resolve(_ context.Context, tokenStr string) (Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		// Some issuers put the subject under user_id instead.
		sub, _ = claims["user_id"].(string)
	}
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}

	email, _ := claims["email"].(string)

	return Identity{ID: sub, Email: email}, nil
}
