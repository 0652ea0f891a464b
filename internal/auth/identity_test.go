package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealrescue/marketplace/internal/auth"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTProvider_Resolve(t *testing.T) {
	provider := auth.NewJWTProvider(testSecret)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":   "user-123",
		"email": "someone@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	identity, err := provider.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", identity.ID)
	assert.Equal(t, "someone@example.com", identity.Email)
}

func TestJWTProvider_Resolve_UserIDClaimFallback(t *testing.T) {
	provider := auth.NewJWTProvider(testSecret)

	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "user-456",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	identity, err := provider.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-456", identity.ID)
}

func TestJWTProvider_Resolve_Rejections(t *testing.T) {
	provider := auth.NewJWTProvider(testSecret)

	testCases := []struct {
		name  string
		token string
	}{
		{name: "garbage token", token: "not-a-jwt"},
		{
			name: "wrong secret",
			token: signToken(t, "other-secret", jwt.MapClaims{
				"sub": "user-123",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
		},
		{
			name: "expired token",
			token: signToken(t, testSecret, jwt.MapClaims{
				"sub": "user-123",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
		},
		{
			name: "no subject",
			token: signToken(t, testSecret, jwt.MapClaims{
				"email": "someone@example.com",
				"exp":   time.Now().Add(time.Hour).Unix(),
			}),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := provider.Resolve(context.Background(), tc.token)
			assert.ErrorIs(t, err, auth.ErrUnauthenticated)
		})
	}
}

func TestMiddleware(t *testing.T) {
	provider := auth.NewJWTProvider(testSecret)
	validToken := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	var seen auth.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		require.True(t, ok)
		seen = id
		w.WriteHeader(http.StatusOK)
	})
	handler := auth.Middleware(provider)(next)

	testCases := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{name: "valid bearer token", header: "Bearer " + validToken, expectedStatus: http.StatusOK},
		{name: "missing header", header: "", expectedStatus: http.StatusUnauthorized},
		{name: "not a bearer scheme", header: "Basic dXNlcjpwYXNz", expectedStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bogus", expectedStatus: http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/orders/mine", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.expectedStatus, rec.Code)
			if tc.expectedStatus == http.StatusOK {
				assert.Equal(t, "user-123", seen.ID)
			}
		})
	}
}
