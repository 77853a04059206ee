package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTMaker_RoundTrip(t *testing.T) {
	maker := NewJWTMaker("secret")
	token, claims, err := maker.CreateToken("0xabc", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	got, err := maker.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", got.Subject)
	assert.Equal(t, claims.ID, got.ID)

	_, err = NewJWTMaker("other").VerifyToken(token)
	assert.Error(t, err)

	expired, _, err := maker.CreateToken("0xabc", -time.Minute)
	require.NoError(t, err)
	_, err = maker.VerifyToken(expired)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	maker := NewJWTMaker("secret")
	handler := AuthMiddleware(maker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trader, ok := TraderFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(trader))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := maker.CreateToken("0xabc", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0xabc", rec.Body.String())

	_, ok := TraderFromContext(req.Context())
	assert.False(t, ok)
}

func TestTraderClaims_HeaderForms(t *testing.T) {
	maker := NewJWTMaker("secret")
	token, _, err := maker.CreateToken("0xabc", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		err    error
	}{
		{"missing", "", ErrMissingAuthHeader},
		{"other scheme", "Token " + token, ErrBadAuthScheme},
		{"no token", "Bearer ", ErrBadAuthScheme},
		{"lowercase scheme", "bearer " + token, nil},
		{"canonical", "Bearer " + token, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			claims, err := traderClaims(req, maker)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "0xabc", claims.Subject)
		})
	}
}

func TestAuthMiddleware_UnauthorizedBody(t *testing.T) {
	handler := AuthMiddleware(NewJWTMaker("secret"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(http.StatusUnauthorized), body["status"])
	assert.Contains(t, body["message"], "invalid token")
}

func TestClaimsFromContext(t *testing.T) {
	_, ok := ClaimsFromContext(context.Background())
	assert.False(t, ok)

	claims, err := NewTraderClaims("0xabc", time.Hour)
	require.NoError(t, err)
	got, ok := ClaimsFromContext(WithClaims(context.Background(), claims))
	require.True(t, ok)
	assert.Same(t, claims, got)
}
