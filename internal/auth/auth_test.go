package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"dtr/internal/auth"
)

func noReqID(*http.Request) string { return "" }

func TestVerifyRoundTrip(t *testing.T) {
	v := auth.NewVerifier("s3cret", "idp")
	tok, err := v.Issue(auth.Identity{UserID: "u1", Email: "a@example.com", Name: "Alice"}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "u1", id.UserID)
	require.Equal(t, "Alice", id.DisplayName())

	_, err = auth.NewVerifier("other", "idp").Verify(tok)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = auth.NewVerifier("s3cret", "another-idp").Verify(tok)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyRejectsExpiredAndUnsigned(t *testing.T) {
	v := auth.NewVerifier("s3cret", "")
	tok, err := v.Issue(auth.Identity{UserID: "u1"}, -time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(tok)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(none)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	// без exp
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = v.Verify(noExp)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestDisplayNameFallback(t *testing.T) {
	require.Equal(t, "a@example.com", auth.Identity{UserID: "u1", Email: "a@example.com"}.DisplayName())
	require.Equal(t, "u1", auth.Identity{UserID: "u1", Name: "  "}.DisplayName())
}

func TestMiddleware(t *testing.T) {
	v := auth.NewVerifier("s3cret", "")
	tok, err := v.Issue(auth.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	h := auth.Middleware(v, noReqID)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(id.UserID))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "u1", rec.Body.String())

	// query-токен принимается только для websocket upgrade
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?access_token="+tok, nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/?access_token="+tok, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
