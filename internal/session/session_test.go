package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rtbecker76/universal-electronics2/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var customer = domain.Session{UserID: "u-1", CustomerID: 7, Email: "ada@test"}

func TestIssueValidate(t *testing.T) {
	tm := NewTokenManager("secret", "storefront")

	token, err := tm.Issue(customer, time.Hour)
	require.NoError(t, err)

	claims, err := tm.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, &customer, claims.Session())
	assert.NotEmpty(t, claims.ID)
}

func TestValidate_Rejects(t *testing.T) {
	tm := NewTokenManager("secret", "storefront")

	other, err := NewTokenManager("other", "storefront").Issue(customer, time.Hour)
	require.NoError(t, err)
	_, err = tm.Validate(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewTokenManager("secret", "elsewhere").Issue(customer, time.Hour)
	require.NoError(t, err)
	_, err = tm.Validate(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := tm.Issue(customer, -time.Minute)
	require.NoError(t, err)
	_, err = tm.Validate(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tm.Issue(domain.Session{}, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRedisRevoker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	r := NewRedisRevoker(client)
	ctx := context.Background()

	revoked, err := r.IsRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "jti", time.Now().Add(time.Hour)))
	revoked, err = r.IsRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Hour)
	revoked, err = r.IsRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func serve(t *testing.T, h http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	revoker := NewRedisRevoker(client)
	tm := NewTokenManager("secret", "storefront")

	var seen *domain.Session
	h := Middleware(tm, revoker, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := Provider{}.CurrentSession(r.Context())
		require.NoError(t, err)
		seen = s
	}))

	rec := serve(t, h, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unauthorized", body.Code)

	token, err := tm.Issue(customer, time.Hour)
	require.NoError(t, err)
	rec = serve(t, h, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", seen.UserID)

	claims, err := tm.Validate(token)
	require.NoError(t, err)
	require.NoError(t, revoker.Revoke(context.Background(), claims.ID, claims.ExpiresAt.Time))
	assert.Equal(t, http.StatusUnauthorized, serve(t, h, token).Code)

	mr.Close()
	fresh, err := tm.Issue(customer, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, h, fresh).Code)
}

func TestRequireRoles(t *testing.T) {
	tm := NewTokenManager("secret", "storefront")
	ok := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	auth := Middleware(tm, nil, zap.NewNop())

	adminToken, err := tm.Issue(domain.Session{UserID: "root", IsAdmin: true}, time.Hour)
	require.NoError(t, err)
	customerToken, err := tm.Issue(customer, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, serve(t, auth(RequireAdmin(ok)), adminToken).Code)
	assert.Equal(t, http.StatusForbidden, serve(t, auth(RequireAdmin(ok)), customerToken).Code)
	assert.Equal(t, http.StatusOK, serve(t, auth(RequireCustomer(ok)), customerToken).Code)
	assert.Equal(t, http.StatusForbidden, serve(t, auth(RequireCustomer(ok)), adminToken).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(t, RequireCustomer(ok), "").Code)
}

func TestProvider_NoSession(t *testing.T) {
	_, err := Provider{}.CurrentSession(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}
