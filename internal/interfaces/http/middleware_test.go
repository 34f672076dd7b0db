package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func protectedRouter(m *Middleware) *gin.Engine {
	r := gin.New()
	r.GET("/admin", m.AuthRequired(), m.AdminRequired(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("username"))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	m := NewMiddleware(testSecret)
	r := protectedRouter(m)
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong secret", signed(t, "other", jwt.MapClaims{"sub": "a", "role": "admin", "exp": exp}), http.StatusUnauthorized},
		{"expired", signed(t, testSecret, jwt.MapClaims{"sub": "a", "role": "admin", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		{"no expiry", signed(t, testSecret, jwt.MapClaims{"sub": "a", "role": "admin"}), http.StatusUnauthorized},
		{"not admin", signed(t, testSecret, jwt.MapClaims{"sub": "a", "role": "viewer", "exp": exp}), http.StatusForbidden},
		{"admin", signed(t, testSecret, jwt.MapClaims{"sub": "a", "role": "admin", "exp": exp}), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuthMiddlewareWithoutSecret(t *testing.T) {
	r := protectedRouter(NewMiddleware(""))
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidConfigKey("welcome_message"))
	assert.False(t, ValidConfigKey(""))
	assert.False(t, ValidConfigKey("drop table;"))

	assert.Equal(t, "ab", SanitizeString("a\x00b"))
	assert.Equal(t, "ok", SanitizeString("o\xffk"))

	assert.True(t, ValidateLength("héllo", 1, 5))
	assert.False(t, ValidateLength("", 1, 5))
}

func TestRateLimitPerClientDropsIdleClients(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMiddleware(testSecret)
	m.now = func() time.Time { return clock }
	m.lastSweep = clock

	r := gin.New()
	r.GET("/limited", m.RateLimitPerClient(rate.Limit(1), 1), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.RemoteAddr = ip + ":40000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		require.Equal(t, http.StatusOK, hit(ip))
	}
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, 3, m.TrackedClients())

	// only 10.0.0.3 stays active
	clock = clock.Add(6 * time.Minute)
	require.Equal(t, http.StatusOK, hit("10.0.0.3"))
	clock = clock.Add(5 * time.Minute)
	require.Equal(t, http.StatusOK, hit("10.0.0.3"))

	assert.Equal(t, 1, m.TrackedClients())
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"), "a returning client starts with a fresh bucket")
	assert.Equal(t, 2, m.TrackedClients())
}
