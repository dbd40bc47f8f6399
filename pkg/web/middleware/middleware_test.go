package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWT(t *testing.T) *security.JWTManager {
	t.Helper()
	m, err := security.NewJWTManager(&security.JWTConfig{SecretKey: "test-secret"})
	require.NoError(t, err)
	return m
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, logger.RequestIDFromContext(c.Request.Context()))
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = serve(r, req)
	assert.Equal(t, "abc", w.Body.String())
}

func TestAuth(t *testing.T) {
	jm := newJWT(t)
	r := gin.New()
	r.Use(Auth(&AuthConfig{JWTManager: jm, SkipPaths: []string{"/healthz"}}))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/me", func(c *gin.Context) {
		assert.Equal(t, GetUserID(c), logger.UserIDFromContext(c.Request.Context()))
		c.String(http.StatusOK, GetUserID(c))
	})
	r.GET("/admin", RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/me", nil)).Code)

	bad := httptest.NewRequest(http.MethodGet, "/me", nil)
	bad.Header.Set("Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, serve(r, bad).Code)

	token, err := jm.GenerateToken(&security.Claims{UserID: "alice"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	adminToken, err := jm.GenerateToken(&security.Claims{UserID: "root", Roles: []string{"admin"}})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestRateLimitRejects(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	cfg.RequestsPerSecond = 1
	cfg.Burst = 2
	cfg.LimiterTTL = 0
	limiter := NewRateLimiter(logger.NewNoop(), cfg)
	defer limiter.Close()

	r := gin.New()
	r.Use(RateLimit(limiter))
	r.GET("/roll", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(r, httptest.NewRequest(http.MethodGet, "/roll", nil)).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	}
}

func TestRateLimitKeyPerUser(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "ip:10.0.0.1", rateLimitKey(c, cfg))

	c.Set(ClaimsKey, &security.Claims{UserID: "bob"})
	assert.Equal(t, "user:bob", rateLimitKey(c, cfg))
}

func TestGetClaimsFromRequestContext(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetUserID(c))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request = req.WithContext(security.SetClaimsToContext(req.Context(), &security.Claims{UserID: "carol"}))
	assert.Equal(t, "carol", GetUserID(c))

	c.Set(ClaimsKey, &security.Claims{UserID: "dave"})
	assert.Equal(t, "dave", GetUserID(c))
}

type fakeReporter struct {
	got interface{}
}

func (f *fakeReporter) RecoverWithContext(_ context.Context, recovered interface{}) *sentry.EventID {
	f.got = recovered
	return nil
}

func TestRecovery(t *testing.T) {
	reporter := &fakeReporter{}
	r := gin.New()
	r.Use(Recovery(logger.NewNoop(), reporter))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "boom", reporter.got)
}

func TestRateLimitWaitMode(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	cfg.RequestsPerSecond = 1
	cfg.Burst = 1
	cfg.WaitTimeout = 10 * time.Millisecond
	limiter := NewRateLimiter(logger.NewNoop(), cfg)
	defer limiter.Close()

	r := gin.New()
	r.Use(RateLimit(limiter))
	r.GET("/roll", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/roll", nil)).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, httptest.NewRequest(http.MethodGet, "/roll", nil)).Code)
}
