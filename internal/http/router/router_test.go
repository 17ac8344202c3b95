package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apphttp "portal_insights_backend/internal/http"
	"portal_insights_backend/platform/httpkit"
	"portal_insights_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

type testConfig struct{}

func (testConfig) GetHTTPAddr() string        { return ":0" }
func (testConfig) GetCORSAllowAll() bool      { return false }
func (testConfig) GetCORSOrigins() []string   { return []string{"http://app.test"} }
func (testConfig) GetCORSAllowCreds() bool    { return true }
func (testConfig) GetJWTAccessSecret() string { return testSecret }

type pingModule struct{}

func (pingModule) Name() string { return "ping" }

func (pingModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/ping", func(c *gin.Context) {
		httpkit.OK(c, gin.H{"account": httpkit.MustGetIdentity(c).AccountID()})
	})
}

type checker struct{ err error }

func (c checker) Ping(context.Context) error { return c.err }

func newEngine(health map[string]apphttp.HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(&apphttp.App{
		Config:  testConfig{},
		Logger:  logger.Discard(),
		Health:  health,
		Modules: []apphttp.Module{pingModule{}},
	})
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func accessToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestHealthAndReadiness(t *testing.T) {
	engine := newEngine(map[string]apphttp.HealthChecker{
		"database": checker{},
		"redis":    checker{err: errors.New("connection refused")},
	})

	rec := serve(engine, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}

	rec = serve(engine, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "redis") {
		t.Fatalf("ready: expected 503 naming redis, got %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "database") {
		t.Fatal("healthy dependency reported as failed")
	}
}

func TestProtectedRoutesRequireAccessToken(t *testing.T) {
	engine := newEngine(nil)
	account := uuid.New()

	rec := serve(engine, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	refresh := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	refresh.Header.Set("Authorization", "Bearer "+accessToken(t, jwt.MapClaims{"sub": account.String(), "type": "refresh"}))
	if rec := serve(engine, refresh); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for refresh token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, jwt.MapClaims{
		"sub":  account.String(),
		"type": "access",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}))
	rec = serve(engine, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), account.String()) {
		t.Fatalf("expected 200 for access token, got %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id on the response")
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	engine := newEngine(nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/ping", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := serve(engine, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://app.test" {
		t.Fatalf("expected origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/ping", nil)
	req.Header.Set("Origin", "http://evil.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = serve(engine, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
