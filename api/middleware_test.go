package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"aegis/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRateLimitMiddleware(t *testing.T) {
	ta := setupTestAPI(t, func(cfg *config.Config) {
		cfg.API.RateLimit.RequestsPerSecond = 1
		cfg.API.RateLimit.Burst = 1
	})

	w := ta.do(t, "GET", "/api/health", nil)
	requireStatus(t, w, http.StatusOK)

	w = ta.do(t, "GET", "/api/health", nil)
	requireStatus(t, w, http.StatusTooManyRequests)
}

func TestCORSMiddleware(t *testing.T) {
	ta := setupTestAPI(t, nil)

	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	ta.api.Handler().ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w = httptest.NewRecorder()
	ta.api.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("OPTIONS", "/api/health", nil)
	w = httptest.NewRecorder()
	ta.api.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func setupAuthAPI(t *testing.T) *testAPI {
	hashed, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	return setupTestAPI(t, func(cfg *config.Config) {
		cfg.Auth.Enabled = true
		cfg.Auth.Username = "admin"
		cfg.Auth.HashedPassword = string(hashed)
	})
}

func TestBasicAuth(t *testing.T) {
	ta := setupAuthAPI(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	ta.api.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "missing credentials")

	req = httptest.NewRequest("GET", "/api/health", nil)
	req.SetBasicAuth("admin", "wrong")
	w = httptest.NewRecorder()
	ta.api.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "wrong password")

	req = httptest.NewRequest("GET", "/api/health", nil)
	req.SetBasicAuth("admin", "hunter2")
	w = httptest.NewRecorder()
	ta.api.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "valid credentials")
}

func TestBasicAuth_Lockout(t *testing.T) {
	ta := setupAuthAPI(t)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/api/health", nil)
		req.SetBasicAuth("admin", "wrong")
		w := httptest.NewRecorder()
		ta.api.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	// Sixth attempt from the same IP is locked out even with the right
	// password.
	req := httptest.NewRequest("GET", "/api/health", nil)
	req.SetBasicAuth("admin", "hunter2")
	w := httptest.NewRecorder()
	ta.api.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
