package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/appointmentbot/internal/config"
	"stealthcompany.com/appointmentbot/internal/ratelimit"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Env:             "development",
		StoreDriver:     config.DriverMemory,
		AllowedOrigins:  "*",
		RateLimitMax:    100,
		RateLimitWindow: 15 * time.Minute,
	}
}

func TestNewLimiterPrefersRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.RedisAddr = mr.Addr()

	limiter, err := newLimiter(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.RedisLimiter{}, limiter)
}

func TestNewLimiterFallsBackToMemory(t *testing.T) {
	cfg := memoryConfig()

	limiter, err := newLimiter(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.MemoryLimiter{}, limiter)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	cfg.RedisAddr = mr.Addr()
	mr.Close()

	limiter, err = newLimiter(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.MemoryLimiter{}, limiter)
}

func TestRouterServesMemoryBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.RateLimitEnabled = true

	handle, err := NewHandle(cfg)
	require.NoError(t, err)
	defer handle.Close(context.Background())
	require.NoError(t, EnsureSchema(context.Background(), handle))

	router, err := NewRouter(context.Background(), cfg, handle)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("RateLimit-Limit"))
}

func TestNewHandleRejectsUnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreDriver = "sqlite"

	_, err := NewHandle(cfg)
	assert.Error(t, err)
}
