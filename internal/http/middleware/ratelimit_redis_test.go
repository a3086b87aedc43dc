package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func hit(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRedisRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	window := 2 * time.Second
	limit := 2

	r := gin.New()
	r.GET("/test", RedisRateLimit(rdb, limit, window), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < limit; i++ {
		require.Equal(t, http.StatusOK, hit(r, "").Code)
	}
	w := hit(r, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))

	mr.FastForward(window + time.Second)
	assert.Equal(t, http.StatusOK, hit(r, "").Code)
}

func TestRedisRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	r := gin.New()
	r.GET("/test", RedisRateLimit(rdb, 1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		w := hit(r, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "redis-error", w.Header().Get("X-RateLimit-Error"))
	}
}

func TestInProcessFallback(t *testing.T) {
	r := gin.New()
	r.GET("/test", RedisRateLimit(nil, 1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, hit(r, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "").Code)
}

func TestUserRateLimitKeysByUser(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tokens := service.NewTokenIssuer("rl-secret", time.Minute, time.Hour)
	alice, err := tokens.Issue(1)
	require.NoError(t, err)
	bob, err := tokens.Issue(2)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/test", JWT(tokens), UserRateLimit(rdb, 1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, hit(r, "Bearer "+alice.Access).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "Bearer "+alice.Access).Code)
	// same IP, different user
	assert.Equal(t, http.StatusOK, hit(r, "Bearer "+bob.Access).Code)
}
