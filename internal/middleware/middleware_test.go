package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/chat-auth/internal/config"
	"github.com/iliyamo/chat-auth/internal/logging"
	"github.com/iliyamo/chat-auth/internal/service"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func rlConfig(capacity int) config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       capacity,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "test:rl",
	}
}

func limitedEcho(mw echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.POST("/api/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, mw)
	return e
}

func post(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_Redis(t *testing.T) {
	mr, rdb := newRedis(t)
	e := limitedEcho(NewRateLimiter(rlConfig(2), rdb, logging.Discard()).Middleware())

	assert.Equal(t, http.StatusOK, post(e, "10.0.0.1").Code)
	rec := post(e, "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = post(e, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retry, 0)

	// other clients have their own bucket
	assert.Equal(t, http.StatusOK, post(e, "10.0.0.2").Code)
	assert.True(t, mr.Exists("test:rl:ip:10.0.0.1:route:POST /api/auth/login"))
}

func TestRateLimiter_LocalFallbackWithoutRedis(t *testing.T) {
	e := limitedEcho(NewRateLimiter(rlConfig(1), nil, logging.Discard()).Middleware())

	assert.Equal(t, http.StatusOK, post(e, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, post(e, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, post(e, "10.0.0.2").Code)
}

func TestRateLimiter_RedisOutageFallsBack(t *testing.T) {
	mr, rdb := newRedis(t)
	e := limitedEcho(NewRateLimiter(rlConfig(1), rdb, logging.Discard()).Middleware())
	mr.Close()

	assert.Equal(t, http.StatusOK, post(e, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, post(e, "10.0.0.1").Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	cfg := rlConfig(1)
	cfg.Enabled = false
	e := limitedEcho(NewRateLimiter(cfg, nil, logging.Discard()).Middleware())

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, post(e, "10.0.0.1").Code)
	}
}

func TestLocalLimiter_Refills(t *testing.T) {
	cfg := rlConfig(1)
	cfg.RefillInterval = time.Second
	l := newLocalLimiter(cfg)
	now := time.Now()

	assert.True(t, l.take("k", now).allowed)
	d := l.take("k", now)
	assert.False(t, d.allowed)
	assert.Greater(t, d.retry, time.Duration(0))
	assert.True(t, l.take("k", now.Add(1100*time.Millisecond)).allowed)
}

type stubVerifier struct{}

func (stubVerifier) VerifyAccess(token string) (string, error) {
	if token == "good" {
		return "user-1", nil
	}
	return "", service.ErrInvalidToken
}

func (stubVerifier) VerifyRefresh(string) (string, error) { return "", service.ErrInvalidRefreshToken }

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/p", func(c echo.Context) error { return c.String(http.StatusOK, UserID(c)) }, JWTAuth(stubVerifier{}))

	cases := []struct {
		header string
		code   int
		body   string
	}{
		{"", http.StatusUnauthorized, `{"error":"Access token required"}`},
		{"Basic abc", http.StatusUnauthorized, `{"error":"Access token required"}`},
		{"Bearer ", http.StatusUnauthorized, `{"error":"Access token required"}`},
		{"Bearer bad", http.StatusUnauthorized, `{"error":"Invalid token"}`},
		{"Bearer good", http.StatusOK, "user-1"},
		{"bearer good", http.StatusOK, "user-1"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		if tc.header != "" {
			req.Header.Set(echo.HeaderAuthorization, tc.header)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, tc.code, rec.Code, tc.header)
		if tc.code == http.StatusOK {
			assert.Equal(t, tc.body, rec.Body.String())
		} else {
			assert.JSONEq(t, tc.body, rec.Body.String())
		}
	}
}

func cachedEcho(t *testing.T, rdb *redis.Client, calls *atomic.Int32) *echo.Echo {
	t.Helper()
	cfg := config.CacheConfig{
		Enabled: true,
		Methods: map[string]bool{http.MethodGet: true},
		TTL:     time.Minute,
		Prefix:  "test:cache",
	}
	e := echo.New()
	e.GET("/api/me", func(c echo.Context) error {
		calls.Add(1)
		return c.JSON(http.StatusOK, echo.Map{"user": UserID(c)})
	}, JWTAuth(tokenPerUser{}), NewRedisCache(cfg, rdb))
	return e
}

// tokenPerUser treats the bearer value as the user id.
type tokenPerUser struct{}

func (tokenPerUser) VerifyAccess(token string) (string, error) { return token, nil }
func (tokenPerUser) VerifyRefresh(string) (string, error)      { return "", service.ErrInvalidRefreshToken }

func getMe(e *echo.Echo, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+user)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRedisCache_PerUser(t *testing.T) {
	_, rdb := newRedis(t)
	var calls atomic.Int32
	e := cachedEcho(t, rdb, &calls)

	first := getMe(e, "alice")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := getMe(e, "alice")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int32(1), calls.Load())

	bob := getMe(e, "bob")
	assert.Equal(t, "MISS", bob.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"user":"bob"}`, bob.Body.String())
	assert.Equal(t, int32(2), calls.Load())
}

func TestRedisCache_DisabledWithoutClient(t *testing.T) {
	var calls atomic.Int32
	e := cachedEcho(t, nil, &calls)

	getMe(e, "alice")
	rec := getMe(e, "alice")
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}
