package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyFuncs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var byIP, byRoute string
	r.GET("/products", func(c *gin.Context) {
		byIP = KeyByClientIP()(c)
		byRoute = KeyByRouteAndIP()(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if byIP != "ip:203.0.113.9" {
		t.Fatalf("KeyByClientIP = %q", byIP)
	}
	if byRoute != "/products|ip:203.0.113.9" {
		t.Fatalf("KeyByRouteAndIP = %q", byRoute)
	}
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(2, 0, nil)
	if rl.burst != 1 {
		t.Fatalf("burst = %d; want 1", rl.burst)
	}
	if rl.keyFn == nil {
		t.Fatalf("nil keyFn must default to client ip")
	}
	lim := rl.limiterFor("k1")
	if rl.limiterFor("k1") != lim {
		t.Fatalf("bucket must be reused for the same key")
	}
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, nil)
	rl.now = func() time.Time { return now }

	rl.limiterFor("stale")
	now = now.Add(rl.ttl)
	for i := 0; i < sweepEvery-2; i++ {
		rl.limiterFor("fresh")
	}
	if rl.Len() != 2 {
		t.Fatalf("sweep ran early: %d buckets", rl.Len())
	}
	rl.limiterFor("fresh")
	if rl.Len() != 1 {
		t.Fatalf("stale bucket survived the sweep: %d buckets", rl.Len())
	}
}

func newLimitedEngine(rl *RateLimiter, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(pre...)
	r.Use(RequestID(), rl.Handler())
	r.GET("/products", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimiter_Handler429(t *testing.T) {
	r := newLimitedEngine(NewRateLimiter(0.5, 1, KeyByClientIP()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first request = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d; want 429", w.Code)
	}
	if ra, _ := strconv.Atoi(w.Header().Get("Retry-After")); ra != 2 {
		t.Fatalf("Retry-After = %q; want 2", w.Header().Get("Retry-After"))
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "too_many_requests" || body["request_id"] == "" {
		t.Fatalf("body = %v", body)
	}
}

func TestRateLimiter_BypassForReplays(t *testing.T) {
	markReplay := func(c *gin.Context) { c.Set(ctxKeyRateBypass, true); c.Next() }
	r := newLimitedEngine(NewRateLimiter(0.001, 1, KeyByClientIP()), markReplay)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("replay %d = %d; want 200", i, w.Code)
		}
	}
}

func TestIsRateBypass_WrongType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if IsRateBypass(c) {
		t.Fatalf("unset flag must be false")
	}
	c.Set(ctxKeyRateBypass, "yes")
	if IsRateBypass(c) {
		t.Fatalf("non-bool flag must be false")
	}
}
