package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestRateLimitAllowsWithinBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RateLimit(rate.Every(time.Minute), 5), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}

func TestRateLimitRejectsOverBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// 1/min with burst 2: the third request in quick succession must fail.
	r.GET("/x", RateLimit(rate.Every(time.Minute), 2), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("first two requests should pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", codes[2])
	}
}

func TestRateLimiterSweepsStaleBuckets(t *testing.T) {
	rl := newRateLimiter(rate.Every(time.Minute), 1, time.Millisecond)
	rl.gcEvery = 0
	rl.lastGC = time.Time{}

	rl.get("a")
	time.Sleep(5 * time.Millisecond)
	rl.get("b")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.m["a"]; ok {
		t.Error("stale bucket should be swept on the next access")
	}
	if _, ok := rl.m["b"]; !ok {
		t.Error("fresh bucket should survive the sweep")
	}
}

func TestRateLimitKeysByIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RateLimit(rate.Every(time.Minute), 1), func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodGet, "/x", nil)
	req1.RemoteAddr = "10.0.0.3:1234"
	r.ServeHTTP(first, req1)

	second := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/x", nil)
	req2.RemoteAddr = "10.0.0.4:1234"
	r.ServeHTTP(second, req2)

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Errorf("different IPs should not share a bucket: %d, %d", first.Code, second.Code)
	}
}
