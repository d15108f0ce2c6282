package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/api/courses", ok)
	r.POST("/api/webhooks/stripe/checkout", ok)
	return r
}

func send(r *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.7:4242"
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	r := newRouter(CORS([]string{"https://app.example.com/"}))

	w := send(r, http.MethodGet, "/api/courses", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Request-ID")

	w = send(r, http.MethodGet, "/api/courses", map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = send(r, http.MethodOptions, "/api/courses", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestSecure(t *testing.T) {
	r := newRouter(Secure())

	w := send(r, http.MethodGet, "/api/courses", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestRateLimiter_SkipsWebhooks(t *testing.T) {
	r := newRouter(RateLimiter(RateLimitOptions{
		MaxRequests:  2,
		Window:       time.Hour,
		SkipPrefixes: []string{"/api/webhooks/"},
	}))

	assert.Equal(t, http.StatusOK, send(r, http.MethodGet, "/api/courses", nil).Code)
	assert.Equal(t, http.StatusOK, send(r, http.MethodGet, "/api/courses", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, send(r, http.MethodGet, "/api/courses", nil).Code)

	// 处理方重投突发不受限流影响
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, send(r, http.MethodPost, "/api/webhooks/stripe/checkout", nil).Code)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	r := newRouter(RateLimiter(RateLimitOptions{MaxRequests: 0, Window: time.Minute}))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, send(r, http.MethodGet, "/api/courses", nil).Code)
	}
}
