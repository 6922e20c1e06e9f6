package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		opt    SecurityOptions
		prep   func(*http.Request)
		expose string // preset Access-Control-Expose-Headers
		want   map[string]string
	}{
		{
			name: "baseline",
			want: map[string]string{
				"X-Content-Type-Options":            "nosniff",
				"X-Frame-Options":                   "DENY",
				"Referrer-Policy":                   "no-referrer",
				"Permissions-Policy":                "",
				"Cache-Control":                     "",
				"Strict-Transport-Security":         "",
				"Access-Control-Expose-Headers":     "X-Request-ID",
				"X-Permitted-Cross-Domain-Policies": "",
			},
		},
		{
			name: "queue views: policy, no-store and hsts over tls",
			opt:  SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour, NoStore: true, EnablePolicy: true},
			prep: func(r *http.Request) { r.TLS = &tls.ConnectionState{} },
			want: map[string]string{
				"X-Permitted-Cross-Domain-Policies": "none",
				"Cache-Control":                     "no-store",
				"Pragma":                            "no-cache",
				"Expires":                           "0",
				"Strict-Transport-Security":         "max-age=86400; includeSubDomains; preload",
			},
		},
		{
			name: "default max-age behind a proxy",
			opt:  SecurityOptions{EnableHSTS: true},
			prep: func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "HTTPS") },
			want: map[string]string{"Strict-Transport-Security": "max-age=15552000; includeSubDomains; preload"},
		},
		{
			name: "no hsts over plain http",
			opt:  SecurityOptions{EnableHSTS: true},
			want: map[string]string{"Strict-Transport-Security": ""},
		},
		{
			name:   "appends to cors expose list",
			expose: "Idempotency-Replayed",
			want:   map[string]string{"Access-Control-Expose-Headers": "Idempotency-Replayed, X-Request-ID"},
		},
		{
			name:   "no duplicate expose entry",
			expose: "X-Request-ID, Idempotency-Replayed",
			want:   map[string]string{"Access-Control-Expose-Headers": "X-Request-ID, Idempotency-Replayed"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(func(c *gin.Context) {
				c.Header(requestIDHeader, "rid-123")
				if tc.expose != "" {
					c.Header("Access-Control-Expose-Headers", tc.expose)
				}
				c.Next()
			})
			r.Use(SecurityHeaders(tc.opt))
			r.GET("/queue/stats", func(c *gin.Context) { c.String(http.StatusOK, "{}") })

			req := httptest.NewRequest(http.MethodGet, "/queue/stats", nil)
			if tc.prep != nil {
				tc.prep(req)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			for k, v := range tc.want {
				if got := w.Header().Get(k); got != v {
					t.Errorf("%s = %q; want %q", k, got, v)
				}
			}
		})
	}
}

func TestSecurityHeaders_NoRequestIDNoExpose(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(SecurityOptions{}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "" {
		t.Fatalf("unexpected expose header %q", got)
	}
}
