package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func secured(opt SecurityOptions, pre gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/api/v1/deliveries", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestSecurityHeaders(t *testing.T) {
	https := func(r *http.Request) { r.TLS = &tls.ConnectionState{} }
	proxied := func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "HTTPS") }

	tests := []struct {
		name string
		opt  SecurityOptions
		req  func(*http.Request)
		want map[string]string // "" means the header must be absent
	}{
		{
			name: "baseline only",
			opt:  SecurityOptions{},
			want: map[string]string{
				"X-Content-Type-Options":    "nosniff",
				"X-Frame-Options":           "DENY",
				"Referrer-Policy":           "no-referrer",
				"Permissions-Policy":        "",
				"Cache-Control":             "",
				"Strict-Transport-Security": "",
			},
		},
		{
			name: "admin api profile",
			opt:  SecurityOptions{NoStore: true, EnablePolicy: true},
			want: map[string]string{
				"Cache-Control":                     "no-store",
				"Pragma":                            "no-cache",
				"Expires":                           "0",
				"X-Permitted-Cross-Domain-Policies": "none",
				"Permissions-Policy":                "geolocation=(), microphone=(), camera=(), payment=()",
			},
		},
		{
			name: "hsts skipped on plain http",
			opt:  SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour},
			want: map[string]string{"Strict-Transport-Security": ""},
		},
		{
			name: "hsts over tls",
			opt:  SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour},
			req:  https,
			want: map[string]string{"Strict-Transport-Security": "max-age=86400; includeSubDomains; preload"},
		},
		{
			name: "hsts behind proxy with default max age",
			opt:  SecurityOptions{EnableHSTS: true},
			req:  proxied,
			want: map[string]string{
				"Strict-Transport-Security": "max-age=" + strconv.Itoa(180*24*3600) + "; includeSubDomains; preload",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/deliveries", nil)
			if tt.req != nil {
				tt.req(req)
			}
			w := httptest.NewRecorder()
			secured(tt.opt, nil).ServeHTTP(w, req)

			for k, want := range tt.want {
				if got := w.Header().Get(k); got != want {
					t.Fatalf("%s = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		want     string
	}{
		{"fresh", "", "X-Request-ID"},
		{"appended", "ETag", "ETag, X-Request-ID"},
		{"already listed", "X-Request-ID, ETag", "X-Request-ID, ETag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pre := func(c *gin.Context) {
				c.Header(requestIDHeader, "rid-1")
				if tt.existing != "" {
					c.Header("Access-Control-Expose-Headers", tt.existing)
				}
				c.Next()
			}
			w := httptest.NewRecorder()
			secured(SecurityOptions{}, pre).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/deliveries", nil))
			if got := w.Header().Get("Access-Control-Expose-Headers"); got != tt.want {
				t.Fatalf("expose = %q, want %q", got, tt.want)
			}
		})
	}

	// Without a request id there is nothing to expose.
	w := httptest.NewRecorder()
	secured(SecurityOptions{}, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/deliveries", nil))
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "" {
		t.Fatalf("expose = %q, want empty", got)
	}
}

func Test_isHTTPS(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	viaTLS := httptest.NewRequest(http.MethodGet, "/", nil)
	viaTLS.TLS = &tls.ConnectionState{}
	viaProxy := httptest.NewRequest(http.MethodGet, "/", nil)
	viaProxy.Header.Set("X-Forwarded-Proto", "https")

	for name, tc := range map[string]struct {
		req  *http.Request
		want bool
	}{
		"plain": {plain, false},
		"tls":   {viaTLS, true},
		"proxy": {viaProxy, true},
	} {
		if got := isHTTPS(tc.req); got != tc.want {
			t.Fatalf("%s: isHTTPS = %v, want %v", name, got, tc.want)
		}
	}
}

func Test_exposeHeader(t *testing.T) {
	h := http.Header{}
	exposeHeader(h, "X-Request-ID")
	exposeHeader(h, "X-Request-ID")
	exposeHeader(h, "ETag")
	if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID, ETag" {
		t.Fatalf("expose = %q", got)
	}
}
