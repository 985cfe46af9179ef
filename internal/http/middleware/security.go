// Package middleware – SecurityHeaders
//
// SecurityHeaders hardens the JSON admin API. HSTS is opt-in and only sent
// on HTTPS requests (directly or via X-Forwarded-Proto). Responses that
// expose delivery history should not be cached by intermediaries, which is
// what NoStore is for.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	EnableHSTS   bool          // only when traffic is HTTPS end-to-end
	HSTSMaxAge   time.Duration // defaults to 180 days
	NoStore      bool          // Cache-Control: no-store
	EnablePolicy bool          // Permissions-Policy and friends
}

const defaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityHeaders always sets nosniff, DENY framing and no-referrer, adds
// the optional headers selected by opt, and exposes X-Request-ID to browser
// clients.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if h.Get(requestIDHeader) != "" {
			exposeHeader(h, requestIDHeader)
		}
		c.Next()
	}
}

// exposeHeader appends name to Access-Control-Expose-Headers once.
func exposeHeader(h http.Header, name string) {
	const key = "Access-Control-Expose-Headers"
	cur := h.Get(key)
	switch {
	case cur == "":
		h.Set(key, name)
	case !strings.Contains(cur, name):
		h.Set(key, cur+", "+name)
	}
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
