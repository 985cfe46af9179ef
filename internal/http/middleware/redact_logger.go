// Package middleware – RedactingLogger
//
// RedactingLogger is the access log of the admin API. It never logs bodies
// and scrubs secrets from the query string and headers before they reach
// zerolog: Telegram bot tokens, Grocy API keys passed as query parameters,
// bearer tokens and e-mail addresses. The request-scoped logger it attaches
// carries the correlation id and is returned by LoggerFrom.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedactOptions adds headers whose values are masked in full. Matching is
// case-insensitive; Authorization, Cookie, Set-Cookie and X-API-Key are
// always masked.
type RedactOptions struct {
	MaskHeaders []string
}

var (
	// Telegram bot tokens look like "123456789:AA...".
	botTokenRE = regexp.MustCompile(`\d{6,12}:[A-Za-z0-9_-]{30,}`)
	// api_key=..., token=..., GROCY-API-KEY=... in query strings.
	secretParamRE = regexp.MustCompile(`(?i)\b((?:grocy[-_])?api[-_]?key|token|access_token)=[^&\s]*`)
	bearerRE      = regexp.MustCompile(`(?i)\bbearer\s+[^\s,]+`)
	emailRE       = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
)

// redact scrubs s. Order matters: bot tokens contain no '=' so they are
// replaced before the key=value pass.
func redact(s string) string {
	if s == "" {
		return s
	}
	s = botTokenRE.ReplaceAllString(s, "[REDACTED:bot_token]")
	s = secretParamRE.ReplaceAllString(s, "$1=[REDACTED]")
	s = bearerRE.ReplaceAllString(s, "Bearer [REDACTED]")
	return emailRE.ReplaceAllString(s, "[REDACTED:email]")
}

// RedactingLogger returns the access-log middleware. Level follows the
// outcome: error for 5xx or recorded Gin errors, warn for 4xx, info
// otherwise.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
		"x-api-key":     {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redact(strings.Join(vv, ", "))
		}

		rid := RequestIDFrom(c)
		if rid == "" {
			rid = c.GetHeader(requestIDHeader)
		}
		lg := log.With().
			Str("component", "http").
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &lg)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case len(c.Errors) > 0:
			ev = lg.Error().Str("errors", redact(c.Errors.String()))
		case status >= 500:
			ev = lg.Error()
		case status >= 400:
			ev = lg.Warn()
		default:
			ev = lg.Info()
		}
		ev.
			Str("query", truncate(redact(c.Request.URL.RawQuery), maxQueryLogLength)).
			Str("remote_ip", c.ClientIP()).
			Str("client", ClientFrom(c)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
