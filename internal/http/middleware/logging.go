// Package middleware contains the Gin middleware in front of the admin API.
//
// This file provides the correlation id injector, panic recovery and access
// to the request-scoped logger that RedactingLogger attaches. Install them in
// this order so panics and error envelopes carry the correlation id:
//
//  1. RequestID()
//  2. RedactingLogger(...)
//  3. Recovery()
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"
	// maxQueryLogLength caps the bytes of the raw query string that are logged.
	maxQueryLogLength = 2048
)

// RequestID reuses an incoming X-Request-ID or generates a UUIDv4, stores it
// in the Gin context and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Recovery turns a panic into the standard JSON 500 envelope. When the
// handler already wrote a response only the status is aborted.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := RequestIDFrom(c)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// RequestIDFrom returns the correlation id set by RequestID, or "".
func RequestIDFrom(c *gin.Context) string {
	v, _ := c.Get(requestIDKey)
	return asString(v)
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// none was attached. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Str("component", "http").Logger()
	return &l
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate cuts s to max bytes and appends an ellipsis. max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
