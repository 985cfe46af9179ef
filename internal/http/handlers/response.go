// Package handlers implements the admin API of the bot: watcher status,
// manual polls, cache control and the notification delivery journal.
//
// Every failure is answered with ErrorResponse carrying a stable code from
// errors.go; 5xx responses are also logged with the request-scoped logger.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-grocy-bot/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go).
	Code string `json:"code" example:"not_found"`
	// Human-readable message.
	Message string `json:"message" example:"route not found"`
}

func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("error", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail writes the error envelope; used by the router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
