// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers every endpoint goes through. Error
// responses always use the ErrorResponse envelope with a stable code;
// fail() additionally logs 5xx with the request-scoped logger so server
// errors are never silent. Success helpers keep the happy path one line.
//
// Shape of an error:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "conversation not found"
//	}
//
// Success responses are the bare domain payload:
//
//	HTTP/1.1 200 OK
//	{ "id": "abc123", "userName": "Guest abc1", "messages": [...] }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hkg945/edgeflow/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints. RequestID
// echoes X-Request-ID so a client report can be matched to server logs;
// Code is machine-readable (see errors.go), Message is safe to display.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"conversation not found"`
}

// fail aborts the request with the ErrorResponse envelope at the given
// status. Statuses >= 500 are logged through the request-scoped logger;
// client errors are the caller's problem and stay out of the error stream.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for callers outside this package
// (router fallbacks, middleware) that need the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with the given status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent answers 204 for operations with nothing to return.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
