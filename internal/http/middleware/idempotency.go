// Package middleware contains the shared Gin middleware for the HTTP
// layer: request correlation and logging, rate limiting, security
// headers, metrics, and idempotency for the chat write endpoints.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client-chosen retry key on unsafe
// requests. A retried POST with the same key must not append twice.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderChatSession carries the conversation/session id so the replay
// lookup can be scoped without reading the request body. The chat
// widget sends it on POST /chat/send; the admin dashboard sends it on
// POST /admin/chat/reply.
const HeaderChatSession = "X-Chat-Session"

// Unexported context keys, read through the accessor helpers below.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // true when a stored replay exists
	ctxKeyRateBypass = "rate.bypass" // true to skip rate limiting
)

// GetIdempotencyKey returns the validated key stashed by
// IdempotencyValidator. Handlers read this instead of the raw header.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether this request repeats an already completed
// operation for its (session, key) pair. Handlers use it to serve the
// stored result instead of appending again.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions tunes header validation. TTL enforcement belongs
// in the lookup, which owns the stored records.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts allowed characters. Nil selects a token-style
	// default: ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether a successful, still-valid result
// already exists for (conversationID, key) at the given time. Errors
// mean the lookup itself failed and must not block the request.
type IdempotencyLookup func(ctx context.Context, conversationID, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator checks the Idempotency-Key header when present,
// stashes it in the context, and consults the lookup for a prior
// completed request. On a hit it sets the replay flag and the
// rate-bypass flag so the limiter does not charge a served replay.
//
// The session scope comes from the X-Chat-Session header, falling back
// to the :id route parameter. A missing header makes the middleware a
// no-op; a malformed key is rejected with 400 before any handler runs.
// The middleware never serves a cached payload itself; handlers decide
// how a replay is answered.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_idempotency_key",
				"message": "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			if sessionID := sessionFromCtx(c); sessionID != "" {
				if exists, _ := lookup(c.Request.Context(), sessionID, key, time.Now().UTC()); exists {
					c.Set(ctxKeyIdemReplay, true)
					c.Set(ctxKeyRateBypass, true)
				}
			}
		}

		c.Next()
	}
}

// sessionFromCtx picks the scope for the replay lookup: the
// X-Chat-Session header first, then the :id route parameter.
func sessionFromCtx(c *gin.Context) string {
	if s := strings.TrimSpace(c.GetHeader(HeaderChatSession)); s != "" {
		return s
	}
	return strings.TrimSpace(c.Param("id"))
}
