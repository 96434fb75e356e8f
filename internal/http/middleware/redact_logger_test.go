package middleware

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedactingLogger_ScrubsQueryAndHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	// Upstream request-id middleware writes the response header first.
	r.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-resp")
		c.Next()
	})
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{HeaderChatSession}}))
	r.GET("/admin/chat/conversations/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	// PII in the raw query plus masked and pattern-redacted headers.
	q := "email=a.b+tag@example.com&phone=+1-555-123-4567&sessionId=123e4567-e89b-12d3-a456-426614174000"
	w := hit(r, http.MethodGet, "/admin/chat/conversations/c1?"+q, map[string]string{
		"Authorization":   "Bearer secret",
		"Cookie":          "sid=topsecret",
		HeaderChatSession: "visitor-session-1",
		"X-Custom":        "email a@b.com id=123e4567-e89b-12d3-a456-426614174000 phone 555-123-4567",
		"X-Request-ID":    "rid-req", // the response header should still win
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	logs := buf.String()
	for _, want := range []string{
		`"level":"info"`,
		`"path":"/admin/chat/conversations/:id"`, // route template, not the raw path
		`"request_id":"rid-resp"`,
		`[REDACTED:email]`,
		`[REDACTED:phone]`,
		`[REDACTED:id]`,
		`"Authorization":"[REDACTED]"`,
		`"Cookie":"[REDACTED]"`,
		`"X-Chat-Session":"[REDACTED]"`,
		// Non-masked headers keep their shape and only lose the PII.
		`"X-Custom":"email [REDACTED:email] id=[REDACTED:id] phone [REDACTED:phone]"`,
	} {
		if !strings.Contains(logs, want) {
			t.Fatalf("log line missing %s:\n%s", want, logs)
		}
	}
	if strings.Contains(logs, "a.b+tag@example.com") || strings.Contains(logs, "visitor-session-1") {
		t.Fatalf("raw PII leaked into logs:\n%s", logs)
	}
}

func TestRedactingLogger_LevelsAndRequestIDFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	// No upstream middleware: the request header is the only id source.
	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/warn", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/error", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	hit(r, http.MethodGet, "/warn", map[string]string{"X-Request-ID": "rid-warn"})
	hit(r, http.MethodGet, "/error", map[string]string{"X-Request-ID": "rid-err"})

	logs := buf.String()
	if !strings.Contains(logs, `"level":"warn"`) || !strings.Contains(logs, `"request_id":"rid-warn"`) {
		t.Fatalf("4xx should log warn with the request-header id:\n%s", logs)
	}
	if !strings.Contains(logs, `"level":"error"`) || !strings.Contains(logs, `"request_id":"rid-err"`) {
		t.Fatalf("5xx should log error with the request-header id:\n%s", logs)
	}
}
