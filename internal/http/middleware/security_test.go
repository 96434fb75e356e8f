package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecured(t *testing.T, opts SecurityOptions, pre gin.HandlerFunc, mutate func(*http.Request)) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opts))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if mutate != nil {
		mutate(req)
	}
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /ping -> %d", w.Code)
	}
	return w.Header()
}

func TestSecurityHeaders_BaselineOnly(t *testing.T) {
	h := serveSecured(t, SecurityOptions{}, nil, nil)

	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	// Optional groups stay off: no policy, no cache suppression, no HSTS.
	// Cache-Control in particular must stay absent so the admin inbox ETag
	// handshake is not defeated.
	for _, k := range []string{
		"Permissions-Policy", "X-Permitted-Cross-Domain-Policies",
		"Cache-Control", "Pragma", "Expires",
		"Strict-Transport-Security",
	} {
		if h.Get(k) != "" {
			t.Fatalf("unexpected %s: %q", k, h.Get(k))
		}
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	setRID := func(v, expose string) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Header("X-Request-ID", v)
			if expose != "" {
				c.Header("Access-Control-Expose-Headers", expose)
			}
			c.Next()
		}
	}

	cases := []struct {
		name     string
		existing string
		want     string
	}{
		{"added when absent", "", "X-Request-ID"},
		{"appended to existing", "ETag", "ETag, X-Request-ID"},
		{"never duplicated", "X-Request-ID, ETag", "X-Request-ID, ETag"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := serveSecured(t, SecurityOptions{}, setRID("rid-1", tc.existing), nil)
			if got := h.Get("Access-Control-Expose-Headers"); got != tc.want {
				t.Fatalf("expose header = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestSecurityHeaders_FullOptions_OverTLS(t *testing.T) {
	h := serveSecured(t, SecurityOptions{
		EnableHSTS:   true,
		HSTSMaxAge:   24 * time.Hour,
		NoStore:      true,
		EnablePolicy: true,
	}, nil, func(req *http.Request) {
		req.TLS = &tls.ConnectionState{}
	})

	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("missing policy headers: %#v", h)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("missing cache headers: %#v", h)
	}
	want := "max-age=86400; includeSubDomains; preload"
	if h.Get("Strict-Transport-Security") != want {
		t.Fatalf("HSTS = %q; want %q", h.Get("Strict-Transport-Security"), want)
	}
}

func TestSecurityHeaders_HSTSBehindProxy(t *testing.T) {
	h := serveSecured(t, SecurityOptions{
		EnableHSTS: true,
		HSTSMaxAge: time.Hour,
	}, nil, func(req *http.Request) {
		req.Header.Set("X-Forwarded-Proto", "https")
	})
	if got := h.Get("Strict-Transport-Security"); !strings.HasPrefix(got, "max-age=") {
		t.Fatalf("expected HSTS behind proxy, got %q", got)
	}

	// Plain HTTP never gets HSTS regardless of the option.
	h = serveSecured(t, SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}, nil, nil)
	if h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("unexpected HSTS over plain HTTP")
	}
}

func Test_isHTTPS(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTTPS(plain) {
		t.Fatalf("plain HTTP should not be https")
	}

	tlsReq := httptest.NewRequest(http.MethodGet, "/", nil)
	tlsReq.TLS = &tls.ConnectionState{}
	if !isHTTPS(tlsReq) {
		t.Fatalf("TLS request should be https")
	}

	fwd := httptest.NewRequest(http.MethodGet, "/", nil)
	fwd.Header.Set("X-Forwarded-Proto", "https")
	if !isHTTPS(fwd) {
		t.Fatalf("X-Forwarded-Proto=https should be https")
	}
}

func Test_itoa(t *testing.T) {
	for _, v := range []int{0, 1, 9, 10, 86400, 15552000, -1, -42} {
		if got, want := itoa(v), strconv.Itoa(v); got != want {
			t.Fatalf("itoa(%d) = %q; want %q", v, got, want)
		}
	}
}
