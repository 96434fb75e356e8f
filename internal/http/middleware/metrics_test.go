package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByTemplateAndFallsBackOnMiss(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())

	// Parameterized route: the path label must be the template, not the
	// concrete URL, so conversation ids do not explode cardinality.
	r.GET("/admin/chat/conversations/:id", func(c *gin.Context) {
		c.String(http.StatusOK, c.Param("id"))
	})
	// Bodyless response: size stays -1 and the size histogram is skipped.
	r.GET("/health-probe", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tmpl := "/admin/chat/conversations/:id"
	baseTmpl := testutil.ToFloat64(httpReqs.WithLabelValues("GET", tmpl, "200"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404"))

	for _, tc := range []struct {
		path string
		want int
	}{
		{"/admin/chat/conversations/sess-1", http.StatusOK},
		{"/admin/chat/conversations/sess-2", http.StatusOK},
		{"/nope", http.StatusNotFound},
		{"/health-probe", http.StatusNoContent},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("GET %s -> %d; want %d", tc.path, w.Code, tc.want)
		}
	}

	// Both parameterized hits land on the one template label.
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", tmpl, "200")); got != baseTmpl+2 {
		t.Fatalf("counter %s 200 = %v; want %v", tmpl, got, baseTmpl+2)
	}
	// Unmatched routes fall back to the raw URL path.
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404")); got != baseMiss+1 {
		t.Fatalf("counter 404 fallback = %v; want %v", got, baseMiss+1)
	}
	// Nothing should still be in flight.
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}
