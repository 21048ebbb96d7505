package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsLabelsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("failed to create http metrics: %v", err)
	}

	var inFlight float64
	router := gin.New()
	router.Use(metrics.Handler())
	router.POST("/api/v1/sessions/:id/logout", func(c *gin.Context) {
		inFlight = testutil.ToFloat64(metrics.InFlight)
		c.Status(http.StatusUnauthorized)
	})

	for _, id := range []string{"a1", "b2"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/logout", nil))
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	}

	labels := prometheus.Labels{
		"method": http.MethodPost,
		"route":  "/api/v1/sessions/:id/logout",
		"status": "401",
	}
	if got := testutil.ToFloat64(metrics.Requests.With(labels)); got != 2 {
		t.Fatalf("expected both sessions under one route label, got %f", got)
	}
	if inFlight != 1 {
		t.Fatalf("expected one in-flight request during handling, got %f", inFlight)
	}
	if got := testutil.ToFloat64(metrics.InFlight); got != 0 {
		t.Fatalf("expected in-flight gauge back at 0, got %f", got)
	}
	if got := testutil.CollectAndCount(metrics.Duration, "chat_http_request_duration_seconds"); got != 1 {
		t.Fatalf("expected one duration series, got %d", got)
	}
}

func TestHTTPMetricsNilPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var metrics *HTTPMetrics
	router := gin.New()
	router.Use(metrics.Handler())
	router.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected handler to run without metrics, got %d", rr.Code)
	}
}

func TestHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()

	first, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create http metrics: %v", err)
	}
	second, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("expected re-registration to reuse collectors, got %v", err)
	}
	if first.Requests != second.Requests || first.InFlight != second.InFlight {
		t.Fatalf("expected existing collectors to be returned")
	}
}

func TestHTTPMetricsUnmatchedRouteLabel(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create http metrics: %v", err)
	}

	router := gin.New()
	router.Use(metrics.Handler())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/does-not-exist/abc", nil))

	labels := prometheus.Labels{"method": http.MethodGet, "route": "unmatched", "status": "404"}
	if got := testutil.ToFloat64(metrics.Requests.With(labels)); got != 1 {
		t.Fatalf("expected unmatched requests to share one label, got %f", got)
	}
}
