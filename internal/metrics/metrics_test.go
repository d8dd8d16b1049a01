package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"alumnet/engagement-service/internal/lifecycle"
)

func TestTransitionAndDrift(t *testing.T) {
	m := New()
	m.Transition(lifecycle.DomainInternship, "offer", "accept", "ok")
	m.Transition(lifecycle.DomainInternship, "offer", "accept", "ok")
	m.Transition(lifecycle.DomainInternship, "offer", "accept", "conflict")
	m.SetDrift(lifecycle.DomainMentorship, 3)

	if got := testutil.ToFloat64(m.transitions.WithLabelValues("internship", "offer", "accept", "ok")); got != 2 {
		t.Errorf("ok transitions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.drift.WithLabelValues("mentorship")); got != 3 {
		t.Errorf("drift = %v, want 3", got)
	}
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/internships/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, id := range []string{"1", "2"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/internships/"+id, nil))
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/internships/:id", "200")); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "lifecycle_transitions_total") ||
		!strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Errorf("exposition missing service metrics")
	}
}
