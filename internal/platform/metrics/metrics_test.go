package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SOSCreated()
	m.Transition("accept", OutcomeApplied)
	m.ObserveHTTP("GET", "/health", 200, time.Millisecond)
	m.CacheHit("hospital")
	m.CacheMiss("hospital")
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SOSCreated()
	m.SOSCreated()
	m.Transition("accept", OutcomeApplied)
	m.Transition("accept", OutcomeConflict)
	m.Transition("accept", OutcomeConflict)
	m.CacheMiss("hospital")

	if got := testutil.ToFloat64(m.requestsCreated); got != 2 {
		t.Errorf("expected 2 created, got %v", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("accept", OutcomeConflict)); got != 2 {
		t.Errorf("expected 2 accept conflicts, got %v", got)
	}
	if got := testutil.ToFloat64(m.cacheMissesTotal.WithLabelValues("hospital")); got != 1 {
		t.Errorf("expected 1 cache miss, got %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SOSCreated()
	m.ObserveHTTP("POST", "/emergency/sos", 201, 10*time.Millisecond)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		"sos_requests_created_total 1",
		`http_requests_total{method="POST",path="/emergency/sos",status="201"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}
