package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jpalmerr/regionpulse/internal/aggregate"
	"github.com/jpalmerr/regionpulse/internal/poller"
)

func TestObserveProbe(t *testing.T) {
	c := New()

	c.ObserveProbe("EU", poller.Result{Reachable: true, LatencyMs: 120, StatusCode: 200})
	c.ObserveProbe("EU", poller.Result{Reachable: true, LatencyMs: 80, StatusCode: 200})
	c.ObserveProbe("EU", poller.Result{Err: errors.New("timeout")})

	if got := testutil.ToFloat64(c.probesTotal.WithLabelValues("EU", "success")); got != 2 {
		t.Errorf("success probes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.probesTotal.WithLabelValues("EU", "failure")); got != 1 {
		t.Errorf("failure probes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.endpointUp.WithLabelValues("EU")); got != 0 {
		t.Errorf("endpoint_up = %v, want 0 after failed probe", got)
	}

	c.ObserveProbe("EU", poller.Result{Reachable: true, LatencyMs: 10})
	if got := testutil.ToFloat64(c.endpointUp.WithLabelValues("EU")); got != 1 {
		t.Errorf("endpoint_up = %v, want 1 after successful probe", got)
	}
}

func TestObserveTransition(t *testing.T) {
	c := New()

	c.ObserveTransition("main", false)
	c.ObserveTransition("main", true)
	c.ObserveTransition("main", true)

	if got := testutil.ToFloat64(c.transitionsTotal.WithLabelValues("main", "online")); got != 2 {
		t.Errorf("online transitions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.transitionsTotal.WithLabelValues("main", "offline")); got != 1 {
		t.Errorf("offline transitions = %v, want 1", got)
	}
}

func TestObserveCycle(t *testing.T) {
	c := New()

	snap := aggregate.Snapshot{
		Cycle: 3,
		Regions: map[string]aggregate.RegionStatus{
			"AS": {UptimePct: 66.7},
			"NA": {UptimePct: 100},
		},
	}
	c.ObserveCycle(250*time.Millisecond, snap)
	c.ObserveCycle(100*time.Millisecond, snap)

	if got := testutil.ToFloat64(c.cyclesTotal); got != 2 {
		t.Errorf("cycles_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.regionUptime.WithLabelValues("AS")); got != 66.7 {
		t.Errorf("AS uptime = %v, want 66.7", got)
	}
	if got := testutil.CollectAndCount(c.cycleDuration); got != 1 {
		t.Errorf("cycle duration series = %d, want 1", got)
	}
}

func TestObserveTrigger(t *testing.T) {
	c := New()

	c.ObserveTrigger("ws", true)
	c.ObserveTrigger("ws", false)
	c.ObserveTrigger("ws", false)
	c.ObserveTrigger("http", true)

	tests := []struct {
		source, outcome string
		want            float64
	}{
		{"ws", "queued", 1},
		{"ws", "coalesced", 2},
		{"http", "queued", 1},
		{"http", "coalesced", 0},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(c.triggersTotal.WithLabelValues(tt.source, tt.outcome)); got != tt.want {
			t.Errorf("triggers{%s,%s} = %v, want %v", tt.source, tt.outcome, got, tt.want)
		}
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	c := New()
	c.ObserveProbe("main", poller.Result{Reachable: true, LatencyMs: 42})
	c.ObserveCycle(time.Second, aggregate.Snapshot{})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		`regionpulse_probes_total{endpoint="main",result="success"} 1`,
		`regionpulse_endpoint_up{endpoint="main"} 1`,
		"regionpulse_cycles_total 1",
		"go_goroutines",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.ObserveTransition("EU", true)

	if got := testutil.ToFloat64(b.transitionsTotal.WithLabelValues("EU", "online")); got != 0 {
		t.Errorf("second collector saw %v transitions, want 0", got)
	}
}

func TestMiddleware_CountsStatus(t *testing.T) {
	c := New()
	h := c.Middleware("/api/check", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))

	for _, method := range []string{http.MethodPost, http.MethodPost, http.MethodGet} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/api/check", nil))
	}

	if got := testutil.ToFloat64(c.httpRequests.WithLabelValues("/api/check", "202")); got != 2 {
		t.Errorf("202 count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.httpRequests.WithLabelValues("/api/check", "405")); got != 1 {
		t.Errorf("405 count = %v, want 1", got)
	}
}

func TestMiddleware_DefaultStatusOK(t *testing.T) {
	c := New()
	h := c.Middleware("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := testutil.ToFloat64(c.httpRequests.WithLabelValues("/", "200")); got != 1 {
		t.Errorf("200 count = %v, want 1", got)
	}
}
