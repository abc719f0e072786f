package poller

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"testing"
	"time"
)

func TestClient_Probe_StatusMapping(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantReachable bool
	}{
		{"200 OK", http.StatusOK, true},
		{"204 No Content", http.StatusNoContent, true},
		{"299 upper bound", 299, true},
		{"300 Multiple Choices", http.StatusMultipleChoices, false},
		{"404 Not Found", http.StatusNotFound, false},
		{"500 Internal Server Error", http.StatusInternalServerError, false},
		{"503 Service Unavailable", http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient()
			defer client.Close()

			res := client.Probe(context.Background(), server.URL, time.Second)
			if res.Reachable != tt.wantReachable {
				t.Errorf("Reachable = %v, want %v", res.Reachable, tt.wantReachable)
			}
			if res.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", res.StatusCode, tt.status)
			}
			if !res.Reachable {
				if res.LatencyMs != 0 {
					t.Errorf("LatencyMs = %d for failed probe, want 0", res.LatencyMs)
				}
				if res.Err == nil {
					t.Error("Err = nil for failed probe, want error")
				}
			}
		})
	}
}

func TestClient_Probe_MeasuresLatency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(60 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient()
	res := client.Probe(context.Background(), server.URL, time.Second)

	if !res.Reachable {
		t.Fatalf("Reachable = false, err = %v", res.Err)
	}
	if res.LatencyMs < 60 {
		t.Errorf("LatencyMs = %d, want >= 60", res.LatencyMs)
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil", res.Err)
	}
}

// TestClient_Probe_TimeoutBound verifies that a hanging endpoint is reported
// unreachable no later than shortly after the configured timeout.
func TestClient_Probe_TimeoutBound(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient()
	timeout := 200 * time.Millisecond

	start := time.Now()
	res := client.Probe(context.Background(), server.URL, timeout)
	elapsed := time.Since(start)

	if res.Reachable {
		t.Error("Reachable = true for hanging endpoint, want false")
	}
	if res.LatencyMs != 0 {
		t.Errorf("LatencyMs = %d, want 0", res.LatencyMs)
	}
	if elapsed > timeout+500*time.Millisecond {
		t.Errorf("Probe took %v, want close to timeout %v", elapsed, timeout)
	}
}

func TestClient_Probe_ConnectionRefused(t *testing.T) {
	// grab a free port and release it so nothing is listening
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	client := NewClient()
	res := client.Probe(context.Background(), "http://"+addr, time.Second)

	if res.Reachable {
		t.Error("Reachable = true for closed port, want false")
	}
	if res.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", res.StatusCode)
	}
	if res.Err == nil {
		t.Error("Err = nil, want transport error")
	}
}

func TestClient_Probe_InvalidURL(t *testing.T) {
	client := NewClient()
	res := client.Probe(context.Background(), "://bad url", time.Second)

	if res.Reachable {
		t.Error("Reachable = true for invalid URL, want false")
	}
	if res.Err == nil {
		t.Error("Err = nil for invalid URL, want error")
	}
}

func TestClient_Probe_DefaultTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient()
	// zero timeout falls back to the default rather than expiring immediately
	res := client.Probe(context.Background(), server.URL, 0)
	if !res.Reachable {
		t.Errorf("Reachable = false with default timeout, err = %v", res.Err)
	}
}

// TestClient_ConnectionReuse verifies that the HTTP client reuses connections
// when making sequential probes to the same host.
func TestClient_ConnectionReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient()

	var reusedCount int
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reusedCount++
			}
		},
	}

	const numRequests = 5
	for i := 0; i < numRequests; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		res := client.Probe(ctx, server.URL, 5*time.Second)
		if !res.Reachable {
			t.Fatalf("probe %d failed: %v", i, res.Err)
		}
	}

	expectedMinReuse := numRequests - 2 // allow some tolerance
	if reusedCount < expectedMinReuse {
		t.Errorf("expected at least %d reused connections, got %d out of %d requests",
			expectedMinReuse, reusedCount, numRequests)
	}
}

// TestClient_Close verifies that Close() is safe to call and idempotent.
func TestClient_Close(t *testing.T) {
	client := NewClient()

	client.Close()
	client.Close()
	client.Close()
}

func TestClient_Close_NilClient(t *testing.T) {
	var client *Client
	client.Close()
}

func TestClient_UsableAfterClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient()
	client.Close()

	res := client.Probe(context.Background(), server.URL, time.Second)
	if !res.Reachable {
		t.Errorf("probe after Close failed: %v", res.Err)
	}
}
