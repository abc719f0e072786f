package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jpalmerr/regionpulse"
)

func checkServers(t *testing.T) (up, down *httptest.Server) {
	t.Helper()
	up = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	down = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(up.Close)
	t.Cleanup(down.Close)
	return up, down
}

func TestRunCheck_Table(t *testing.T) {
	up, down := checkServers(t)
	configPath := writeConfig(t, fmt.Sprintf(`
main_url: %s
regions:
  EU: %s
  NA: %s
`, up.URL, up.URL, down.URL))

	output, err := executeCmd(t, "check", "-c", configPath, "--json=false", "--strict=false")
	if err != nil {
		t.Fatalf("check command error = %v", err)
	}

	lines := strings.Split(output, "\n")
	if !strings.HasPrefix(lines[0], "NODE") {
		t.Errorf("first line = %q, want header", lines[0])
	}
	if !strings.HasPrefix(lines[1], "main") || !strings.Contains(lines[1], "online") {
		t.Errorf("main line = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "EU") || !strings.Contains(lines[2], "100.0%") {
		t.Errorf("EU line = %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "NA") || !strings.Contains(lines[3], "offline") {
		t.Errorf("NA line = %q", lines[3])
	}
	if !strings.Contains(output, "1/2 regions online") {
		t.Errorf("output missing summary line\nGot: %s", output)
	}
}

func TestRunCheck_JSON(t *testing.T) {
	up, _ := checkServers(t)
	configPath := writeConfig(t, fmt.Sprintf(`
main_url: %s
regions:
  EU: %s
`, up.URL, up.URL))

	output, err := executeCmd(t, "check", "-c", configPath, "--json=true", "--strict=false")
	if err != nil {
		t.Fatalf("check command error = %v", err)
	}

	var got struct {
		Cycle uint64 `json:"cycle"`
		Main  struct {
			Online bool `json:"online"`
		} `json:"main"`
		Regions map[string]struct {
			Online bool `json:"online"`
		} `json:"regions"`
		Summary struct {
			ActiveNodes int `json:"active_nodes"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(output), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, output)
	}

	if got.Cycle != 1 {
		t.Errorf("cycle = %d, want 1", got.Cycle)
	}
	if !got.Main.Online {
		t.Error("main.online = false")
	}
	if !got.Regions["EU"].Online {
		t.Error("regions.EU.online = false")
	}
	if got.Summary.ActiveNodes != 1 {
		t.Errorf("summary.active_nodes = %d, want 1", got.Summary.ActiveNodes)
	}
}

func TestRunCheck_Strict(t *testing.T) {
	up, down := checkServers(t)

	tests := []struct {
		name    string
		mainURL string
		region  string
		wantErr string
	}{
		{"all online", up.URL, up.URL, ""},
		{"main offline", down.URL, up.URL, "main endpoint is offline"},
		{"region offline", up.URL, down.URL, "1 of 1 regions offline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, fmt.Sprintf("main_url: %s\nregions:\n  EU: %s\n", tt.mainURL, tt.region))

			_, err := executeCmd(t, "check", "-c", configPath, "--json=false", "--strict=true")
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("check command error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("check command error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRunCheck_InvalidConfig(t *testing.T) {
	configPath := writeConfig(t, "port: 3000\n")

	_, err := executeCmd(t, "check", "-c", configPath, "--json=false", "--strict=false")
	if err == nil {
		t.Fatal("check command expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to load config") {
		t.Errorf("error = %v", err)
	}
}

func TestPrintSnapshot_Color(t *testing.T) {
	regions := []regionpulse.Region{regionpulse.MustRegion("EU", "http://eu.example.com")}
	snap := regionpulse.Snapshot{
		Cycle: 1,
		Main:  regionpulse.MainStatus{URL: "https://example.com", Online: true},
		Regions: map[string]regionpulse.RegionStatus{
			"EU": {URL: "http://eu.example.com", Online: false, Checks: 1},
		},
	}

	var plain, colored strings.Builder
	printSnapshot(&plain, regions, snap, false)
	printSnapshot(&colored, regions, snap, true)

	if strings.Contains(plain.String(), "\x1b[") {
		t.Errorf("plain output contains escape codes: %q", plain.String())
	}
	if !strings.Contains(colored.String(), "\x1b[") {
		t.Errorf("colored output has no escape codes: %q", colored.String())
	}
	if !strings.Contains(colored.String(), "offline") {
		t.Error("colored output missing status word")
	}
}
