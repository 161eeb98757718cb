package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/audiolibrelab/dialmix/internal/config"
	"github.com/audiolibrelab/dialmix/internal/service"
)

type fakeStatus struct {
	state   service.State
	lastErr string
}

func (f fakeStatus) State() service.State { return f.state }
func (f fakeStatus) GetLastError() string { return f.lastErr }

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "dialmix.yaml")
	if err := config.WriteDefault(configFile); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	cfg, err := config.LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	s := New(cfg, configFile, fakeStatus{state: service.StateReceiving, lastErr: "pactl timed out"}, "0")
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func testReport(cycle uint64) *service.CycleReport {
	return &service.CycleReport{
		Cycle: cycle,
		Time:  time.Now(),
		Dials: []service.DialReport{
			{Name: "music", Bits: 0x8000, Percent: 50, Sessions: []service.SessionReport{{PID: 10, Path: "/usr/bin/spotify"}}},
			{Name: "chat", Muted: true, Sessions: []service.SessionReport{}},
			{Name: "other", Muted: true, Sessions: []service.SessionReport{}},
		},
	}
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp.StatusCode
}

func TestStatus(t *testing.T) {
	s, ts := newTestServer(t)

	var before StatusResponse
	getJSON(t, ts.URL+"/status", &before)
	if before.Report != nil {
		t.Error("Expected no report before the first cycle")
	}
	if before.State != service.StateReceiving || before.Message != "pactl timed out" {
		t.Errorf("Unexpected status: %+v", before)
	}
	if before.Profile != config.DefaultProfile || before.ServerID == "" {
		t.Errorf("Unexpected status: %+v", before)
	}

	s.Observe(testReport(7))

	var after StatusResponse
	getJSON(t, ts.URL+"/status", &after)
	if after.Report == nil || after.Report.Cycle != 7 {
		t.Fatalf("Expected cycle 7 in status, got %+v", after.Report)
	}
	if after.Report.Dials[0].Sessions[0].Path != "/usr/bin/spotify" {
		t.Errorf("Unexpected dial report: %+v", after.Report.Dials[0])
	}
}

func TestConfig(t *testing.T) {
	_, ts := newTestServer(t)

	var resp ConfigResponse
	getJSON(t, ts.URL+"/config", &resp)

	if len(resp.Bindings) != 3 {
		t.Fatalf("Expected 3 bindings, got %d", len(resp.Bindings))
	}
	if resp.Bindings[0].Name != "music" || resp.Bindings[0].Kind != "pattern" {
		t.Errorf("Unexpected first binding: %+v", resp.Bindings[0])
	}
	if resp.Bindings[2].Kind != "catch_all" {
		t.Errorf("Expected last binding to be catch-all, got %+v", resp.Bindings[2])
	}
	if resp.Baud != 56000 {
		t.Errorf("Expected default baud, got %d", resp.Baud)
	}
}

func TestProfiles(t *testing.T) {
	_, ts := newTestServer(t)

	var resp struct {
		Profiles []string `json:"profiles"`
		Active   string   `json:"active"`
	}
	getJSON(t, ts.URL+"/config/profiles", &resp)

	if len(resp.Profiles) != 1 || resp.Profiles[0] != "default" || resp.Active != "default" {
		t.Errorf("Unexpected profiles response: %+v", resp)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/status", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", resp.StatusCode)
	}
	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	if body["success"] != false {
		t.Errorf("Expected success=false, got %v", body)
	}
}

func TestIndex(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("Expected HTML, got %s", resp.Header.Get("Content-Type"))
	}

	resp, err = http.Get(ts.URL + "/missing")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readReport(t *testing.T, conn *websocket.Conn) *service.CycleReport {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var report service.CycleReport
	if err := conn.ReadJSON(&report); err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	return &report
}

func TestWebSocket_ReceivesLastReportOnConnect(t *testing.T) {
	s, ts := newTestServer(t)
	s.Observe(testReport(3))

	conn := dialWS(t, ts)
	if report := readReport(t, conn); report.Cycle != 3 {
		t.Errorf("Expected cycle 3, got %d", report.Cycle)
	}
}

func TestWebSocket_ReceivesNewReports(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dialWS(t, ts)

	// the client is registered once the upgrade handler has run
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.clientsMu.Lock()
		n := len(s.clients)
		s.clientsMu.Unlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Observe(testReport(1))
	s.Observe(testReport(2))

	if report := readReport(t, conn); report.Cycle != 1 {
		t.Errorf("Expected cycle 1, got %d", report.Cycle)
	}
	report := readReport(t, conn)
	if report.Cycle != 2 || !report.Dials[1].Muted {
		t.Errorf("Unexpected second report: %+v", report)
	}
}

func TestWebSocket_RefusedAfterClientsClosed(t *testing.T) {
	s, ts := newTestServer(t)
	s.closeClients()

	conn := dialWS(t, ts)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("Expected going-away close, got: %v", err)
	}

	s.clientsMu.Lock()
	n := len(s.clients)
	s.clientsMu.Unlock()
	if n != 0 {
		t.Errorf("Expected no registered clients, got %d", n)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Expected no client writers left running")
	}
}
