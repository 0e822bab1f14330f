package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"netplay/pkg/core/manager"
	"netplay/pkg/observability"
)

type staticStatus manager.Status

func (s staticStatus) Status() manager.Status { return manager.Status(s) }

func TestStatusEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newRouter(staticStatus{State: "playing", Threshold: 5}, reg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %s", ct)
	}
	var st manager.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.State != "playing" || st.Threshold != 5 {
		t.Fatalf("status = %+v", st)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status?format=cbor", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/cbor" {
		t.Fatalf("cbor: code = %d type = %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status?format=yaml", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown format code = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	m.FrameIn("ping")
	m.Threshold(4)

	rec := httptest.NewRecorder()
	newRouter(staticStatus{}, reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `netplay_frames_received_total{type="ping"} 1`) {
		t.Fatalf("frames counter missing:\n%s", body)
	}
	if !strings.Contains(body, "netplay_input_threshold 4") {
		t.Fatalf("threshold gauge missing:\n%s", body)
	}
}

func TestConfigSchemaCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "schema"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, key := range []string{"player_name", "connect_timeout_ms", "rotation"} {
		if !strings.Contains(out.String(), key) {
			t.Fatalf("schema missing %q", key)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--short"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(out.String()) != version {
		t.Fatalf("version output = %q", out.String())
	}
}
