package metrics

import (
	"net/http/httptest"
	"testing"
)

func TestDebugServerServesStatsSnapshot(t *testing.T) {
	registry := NewRegistry()
	snapshot := func() map[string]int64 {
		return map[string]int64{"StoreReq": 3}
	}
	d := NewDebugServer(":0", registry, snapshot)

	req := httptest.NewRequest("GET", "/stats", nil)
	rec := httptest.NewRecorder()
	d.server.Handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"StoreReq\":3}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestDebugServerStatsWithNilSnapshotIsNull(t *testing.T) {
	registry := NewRegistry()
	d := NewDebugServer(":0", registry, nil)

	req := httptest.NewRequest("GET", "/stats", nil)
	rec := httptest.NewRecorder()
	d.server.Handler.ServeHTTP(rec, req)

	if got := rec.Body.String(); got != "null\n" {
		t.Errorf("body = %q, want null", got)
	}
}
