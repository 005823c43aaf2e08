package observability

import (
	"testing"
	"time"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/tickets/:id", "GET", 200, time.Millisecond)
	m.RecordRequest("/tickets/:id", "GET", 200, time.Millisecond)
	m.RecordError("/tickets/:id/close", "POST", "CONFIGURATION_ERROR")
	m.RecordOperation("escalate", "OK")

	snap := m.Snapshot()
	if snap.Requests["/tickets/:id|GET|200"] != 2 {
		t.Fatalf("requests = %v", snap.Requests)
	}
	if snap.Errors["/tickets/:id/close|POST|CONFIGURATION_ERROR"] != 1 {
		t.Fatalf("errors = %v", snap.Errors)
	}
	if snap.Operations["escalate|OK"] != 1 {
		t.Fatalf("operations = %v", snap.Operations)
	}

	snap.Operations["escalate|OK"] = 99
	if m.Snapshot().Operations["escalate|OK"] != 1 {
		t.Fatal("snapshot must be a copy")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordOperation("assign", "OK")
	m.RecordRequest("/", "GET", 200, 0)
	if len(m.Snapshot().Operations) != 0 {
		t.Fatal("nil metrics should snapshot empty")
	}
}
