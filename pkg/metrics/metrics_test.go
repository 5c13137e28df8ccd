package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestConnectionLifecycle(t *testing.T) {
	m := New()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	s := m.Snapshot()
	if s.TotalConnections != 2 {
		t.Errorf("TotalConnections = %d, want 2", s.TotalConnections)
	}
	if s.ActiveConnections != 1 {
		t.Errorf("ActiveConnections = %d, want 1", s.ActiveConnections)
	}
}

func TestRequestResponseErrorCounters(t *testing.T) {
	m := New()
	m.RequestReceived()
	m.RequestReceived()
	m.ResponseSent()
	m.ErrorOccurred()

	s := m.Snapshot()
	if s.TotalRequests != 2 {
		t.Errorf("TotalRequests = %d, want 2", s.TotalRequests)
	}
	if s.TotalResponses != 1 {
		t.Errorf("TotalResponses = %d, want 1", s.TotalResponses)
	}
	if s.TotalErrors != 1 {
		t.Errorf("TotalErrors = %d, want 1", s.TotalErrors)
	}
}

func TestPrometheusCollectorRegisters(t *testing.T) {
	m := New()
	m.ConnectionOpened()
	m.RequestReceived()

	reg := prometheus.NewRegistry()
	if err := reg.Register(NewPrometheusCollector(m)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one metric family")
	}
}
