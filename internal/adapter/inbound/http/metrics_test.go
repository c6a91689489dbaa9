package http

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m.RequestsTotal == nil {
		t.Error("RequestsTotal not initialized")
	}
	if m.RequestDuration == nil {
		t.Error("RequestDuration not initialized")
	}
	if m.DecisionsTotal == nil {
		t.Error("DecisionsTotal not initialized")
	}
	if m.PolicySaves == nil {
		t.Error("PolicySaves not initialized")
	}
}

func TestMetricsRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RequestsTotal.WithLabelValues("POST", "/policies", "ok").Inc()
	count := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/policies", "ok"))
	if count != 1 {
		t.Errorf("RequestsTotal = %v, want 1", count)
	}

	m.DecisionsTotal.WithLabelValues("Allowed").Inc()
	decisions := testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("Allowed"))
	if decisions != 1 {
		t.Errorf("DecisionsTotal = %v, want 1", decisions)
	}

	m.PolicySaves.Inc()
	if saves := testutil.ToFloat64(m.PolicySaves); saves != 1 {
		t.Errorf("PolicySaves = %v, want 1", saves)
	}

	m.RequestDuration.WithLabelValues("POST", "/policies").Observe(0.1)
	gathered, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	found := false
	for _, mf := range gathered {
		if mf.GetName() == "ironclad_request_duration_seconds" {
			found = true
		}
	}
	if !found {
		t.Error("ironclad_request_duration_seconds not found in gathered metrics")
	}
}
