package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRelayMetricsCountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRelayMetrics(reg)

	m.ObserveDelivery("reserve", 250*time.Millisecond)
	m.IncSuccess("reserve")
	m.IncFailure("reserve")
	m.IncFailure("reserve")
	m.IncTerminalFailure("release")
	m.IncLeaseRequeued()

	if got := testutil.ToFloat64(m.success.WithLabelValues("reserve")); got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues("reserve")); got != 2 {
		t.Fatalf("expected failure=2, got %f", got)
	}
	if got := testutil.ToFloat64(m.terminal.WithLabelValues("release")); got != 1 {
		t.Fatalf("expected terminal=1, got %f", got)
	}
	if got := testutil.ToFloat64(m.requeued); got != 1 {
		t.Fatalf("expected requeued=1, got %f", got)
	}
}

func TestRelayMetricsNilSafe(t *testing.T) {
	var m *RelayMetrics
	m.ObserveDelivery("reserve", time.Second)
	m.IncSuccess("reserve")
	m.IncFailure("reserve")
	m.IncTerminalFailure("reserve")
	m.IncLeaseRequeued()

	empty := NewRelayMetrics(nil)
	empty.IncSuccess("")
}
