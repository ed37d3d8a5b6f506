package obs

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordAndExpose(t *testing.T) {
	m := NewMetrics()
	m.RecordLookup("hit")
	m.RecordLookup("hit")
	m.RecordLookup("")
	m.RecordWrite("stored")
	m.RecordEviction("fifo", 3)
	m.RecordEviction("fifo", 0)
	m.RecordRecovery("quota_exceeded")
	m.RecordDurableError("set_entry")
	m.SetEntries(7)

	if got := testutil.ToFloat64(m.lookups.WithLabelValues("hit")); got != 2 {
		t.Fatalf("expected 2 hits, got %v", got)
	}
	if got := testutil.ToFloat64(m.lookups.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("expected empty label to map to unknown, got %v", got)
	}
	if got := testutil.ToFloat64(m.evictions.WithLabelValues("fifo")); got != 3 {
		t.Fatalf("expected 3 evictions, got %v", got)
	}
	if got := testutil.ToFloat64(m.entries); got != 7 {
		t.Fatalf("expected entries gauge 7, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"boardcache_lookups_total", "boardcache_recoveries_total", "boardcache_durable_errors_total"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s in exposition", name)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordLookup("hit")
	m.RecordWrite("stored")
	m.RecordEviction("fifo", 1)
	m.RecordRecovery("quota_exceeded")
	m.RecordDurableError("remove")
	m.SetEntries(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
