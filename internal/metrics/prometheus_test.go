package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewMetrics("test", prometheus.NewRegistry())
}

func TestNewMetrics_DefaultNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("", reg)
	m.RecordLoad("banner", "success")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "mediation_ad_loads_total" {
			found = true
		}
	}
	if !found {
		t.Error("Expected mediation_ad_loads_total to be registered")
	}
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics("dup", reg)

	defer func() {
		if recover() == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	NewMetrics("dup", reg)
}

func TestRecordAdLifecycle(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordLoad("interstitial", "success")
	m.RecordLoad("interstitial", "success")
	m.RecordLoad("interstitial", "failure")
	m.RecordShow("rewarded", "success")
	m.RecordInvalidate("banner", "success")
	m.RecordEvent("rewarded", "reward")
	m.RecordDroppedEvent("impression", "inactive")
	m.SetActivePlacements(3)

	tests := []struct {
		name      string
		collector prometheus.Collector
		want      float64
	}{
		{"load success", m.LoadsTotal.WithLabelValues("interstitial", "success"), 2},
		{"load failure", m.LoadsTotal.WithLabelValues("interstitial", "failure"), 1},
		{"show", m.ShowsTotal.WithLabelValues("rewarded", "success"), 1},
		{"invalidate", m.InvalidationsTotal.WithLabelValues("banner", "success"), 1},
		{"event", m.AdEventsTotal.WithLabelValues("rewarded", "reward"), 1},
		{"dropped", m.DroppedEventsTotal.WithLabelValues("impression", "inactive"), 1},
		{"active placements", m.ActivePlacements, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.collector); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordLoadLatency(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordLoadLatency("banner", 30*time.Millisecond)
	m.RecordLoadLatency("banner", 2*time.Second)

	if n := testutil.CollectAndCount(m.LoadLatency); n != 1 {
		t.Errorf("Expected 1 latency series, got %d", n)
	}
}

func TestRecordConsentSignal(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordConsentSignal("gdpr", true)
	m.RecordConsentSignal("gdpr", false)
	m.RecordConsentSignal("gdpr", false)

	if got := testutil.ToFloat64(m.ConsentSignals.WithLabelValues("gdpr", "yes")); got != 1 {
		t.Errorf("Expected 1 granted signal, got %v", got)
	}
	if got := testutil.ToFloat64(m.ConsentSignals.WithLabelValues("gdpr", "no")); got != 2 {
		t.Errorf("Expected 2 denied signals, got %v", got)
	}
}

func TestRecordFlushAndSizeLimit(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordFlush(true)
	m.RecordFlush(false)
	m.IncSizeLimitRejected()
	m.IncAuthFailures()

	if got := testutil.ToFloat64(m.RecorderFlushes.WithLabelValues("success")); got != 1 {
		t.Errorf("Expected 1 successful flush, got %v", got)
	}
	if got := testutil.ToFloat64(m.RecorderFlushes.WithLabelValues("error")); got != 1 {
		t.Errorf("Expected 1 failed flush, got %v", got)
	}
	if got := testutil.ToFloat64(m.SizeLimitRejected); got != 1 {
		t.Errorf("Expected 1 size limit rejection, got %v", got)
	}
	if got := testutil.ToFloat64(m.AuthFailures); got != 1 {
		t.Errorf("Expected 1 auth failure, got %v", got)
	}
}

func TestMiddleware_LabelsByPattern(t *testing.T) {
	m := newTestMetrics(t)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/ads/{id}/show", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	handler := m.Middleware(mux)

	for _, id := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/ads/"+id+"/show", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "POST /v1/ads/{id}/show", "202"))
	if got != 2 {
		t.Errorf("Expected 2 requests under the route pattern, got %v", got)
	}
	if v := testutil.ToFloat64(m.RequestsInFlight); v != 0 {
		t.Errorf("Expected no requests in flight, got %v", v)
	}
}

func TestMiddleware_Unmatched(t *testing.T) {
	m := newTestMetrics(t)
	handler := m.Middleware(http.NewServeMux())

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("Expected unmatched request to be counted, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 from metrics handler, got %d", rec.Code)
	}
}

func TestHandlerFor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("custom", reg)
	m.RecordLoad("banner", "success")

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "custom_ad_loads_total") {
		t.Error("Expected custom registry metrics in output")
	}
}
