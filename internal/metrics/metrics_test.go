package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから名前とラベルが一致するメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("%s %v metric not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	if len(m.GetLabel()) != len(labels) {
		return false
	}
	for _, lp := range m.GetLabel() {
		if labels[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordRecommendation_CountsByOutcome は結果ラベルごとに集計されることを検証する。
func TestRecordRecommendation_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRecommendation("recommended")
	c.RecordRecommendation("recommended")
	c.RecordRecommendation("no_eligible")

	got := findMetric(t, reg, "wearly_recommendations_total", map[string]string{"outcome": "recommended"})
	if v := got.GetCounter().GetValue(); v != 2 {
		t.Errorf("recommended = %v, want 2", v)
	}
	got = findMetric(t, reg, "wearly_recommendations_total", map[string]string{"outcome": "no_eligible"})
	if v := got.GetCounter().GetValue(); v != 1 {
		t.Errorf("no_eligible = %v, want 1", v)
	}
}

func TestRecordFeedback_CountsBySign(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFeedback("dislike")

	got := findMetric(t, reg, "wearly_feedback_total", map[string]string{"sign": "dislike"})
	if v := got.GetCounter().GetValue(); v != 1 {
		t.Errorf("dislike = %v, want 1", v)
	}
}

func TestRecordResolver_FailureAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordResolverFailure()
	c.RecordResolverLatency(150 * time.Millisecond)
	c.RecordResolverLatency(2 * time.Second)

	if v := findMetric(t, reg, "wearly_resolver_failures_total", nil).GetCounter().GetValue(); v != 1 {
		t.Errorf("resolver_failures_total = %v, want 1", v)
	}
	h := findMetric(t, reg, "wearly_resolver_latency_seconds", nil).GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", h.GetSampleCount())
	}
	if sum := h.GetSampleSum(); sum < 2.14 || sum > 2.16 {
		t.Errorf("sample sum = %v, want 2.15", sum)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はステータスコードラベルで記録されることを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(503)

	if v := findMetric(t, reg, "wearly_http_status_total", map[string]string{"status_code": "200"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("status 200 = %v, want 2", v)
	}
	if v := findMetric(t, reg, "wearly_http_status_total", map[string]string{"status_code": "503"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("status 503 = %v, want 1", v)
	}
}

func TestSetActiveSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetActiveSessions(5)
	c.SetActiveSessions(3)

	if v := findMetric(t, reg, "wearly_active_sessions", nil).GetGauge().GetValue(); v != 3 {
		t.Errorf("active_sessions = %v, want 3", v)
	}
}

func TestRecordBreakerState(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	tests := []struct {
		state string
		want  float64
	}{
		{"open", 2},
		{"half-open", 1},
		{"closed", 0},
	}
	for _, tt := range tests {
		c.RecordBreakerState("category-resolver", tt.state)
		got := findMetric(t, reg, "wearly_circuit_breaker_state", map[string]string{"name": "category-resolver"})
		if v := got.GetGauge().GetValue(); v != tt.want {
			t.Errorf("state %s = %v, want %v", tt.state, v, tt.want)
		}
	}
}

func TestRecordReconcile(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordReconcile("success")
	c.RecordReconcile("failure")
	c.RecordReconcile("success")

	if v := findMetric(t, reg, "wearly_style_reconcile_total", map[string]string{"result": "success"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("success = %v, want 2", v)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat はPrometheus形式で出力されることを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordRecommendation("recommended")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `wearly_recommendations_total{outcome="recommended"} 1`) {
		t.Errorf("response should contain wearly_recommendations_total, got:\n%s", body)
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はインターフェースを満たすことを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
	var _ MetricsCollector = NopCollector{}
}

// TestMultipleCollectors_IndependentRegistries は別レジストリへの登録が衝突しないことを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("別レジストリへの登録でpanicした: %v", r)
		}
	}()
	NewCollector(prometheus.NewRegistry())
	NewCollector(prometheus.NewRegistry())
}

// TestNewCollector_DuplicateRegistrationPanics は同一レジストリへの二重登録がpanicすることを検証する。
func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("同一レジストリへの二重登録はpanicするべき")
		}
	}()
	NewCollector(reg)
}
