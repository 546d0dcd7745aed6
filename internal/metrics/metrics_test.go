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

// findMetric はレジストリから指定名のメトリクスファミリーを取得するヘルパー。
func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordFetchSuccess_IncrementsCounter は取得成功カウンタが増加することを検証する。
func TestRecordFetchSuccess_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchSuccess()
	c.RecordFetchSuccess()

	mf := findMetric(t, reg, "labelwatch_fetch_success_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 2 {
		t.Errorf("fetch_success_total = %v, want 2", val)
	}
}

// TestRecordFetchFailure_LabelsReason は取得失敗カウンタが理由ラベル付きで増加することを検証する。
func TestRecordFetchFailure_LabelsReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchFailure("transport")
	c.RecordFetchFailure("status")
	c.RecordFetchFailure("status")

	mf := findMetric(t, reg, "labelwatch_fetch_fail_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		label := m.GetLabel()[0].GetValue()
		val := m.GetCounter().GetValue()
		switch label {
		case "transport":
			if val != 1 {
				t.Errorf("fetch_fail_total{reason=transport} = %v, want 1", val)
			}
		case "status":
			if val != 2 {
				t.Errorf("fetch_fail_total{reason=status} = %v, want 2", val)
			}
		default:
			t.Errorf("unexpected label value: %s", label)
		}
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	mf := findMetric(t, reg, "labelwatch_http_status_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		label := m.GetLabel()[0].GetValue()
		val := m.GetCounter().GetValue()
		switch label {
		case "200":
			if val != 2 {
				t.Errorf("http_status_total{status_code=200} = %v, want 2", val)
			}
		case "404":
			if val != 1 {
				t.Errorf("http_status_total{status_code=404} = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected label value: %s", label)
		}
	}
}

// TestRecordFetchLatency_ObservesHistogram は取得レイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordFetchLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchLatency(100 * time.Millisecond)
	c.RecordFetchLatency(2 * time.Second)

	h := findMetric(t, reg, "labelwatch_fetch_latency_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	// 合計は0.1 + 2.0 = 2.1秒
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

// TestRecordIdentifierMissing_IncrementsCounter はsetid欠落カウンタが増加することを検証する。
func TestRecordIdentifierMissing_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordIdentifierMissing()
	c.RecordIdentifierMissing()
	c.RecordIdentifierMissing()

	mf := findMetric(t, reg, "labelwatch_identifier_missing_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 3 {
		t.Errorf("identifier_missing_total = %v, want 3", val)
	}
}

// TestRecordMatches_AddsCount は一致件数が加算されることを検証する。
func TestRecordMatches_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMatches(4)
	c.RecordMatches(0)
	c.RecordMatches(2)

	mf := findMetric(t, reg, "labelwatch_matches_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 6 {
		t.Errorf("matches_total = %v, want 6", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchSuccess()
	c.RecordFetchFailure("status")
	c.RecordParseFailure()
	c.RecordHTTPStatus(200)
	c.RecordFetchLatency(500 * time.Millisecond)
	c.RecordItemSkipped("missing_title")
	c.RecordReportWriteFailure()

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"labelwatch_fetch_success_total",
		"labelwatch_fetch_fail_total",
		"labelwatch_parse_fail_total",
		"labelwatch_http_status_total",
		"labelwatch_fetch_latency_seconds",
		"labelwatch_items_skipped_total",
		"labelwatch_report_write_fail_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}
