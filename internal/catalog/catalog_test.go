package catalog

import (
	"path/filepath"
	"testing"

	"procwatch/internal/logger"
	"procwatch/internal/registry"
)

const sampleCatalog = `
[[metrics]]
name = "cpu_usage"
description = "Total CPU usage"
unit = "%"
decimals = 4
is_percentage = true
otel_type = "Gauge"

[[metrics]]
name = "disk_read_bytes"
unit = "By"
is_counter = true
otel_type = "Counter"

[[metrics]]
name = "cpu_core_{index}"
description = "CPU usage on core {index}"
unit = "%"
decimals = 4
is_percentage = true
otel_type = "Gauge"
pattern_type = "indexed"
pattern_source = "cpu_count"
pattern_range = "0-auto"
`

func TestParseSplitsStaticAndTemplated(t *testing.T) {
	c, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(c.Static) != 2 {
		t.Errorf("Static = %d entries, want 2", len(c.Static))
	}
	if len(c.Templates) != 1 {
		t.Fatalf("Templates = %d entries, want 1", len(c.Templates))
	}
	tmpl := c.Templates[0]
	if tmpl.Kind != "indexed" || tmpl.Source != "cpu_count" || tmpl.Range != "0-auto" {
		t.Errorf("template = %+v, want indexed/cpu_count/0-auto", tmpl)
	}
}

func TestParseRejectsUnknownPatternType(t *testing.T) {
	_, err := Parse([]byte(`
[[metrics]]
name = "x_{index}"
pattern_type = "matrix"
pattern_source = "cpu_count"
pattern_range = "0-auto"
`))
	if err == nil {
		t.Error("Parse() accepted unsupported pattern_type")
	}
}

func TestExpandAutoRange(t *testing.T) {
	c, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	facts := Facts{"cpu_count": func() int { return 4 }}
	metrics, err := c.Expand(facts)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}

	// 2 static + 4 expanded cores.
	if len(metrics) != 6 {
		t.Fatalf("Expand() produced %d metrics, want 6", len(metrics))
	}
	for i := 0; i < 4; i++ {
		m := metrics[2+i]
		want := "cpu_core_" + string(rune('0'+i))
		if m.Name != want {
			t.Errorf("expanded metric %d name = %q, want %q", i, m.Name, want)
		}
		if m.Description != "CPU usage on core "+string(rune('0'+i)) {
			t.Errorf("expanded metric %d description = %q, index not substituted", i, m.Description)
		}
	}
}

func TestExpandLiteralRangeIsInclusive(t *testing.T) {
	c := &Catalog{Templates: []Template{{
		Metric: Metric{Name: "slot_{index}"},
		Kind:   "indexed",
		Source: "slots",
		Range:  "1-3",
	}}}

	metrics, err := c.Expand(Facts{"slots": func() int { return 99 }})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(metrics) != 3 {
		t.Fatalf("Expand() produced %d metrics, want 3 (1 through 3 inclusive)", len(metrics))
	}
	if metrics[0].Name != "slot_1" || metrics[2].Name != "slot_3" {
		t.Errorf("expanded names = %v", []string{metrics[0].Name, metrics[1].Name, metrics[2].Name})
	}
}

func TestExpandUnknownSourceFails(t *testing.T) {
	c := &Catalog{Templates: []Template{{
		Metric: Metric{Name: "x_{index}"},
		Kind:   "indexed",
		Source: "gpu_count",
		Range:  "0-auto",
	}}}

	if _, err := c.Expand(Facts{"cpu_count": func() int { return 4 }}); err == nil {
		t.Error("Expand() with unresolvable pattern source: expected error, got nil")
	}
}

func TestFormatTypeDerivation(t *testing.T) {
	tests := []struct {
		m    Metric
		want registry.FormatType
	}{
		{Metric{IsPercentage: true}, registry.FormatPercentage},
		{Metric{IsCounter: true}, registry.FormatCounter},
		{Metric{IsPercentage: true, IsCounter: true}, registry.FormatPercentage},
		{Metric{}, registry.FormatNumber},
	}
	for _, tt := range tests {
		if got := tt.m.FormatType(); got != tt.want {
			t.Errorf("FormatType(%+v) = %v, want %v", tt.m, got, tt.want)
		}
	}
}

func TestDefaultCatalogCoversAggregatorKeys(t *testing.T) {
	c := Default()
	metrics, err := c.Expand(Facts{"cpu_count": func() int { return 2 }})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}

	names := make(map[string]struct{}, len(metrics))
	for _, m := range metrics {
		names[m.Name] = struct{}{}
	}
	for _, want := range []string{
		"cpu_usage", "memory_usage", "process_count",
		"disk_read_bytes", "disk_write_bytes", "open_file_descriptors",
		"thread_count", "voluntary_ctx_switches", "nonvoluntary_ctx_switches",
		"cpu_user_time_total", "cpu_system_time_total",
		"memory_rss_total", "memory_vms_total",
		"max_threads_per_process", "min_threads_per_process", "avg_threads_per_process",
		"cpu_core_0", "cpu_core_1",
	} {
		if _, ok := names[want]; !ok {
			t.Errorf("default catalog missing %q", want)
		}
	}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l := logger.New(filepath.Join(t.TempDir(), "procwatch.log"))
	t.Cleanup(l.Close)
	return l
}

func openTestStore(t *testing.T) *registry.Store {
	t.Helper()
	s, err := registry.Open(registry.Config{
		Path: filepath.Join(t.TempDir(), "metadata.db"),
	}, testLogger(t))
	if err != nil {
		t.Fatalf("registry.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReconcileAddsAndRemoves(t *testing.T) {
	store := openTestStore(t)
	log := testLogger(t)
	svc := store.GetOrCreateService("app.python.worker", "", "", "", "")
	other := store.GetOrCreateService("app.python.sidecar", "", "", "", "")

	// The other service keeps a metric with the same name throughout.
	store.GetOrCreateMetric(other.ID, registry.MetricSpec{Name: "legacy_metric"})

	initial := []Metric{
		{Name: "cpu_usage", IsPercentage: true, Otel: registry.OtelGauge},
		{Name: "legacy_metric", Otel: registry.OtelGauge},
	}
	if err := Reconcile(store, svc.ID, initial, log); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	// A later catalog drops legacy_metric.
	updated := []Metric{
		{Name: "cpu_usage", IsPercentage: true, Otel: registry.OtelGauge},
	}
	if err := Reconcile(store, svc.ID, updated, log); err != nil {
		t.Fatalf("Reconcile() second run error = %v", err)
	}

	if _, err := store.GetMetric(svc.ID, "legacy_metric"); err != registry.ErrNotFound {
		t.Errorf("legacy_metric still present after reconcile (err = %v)", err)
	}
	if _, err := store.GetMetric(svc.ID, "cpu_usage"); err != nil {
		t.Errorf("cpu_usage missing after reconcile: %v", err)
	}
	if _, err := store.GetMetric(other.ID, "legacy_metric"); err != nil {
		t.Errorf("other service's metric deleted by reconcile: %v", err)
	}
}
