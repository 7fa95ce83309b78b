package registry

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"procwatch/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l := logger.New(filepath.Join(t.TempDir(), "procwatch.log"))
	t.Cleanup(l.Close)
	return l
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{
		Path:          filepath.Join(t.TempDir(), "metadata.db"),
		TargetVersion: "2.0",
	}, testLogger(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrateCreatesAllTables(t *testing.T) {
	s := openTestStore(t)

	version, err := s.currentSchemaVersion()
	if err != nil {
		t.Fatalf("currentSchemaVersion() error = %v", err)
	}
	if version != "2.0" {
		t.Errorf("schema version = %q, want 2.0", version)
	}

	for _, table := range []string{"schema_version", "hosts", "service_namespaces", "services", "metrics", "format_rules"} {
		var name string
		err := s.db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	var before int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&before); err != nil {
		t.Fatalf("count schema_version: %v", err)
	}

	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate() second run error = %v", err)
	}

	var after int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&after); err != nil {
		t.Fatalf("count schema_version: %v", err)
	}
	if after != before {
		t.Errorf("schema_version rows grew from %d to %d on a no-op migration", before, after)
	}
}

func TestSchemaVersionLogIsAppendOnly(t *testing.T) {
	s := openTestStore(t)

	// A fresh database passes through 1.0 on its way to 2.0, so both
	// transitions must be on record.
	rows, err := s.db.Query(`SELECT version FROM schema_version ORDER BY id`)
	if err != nil {
		t.Fatalf("query schema_version: %v", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			t.Fatal(err)
		}
		versions = append(versions, v)
	}
	if len(versions) != 2 || versions[0] != "1.0" || versions[1] != "2.0" {
		t.Errorf("schema_version log = %v, want [1.0 2.0]", versions)
	}
}

func TestLegacyDatabaseRequiresExplicitReset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.db")

	// Simulate a database from before schema versioning existed.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE old_metrics (name TEXT)`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	_, err = Open(Config{Path: path, TargetVersion: "2.0"}, testLogger(t))
	if err == nil {
		t.Fatal("Open() on legacy database without AllowSchemaReset: expected error, got nil")
	}

	s, err := Open(Config{Path: path, TargetVersion: "2.0", AllowSchemaReset: true}, testLogger(t))
	if err != nil {
		t.Fatalf("Open() with AllowSchemaReset error = %v", err)
	}
	defer s.Close()

	// The legacy table must be gone after the reset.
	var name string
	err = s.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name='old_metrics'`,
	).Scan(&name)
	if err != sql.ErrNoRows {
		t.Errorf("legacy table survived reset (err = %v)", err)
	}
}

func TestMigrateV1ToV2Backfill(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.db")
	log := testLogger(t)

	s1, err := Open(Config{Path: path, TargetVersion: "1.0"}, log)
	if err != nil {
		t.Fatalf("Open() at 1.0 error = %v", err)
	}
	svc := s1.GetOrCreateService("app.python.worker", "", "", "", "")
	s1.GetOrCreateMetric(svc.ID, MetricSpec{Name: "disk_read_bytes", IsCounter: true, Format: FormatCounter})
	s1.GetOrCreateMetric(svc.ID, MetricSpec{Name: "thread_count", IsCounter: true, Format: FormatCounter})
	s1.GetOrCreateMetric(svc.ID, MetricSpec{Name: "cpu_usage", Format: FormatPercentage, IsPercentage: true})
	s1.Close()

	s2, err := Open(Config{Path: path, TargetVersion: "2.0"}, log)
	if err != nil {
		t.Fatalf("Open() at 2.0 error = %v", err)
	}
	defer s2.Close()

	want := map[string]OtelType{
		"disk_read_bytes": OtelCounter,
		"thread_count":    OtelUpDownCounter,
		"cpu_usage":       OtelGauge,
	}
	for name, ot := range want {
		rec, err := s2.GetMetric(svc.ID, name)
		if err != nil {
			t.Fatalf("GetMetric(%q) error = %v", name, err)
		}
		if rec.Otel != ot {
			t.Errorf("backfilled otel_type for %s = %v, want %v", name, rec.Otel, ot)
		}
	}
}

func TestGetOrCreateHostStableID(t *testing.T) {
	s := openTestStore(t)

	first := s.GetOrCreateHost("node-1")
	second := s.GetOrCreateHost("node-1")

	if first.Degraded || second.Degraded {
		t.Fatal("unexpected degraded identity")
	}
	if first.ID != second.ID {
		t.Errorf("host ID changed across upserts: %s != %s", first.ID, second.ID)
	}

	other := s.GetOrCreateHost("node-2")
	if other.ID == first.ID {
		t.Error("distinct hostnames share an ID")
	}
}

func TestGetOrCreateServicePreservesVersion(t *testing.T) {
	s := openTestStore(t)

	first := s.GetOrCreateService("app.python.worker", "1.2.3", "worker pool", "node-1", "prod")
	if first.Degraded {
		t.Fatal("unexpected degraded identity")
	}
	if first.DisplayName != "Worker" {
		t.Errorf("DisplayName = %q, want \"Worker\"", first.DisplayName)
	}

	// An upsert without version or description must not blank the
	// stored values.
	second := s.GetOrCreateService("app.python.worker", "", "", "", "")
	if second.ID != first.ID {
		t.Errorf("service ID changed across upserts: %s != %s", first.ID, second.ID)
	}

	var version, description string
	err := s.db.QueryRow(
		`SELECT version, description FROM services WHERE id = ?`, first.ID,
	).Scan(&version, &description)
	if err != nil {
		t.Fatal(err)
	}
	if version != "1.2.3" || description != "worker pool" {
		t.Errorf("stored version/description = %q/%q, want 1.2.3/worker pool", version, description)
	}
}

func TestServiceMarkerIsConfigurable(t *testing.T) {
	s, err := Open(Config{
		Path:          filepath.Join(t.TempDir(), "metadata.db"),
		ServiceMarker: ".service.",
	}, testLogger(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	ident := s.GetOrCreateService("org.service.payments_api", "", "", "", "")
	if ident.Degraded {
		t.Fatal("unexpected degraded identity")
	}
	if ident.DisplayName != "Payments Api" {
		t.Errorf("DisplayName = %q, want \"Payments Api\"", ident.DisplayName)
	}
}

func TestGetServiceByRawName(t *testing.T) {
	s := openTestStore(t)

	created := s.GetOrCreateService("app.python.worker", "1.2.3", "worker pool", "node-1", "prod")

	// Lookup uses the raw name; sanitization happens inside.
	rec, err := s.GetService("app.python.worker")
	if err != nil {
		t.Fatalf("GetService() error = %v", err)
	}
	if rec.ID != created.ID {
		t.Errorf("ID = %s, want %s", rec.ID, created.ID)
	}
	if rec.FullName != "app_python_worker" {
		t.Errorf("FullName = %q, want \"app_python_worker\"", rec.FullName)
	}
	if rec.DisplayName != "Worker" || rec.Version != "1.2.3" {
		t.Errorf("got %q/%q, want Worker/1.2.3", rec.DisplayName, rec.Version)
	}

	if _, err := s.GetService("never.registered"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetService(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestGetOrCreateMetricUpsert(t *testing.T) {
	s := openTestStore(t)
	svc := s.GetOrCreateService("app.python.worker", "", "", "", "")

	spec := MetricSpec{
		Name:         "cpu_usage",
		Unit:         "%",
		Format:       FormatPercentage,
		Decimals:     4,
		IsPercentage: true,
		Otel:         OtelGauge,
	}

	first := s.GetOrCreateMetric(svc.ID, spec)
	second := s.GetOrCreateMetric(svc.ID, spec)

	if first.ID != second.ID {
		t.Errorf("metric ID changed across upserts: %s != %s", first.ID, second.ID)
	}
	if first.DisplayName != "CPU Usage" {
		t.Errorf("DisplayName = %q, want \"CPU Usage\"", first.DisplayName)
	}

	rec, err := s.GetMetric(svc.ID, "cpu_usage")
	if err != nil {
		t.Fatalf("GetMetric() error = %v", err)
	}
	if rec.Format != FormatPercentage || !rec.IsPercentage || rec.Otel != OtelGauge {
		t.Errorf("stored metric = %+v, want percentage gauge", rec)
	}
}

func TestMetricsScopedPerService(t *testing.T) {
	s := openTestStore(t)
	a := s.GetOrCreateService("app.python.alpha", "", "", "", "")
	b := s.GetOrCreateService("app.python.beta", "", "", "", "")

	s.GetOrCreateMetric(a.ID, MetricSpec{Name: "cpu_usage"})
	s.GetOrCreateMetric(a.ID, MetricSpec{Name: "thread_count"})
	s.GetOrCreateMetric(b.ID, MetricSpec{Name: "cpu_usage"})

	metricsA, err := s.MetricsForService(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(metricsA) != 2 {
		t.Errorf("service A has %d metrics, want 2", len(metricsA))
	}

	if err := s.DeleteMetric(a.ID, "cpu_usage"); err != nil {
		t.Fatalf("DeleteMetric() error = %v", err)
	}

	if _, err := s.GetMetric(a.ID, "cpu_usage"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMetric() after delete error = %v, want ErrNotFound", err)
	}
	// The same metric under the other service is untouched.
	if _, err := s.GetMetric(b.ID, "cpu_usage"); err != nil {
		t.Errorf("service B metric affected by service A delete: %v", err)
	}
}

func TestFormatRulesSeededInPriorityOrder(t *testing.T) {
	s := openTestStore(t)

	rules := s.FormatRules()
	if len(rules) != 3 {
		t.Fatalf("FormatRules() returned %d rules, want 3", len(rules))
	}
	for i := 1; i < len(rules); i++ {
		if rules[i].Priority > rules[i-1].Priority {
			t.Errorf("rules out of priority order: %v", rules)
		}
	}
	if rules[0].Pattern != "cpu" || rules[0].Replacement != "CPU" {
		t.Errorf("highest priority rule = %+v, want cpu->CPU", rules[0])
	}
}
