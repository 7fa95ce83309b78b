package procscan

import (
	"context"
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

func TestMatcherCaseInsensitive(t *testing.T) {
	m, err := NewMatcher("redis-server")
	if err != nil {
		t.Fatalf("NewMatcher() error = %v", err)
	}

	for _, cmd := range []string{"redis-server", "Redis-Server", "REDIS-SERVER *:6379"} {
		if !m.Match(cmd) {
			t.Errorf("Match(%q) = false, want true", cmd)
		}
	}
	if m.Match("nginx") {
		t.Errorf("Match(\"nginx\") = true, want false")
	}
}

func TestMatcherInvalidPattern(t *testing.T) {
	if _, err := NewMatcher("[unclosed"); err == nil {
		t.Error("NewMatcher(\"[unclosed\") expected error, got nil")
	}
	if _, err := NewMatcher(""); err == nil {
		t.Error("NewMatcher(\"\") expected error, got nil")
	}
}

func TestClassifyParentChild(t *testing.T) {
	// pid 10 is a unit (parent 1), pid 11 is its worker, pid 20 is a
	// second unit whose parent did not match.
	records := []Record{
		{PID: 11, PPID: 10, Command: "worker"},
		{PID: 10, PPID: 1, Command: "master"},
		{PID: 20, PPID: 5, Command: "master"},
	}

	procs, roots := Classify(records)

	if len(procs) != 3 {
		t.Errorf("Classify() map size = %d, want 3", len(procs))
	}
	if len(roots) != 2 || roots[0] != 10 || roots[1] != 20 {
		t.Errorf("Classify() roots = %v, want [10 20]", roots)
	}
}

func TestClassifyReparentedToInit(t *testing.T) {
	// Both processes match and 11's parent is pid 1, so 11 is a unit in
	// its own right even though pid 1 never appears in the match set.
	records := []Record{
		{PID: 10, PPID: 1},
		{PID: 11, PPID: 1},
	}

	_, roots := Classify(records)
	if len(roots) != 2 {
		t.Errorf("Classify() roots = %v, want two units", roots)
	}
}

func TestAggregateSumsAcrossUnits(t *testing.T) {
	procs := map[int32]Record{
		10: {PID: 10, CPUPercent: 10.12345, MemoryPercent: 1.5, DiskReadBytes: 100, Threads: 4, OpenFDs: 10, VoluntaryCtxSwitches: 7},
		20: {PID: 20, CPUPercent: 5.4, MemoryPercent: 2.5, DiskReadBytes: 50, Threads: 2, OpenFDs: 5, VoluntaryCtxSwitches: 3},
	}

	snap := Aggregate(procs, []int32{10, 20}, nil)
	if snap == nil {
		t.Fatal("Aggregate() = nil, want snapshot")
	}

	if got := snap.Values["cpu_usage"]; got != 15.5235 {
		t.Errorf("cpu_usage = %v, want 15.5235 (summed, 4 decimals)", got)
	}
	if got := snap.Values["memory_usage"]; got != 4.0 {
		t.Errorf("memory_usage = %v, want 4.0", got)
	}
	if got := snap.Values["process_count"]; got != 2 {
		t.Errorf("process_count = %v, want 2", got)
	}
	if got := snap.Values["disk_read_bytes"]; got != 150 {
		t.Errorf("disk_read_bytes = %v, want 150", got)
	}
	if got := snap.Values["open_file_descriptors"]; got != 15 {
		t.Errorf("open_file_descriptors = %v, want 15", got)
	}
	if got := snap.Values["voluntary_ctx_switches"]; got != 10 {
		t.Errorf("voluntary_ctx_switches = %v, want 10", got)
	}
	if len(snap.MonitoredPIDs) != 2 {
		t.Errorf("MonitoredPIDs = %v, want [10 20]", snap.MonitoredPIDs)
	}
}

func TestAggregateThreadStats(t *testing.T) {
	procs := map[int32]Record{
		10: {PID: 10, Threads: 4},
		20: {PID: 20, Threads: 9},
	}

	snap := Aggregate(procs, []int32{10, 20}, nil)
	if snap == nil {
		t.Fatal("Aggregate() = nil, want snapshot")
	}

	if got := snap.Values["thread_count"]; got != 13 {
		t.Errorf("thread_count = %v, want 13", got)
	}
	if got := snap.Values["max_threads_per_process"]; got != 9 {
		t.Errorf("max_threads_per_process = %v, want 9", got)
	}
	if got := snap.Values["min_threads_per_process"]; got != 4 {
		t.Errorf("min_threads_per_process = %v, want 4", got)
	}
	if got := snap.Values["avg_threads_per_process"]; got != 6.5 {
		t.Errorf("avg_threads_per_process = %v, want 6.5", got)
	}
}

func TestAggregatePerCoreSkipsIdleCores(t *testing.T) {
	procs := map[int32]Record{10: {PID: 10}}

	snap := Aggregate(procs, []int32{10}, []float64{12.5, 0, 3.25})
	if snap == nil {
		t.Fatal("Aggregate() = nil, want snapshot")
	}

	if got := snap.Values["cpu_core_0"]; got != 12.5 {
		t.Errorf("cpu_core_0 = %v, want 12.5", got)
	}
	if _, ok := snap.Values["cpu_core_1"]; ok {
		t.Error("cpu_core_1 present, want omitted for idle core")
	}
	if got := snap.Values["cpu_core_2"]; got != 3.25 {
		t.Errorf("cpu_core_2 = %v, want 3.25", got)
	}
}

func TestAggregateNoUnits(t *testing.T) {
	if snap := Aggregate(map[int32]Record{}, nil, nil); snap != nil {
		t.Errorf("Aggregate() = %v, want nil for empty unit set", snap)
	}
}

// fakeSource returns a fixed record slice regardless of the matcher.
type fakeSource struct {
	records []Record
}

func (f *fakeSource) Snapshot(ctx context.Context, m *Matcher) ([]Record, error) {
	return f.records, nil
}

func TestCollectorNoMatches(t *testing.T) {
	c, err := NewCollector(&fakeSource{}, "ghost-process", nil, testLogger(t))
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	snap, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if snap != nil {
		t.Errorf("Collect() = %v, want nil snapshot when nothing matches", snap)
	}
}

func TestCollectorAggregates(t *testing.T) {
	src := &fakeSource{records: []Record{
		{PID: 10, PPID: 1, CPUPercent: 1.0},
		{PID: 11, PPID: 10, CPUPercent: 2.0},
	}}

	c, err := NewCollector(src, "any", nil, testLogger(t))
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	snap, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if snap == nil {
		t.Fatal("Collect() = nil, want snapshot")
	}
	if got := snap.Values["process_count"]; got != 1 {
		t.Errorf("process_count = %v, want 1 (worker excluded)", got)
	}
	if got := snap.Values["cpu_usage"]; got != 1.0 {
		t.Errorf("cpu_usage = %v, want 1.0 (unit only)", got)
	}
}
