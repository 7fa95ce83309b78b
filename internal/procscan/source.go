package procscan

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
)

// Source enumerates the processes visible to the agent. The production
// implementation reads the live process table; tests substitute a fixed
// slice of records.
type Source interface {
	Snapshot(ctx context.Context, m *Matcher) ([]Record, error)
}

// SystemSource reads the live process table via gopsutil. Processes that
// vanish mid-scan or deny access to individual attributes are tolerated:
// a missing attribute is recorded as zero, and a process whose name or
// parent cannot be read is skipped entirely.
type SystemSource struct{}

// NewSystemSource returns a Source backed by the host process table.
func NewSystemSource() *SystemSource {
	return &SystemSource{}
}

// Snapshot walks the process table and returns one Record per process
// whose command name matches m.
func (s *SystemSource) Snapshot(ctx context.Context, m *Matcher) ([]Record, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, 8)
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !m.Match(name) {
			continue
		}
		ppid, err := p.PpidWithContext(ctx)
		if err != nil {
			// Without a parent pid the process cannot be classified.
			continue
		}
		rec := Record{PID: p.Pid, PPID: ppid, Command: name}
		fillRecord(ctx, p, &rec)
		records = append(records, rec)
	}
	return records, nil
}

// fillRecord collects the optional per-process attributes, treating any
// individual failure as a zero value rather than an error.
func fillRecord(ctx context.Context, p *process.Process, rec *Record) {
	if v, err := p.CPUPercentWithContext(ctx); err == nil {
		rec.CPUPercent = v
	}
	if v, err := p.MemoryPercentWithContext(ctx); err == nil {
		rec.MemoryPercent = float64(v)
	}
	if io, err := p.IOCountersWithContext(ctx); err == nil && io != nil {
		rec.DiskReadBytes = io.ReadBytes
		rec.DiskWriteBytes = io.WriteBytes
	}
	if v, err := p.NumFDsWithContext(ctx); err == nil {
		rec.OpenFDs = v
	}
	if v, err := p.NumThreadsWithContext(ctx); err == nil {
		rec.Threads = v
	}
	if cs, err := p.NumCtxSwitchesWithContext(ctx); err == nil && cs != nil {
		rec.VoluntaryCtxSwitches = cs.Voluntary
		rec.NonvoluntaryCtxSwitches = cs.Involuntary
	}
	if t, err := p.TimesWithContext(ctx); err == nil && t != nil {
		rec.CPUUserTime = t.User
		rec.CPUSystemTime = t.System
	}
	if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
		rec.MemoryRSS = mi.RSS
		rec.MemoryVMS = mi.VMS
	}
}

// CoreSampler returns the current per-core CPU utilisation percentages.
type CoreSampler func(ctx context.Context) ([]float64, error)

// SystemCoreSampler reads per-core utilisation from the host. The first
// call establishes a baseline and may report zeros.
func SystemCoreSampler(ctx context.Context) ([]float64, error) {
	return cpu.PercentWithContext(ctx, 0, true)
}

// CoreCount returns the number of logical CPU cores, falling back to the
// Go runtime's view when the host query fails.
func CoreCount() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}
