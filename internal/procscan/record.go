// Package procscan discovers OS processes matching a name pattern,
// classifies each match as a monitored unit or a descendant of one, and
// aggregates per-unit resource metrics into a single cycle snapshot.
package procscan

import (
	"time"
)

// Record holds the per-process attributes collected for one pid during a
// single collection cycle. Records are never persisted; they exist only
// for the duration of the cycle that produced them.
type Record struct {
	PID     int32
	PPID    int32
	Command string

	CPUPercent    float64
	MemoryPercent float64

	DiskReadBytes  uint64
	DiskWriteBytes uint64

	OpenFDs int32
	Threads int32

	VoluntaryCtxSwitches    int64
	NonvoluntaryCtxSwitches int64

	CPUUserTime   float64
	CPUSystemTime float64

	MemoryRSS uint64
	MemoryVMS uint64
}

// Snapshot is the aggregated output of one collection cycle: a flat map
// of metric key to numeric value, plus the contributing unit pids for
// diagnostics. MonitoredPIDs is never exported as a numeric metric.
type Snapshot struct {
	Values        map[string]float64
	MonitoredPIDs []int32
	CollectedAt   time.Time
}
