package procscan

import (
	"context"
	"fmt"

	"procwatch/internal/logger"
	"procwatch/pkg/utils"
)

// Collector runs one discovery and aggregation pass per call. A nil
// snapshot with a nil error means no matching processes were found this
// cycle; that is an expected condition, not a failure.
type Collector struct {
	source  Source
	matcher *Matcher
	sampler CoreSampler
	log     *logger.Logger
}

// NewCollector builds a collector for the given pattern. sampler may be
// nil to disable per-core CPU collection.
func NewCollector(source Source, pattern string, sampler CoreSampler, log *logger.Logger) (*Collector, error) {
	m, err := NewMatcher(pattern)
	if err != nil {
		return nil, err
	}
	return &Collector{source: source, matcher: m, sampler: sampler, log: log}, nil
}

// Collect performs one full cycle: enumerate, classify, aggregate.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	records, err := c.source.Snapshot(ctx, c.matcher)
	if err != nil {
		return nil, fmt.Errorf("process scan failed: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	procs, roots := Classify(records)
	if len(roots) == 0 {
		return nil, nil
	}

	var perCore []float64
	if c.sampler != nil {
		perCore, err = c.sampler(ctx)
		if err != nil {
			c.log.Warning("Per-core CPU sample failed: %v", err)
			perCore = nil
		}
	}

	snap := Aggregate(procs, roots, perCore)
	if snap != nil {
		c.log.Debug("Collected %d metrics from %d units (pids %s)",
			len(snap.Values), len(roots), utils.JoinPIDs(snap.MonitoredPIDs))
	}
	return snap, nil
}
