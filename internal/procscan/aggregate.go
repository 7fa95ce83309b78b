package procscan

import (
	"fmt"
	"time"

	constants "procwatch/config"
	"procwatch/pkg/utils"
)

// Aggregate folds the unit records into one Snapshot. CPU and memory
// percentages are summed across units so that the reported figure is the
// total footprint of the monitored trees, then rounded to a fixed number
// of decimals. Counters are plain sums. Per-unit thread statistics are
// included whenever at least one unit contributed a thread count.
//
// perCore, when non-nil, is the host-wide per-core utilisation sample;
// cores with zero activity are omitted from the snapshot.
func Aggregate(procs map[int32]Record, roots []int32, perCore []float64) *Snapshot {
	if len(roots) == 0 {
		return nil
	}

	var (
		totalCPU, totalMemory       float64
		totalRead, totalWrite       uint64
		totalFDs, totalThreads      int64
		totalVolCtx, totalNonvolCtx int64
		totalUserTime, totalSysTime float64
		totalRSS, totalVMS          uint64
		threadCounts                []int32
	)

	for _, pid := range roots {
		rec := procs[pid]
		totalCPU += rec.CPUPercent
		totalMemory += rec.MemoryPercent
		totalRead += rec.DiskReadBytes
		totalWrite += rec.DiskWriteBytes
		totalFDs += int64(rec.OpenFDs)
		totalThreads += int64(rec.Threads)
		threadCounts = append(threadCounts, rec.Threads)
		totalVolCtx += rec.VoluntaryCtxSwitches
		totalNonvolCtx += rec.NonvoluntaryCtxSwitches
		totalUserTime += rec.CPUUserTime
		totalSysTime += rec.CPUSystemTime
		totalRSS += rec.MemoryRSS
		totalVMS += rec.MemoryVMS
	}

	values := map[string]float64{
		"cpu_usage":                 utils.Round(totalCPU, constants.CPU_MEMORY_DECIMALS),
		"memory_usage":              utils.Round(totalMemory, constants.CPU_MEMORY_DECIMALS),
		"process_count":             float64(len(roots)),
		"disk_read_bytes":           float64(totalRead),
		"disk_write_bytes":          float64(totalWrite),
		"open_file_descriptors":     float64(totalFDs),
		"thread_count":              float64(totalThreads),
		"voluntary_ctx_switches":    float64(totalVolCtx),
		"nonvoluntary_ctx_switches": float64(totalNonvolCtx),
		"cpu_user_time_total":       utils.Round(totalUserTime, 2),
		"cpu_system_time_total":     utils.Round(totalSysTime, 2),
		"memory_rss_total":          float64(totalRSS),
		"memory_vms_total":          float64(totalVMS),
	}

	if len(threadCounts) > 0 {
		maxT, minT := threadCounts[0], threadCounts[0]
		var sumT int64
		for _, t := range threadCounts {
			if t > maxT {
				maxT = t
			}
			if t < minT {
				minT = t
			}
			sumT += int64(t)
		}
		values["max_threads_per_process"] = float64(maxT)
		values["min_threads_per_process"] = float64(minT)
		values["avg_threads_per_process"] = utils.Round(float64(sumT)/float64(len(threadCounts)), constants.THREAD_AVG_DECIMALS)
	}

	for i, pct := range perCore {
		if pct > 0 {
			values[fmt.Sprintf("cpu_core_%d", i)] = utils.Round(pct, constants.CPU_MEMORY_DECIMALS)
		}
	}

	return &Snapshot{
		Values:        values,
		MonitoredPIDs: roots,
		CollectedAt:   time.Now(),
	}
}
