package catalog

import "procwatch/internal/registry"

// Default returns the built-in catalog, used when no catalog file is
// configured. It covers every key the process aggregator can produce.
func Default() *Catalog {
	return &Catalog{
		Static: []Metric{
			{Name: "cpu_usage", Description: "Total CPU usage of monitored process trees", Unit: "%", Decimals: 4, IsPercentage: true, Otel: registry.OtelGauge},
			{Name: "memory_usage", Description: "Total memory usage of monitored process trees", Unit: "%", Decimals: 4, IsPercentage: true, Otel: registry.OtelGauge},
			{Name: "process_count", Description: "Number of monitored top-level processes", Decimals: 0, IsCounter: true, Otel: registry.OtelUpDownCounter},
			{Name: "disk_read_bytes", Description: "Bytes read from disk", Unit: "By", Decimals: 0, IsCounter: true, Otel: registry.OtelCounter},
			{Name: "disk_write_bytes", Description: "Bytes written to disk", Unit: "By", Decimals: 0, IsCounter: true, Otel: registry.OtelCounter},
			{Name: "open_file_descriptors", Description: "Open file descriptors", Decimals: 0, IsCounter: true, Otel: registry.OtelUpDownCounter},
			{Name: "thread_count", Description: "Total threads across monitored processes", Decimals: 0, IsCounter: true, Otel: registry.OtelUpDownCounter},
			{Name: "voluntary_ctx_switches", Description: "Voluntary context switches", Decimals: 0, IsCounter: true, Otel: registry.OtelCounter},
			{Name: "nonvoluntary_ctx_switches", Description: "Involuntary context switches", Decimals: 0, IsCounter: true, Otel: registry.OtelCounter},
			{Name: "cpu_user_time_total", Description: "Accumulated user-mode CPU time", Unit: "s", Decimals: 2, Otel: registry.OtelGauge},
			{Name: "cpu_system_time_total", Description: "Accumulated kernel-mode CPU time", Unit: "s", Decimals: 2, Otel: registry.OtelGauge},
			{Name: "memory_rss_total", Description: "Resident set size", Unit: "By", Decimals: 0, IsCounter: true, Otel: registry.OtelUpDownCounter},
			{Name: "memory_vms_total", Description: "Virtual memory size", Unit: "By", Decimals: 0, IsCounter: true, Otel: registry.OtelUpDownCounter},
			{Name: "max_threads_per_process", Description: "Largest thread count among monitored processes", Decimals: 0, IsCounter: true, Otel: registry.OtelUpDownCounter},
			{Name: "min_threads_per_process", Description: "Smallest thread count among monitored processes", Decimals: 0, IsCounter: true, Otel: registry.OtelUpDownCounter},
			{Name: "avg_threads_per_process", Description: "Average thread count among monitored processes", Decimals: 2, Otel: registry.OtelGauge},
		},
		Templates: []Template{
			{
				Metric: Metric{
					Name:         "cpu_core_{index}",
					Description:  "CPU usage on core {index}",
					Unit:         "%",
					Decimals:     4,
					IsPercentage: true,
					Otel:         registry.OtelGauge,
				},
				Kind:   "indexed",
				Source: "cpu_count",
				Range:  "0-auto",
			},
		},
	}
}
