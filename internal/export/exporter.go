// Package export ships collected snapshots to an OTLP endpoint using
// observable instruments. One instrument is registered per catalog
// metric; callbacks read the latest snapshot, so cycles without data
// simply report nothing.
package export

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	constants "procwatch/config"
	"procwatch/internal/catalog"
	"procwatch/internal/logger"
	"procwatch/internal/procscan"
	"procwatch/internal/registry"
	"procwatch/pkg/utils"
)

// =============================================================================
// Configuration
// =============================================================================

// Config describes the OTLP connection and the resource identity
// attached to every exported metric.
type Config struct {
	Endpoint string
	Protocol string // "grpc" or "http"
	Insecure bool
	Headers  map[string]string

	ServiceName      string
	ServiceVersion   string
	ServiceNamespace string
	Hostname         string

	Interval time.Duration
}

// =============================================================================
// Exporter
// =============================================================================

// Exporter owns the meter provider and the registered instruments.
// Record replaces the snapshot the instrument callbacks read from; the
// periodic reader drives the actual export.
type Exporter struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
	log      *logger.Logger

	mu       sync.RWMutex
	snapshot *procscan.Snapshot
}

// New connects to the OTLP endpoint and builds the meter provider. No
// instruments exist until Register is called.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*Exporter, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = constants.DEFAULT_OTLP_ENDPOINT
	}
	if cfg.Interval == 0 {
		cfg.Interval = constants.DEFAULT_COLLECTION_INTERVAL * time.Second
	}

	exporter, err := newOTLPExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	hostname := cfg.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.HostName(hostname),
		attribute.String("os.type", runtime.GOOS),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.ServiceNamespace != "" {
		attrs = append(attrs, semconv.ServiceNamespace(cfg.ServiceNamespace))
	}
	res := resource.NewWithAttributes(semconv.SchemaURL, attrs...)

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter,
				sdkmetric.WithInterval(cfg.Interval),
			),
		),
	)

	meter := provider.Meter(constants.OTEL_SCOPE_NAME,
		metric.WithInstrumentationVersion(constants.OTEL_SCOPE_VER),
	)

	return &Exporter{provider: provider, meter: meter, log: log}, nil
}

func newOTLPExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	switch cfg.Protocol {
	case constants.OTLP_PROTOCOL_GRPC, "":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(cfg.Headers))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case constants.OTLP_PROTOCOL_HTTP:
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			otlpmetrichttp.WithURLPath(constants.OTLP_EXPORT_PATH),
			otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{
				Enabled:         true,
				InitialInterval: 5 * time.Second,
				MaxInterval:     30 * time.Second,
				MaxElapsedTime:  2 * time.Minute,
			}),
			otlpmetrichttp.WithTimeout(30 * time.Second),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(cfg.Headers))
		}
		return otlpmetrichttp.New(ctx, opts...)
	}
	return nil, fmt.Errorf("unknown OTLP protocol %q", cfg.Protocol)
}

// =============================================================================
// Instrument Registration
// =============================================================================

// Register creates one observable instrument per catalog metric. The
// instrument name is the short form of the metric name; the kind
// follows the metric's instrument type.
func (e *Exporter) Register(metrics []catalog.Metric) error {
	for _, m := range metrics {
		if err := e.registerMetric(m); err != nil {
			return fmt.Errorf("register %s: %w", m.Name, err)
		}
	}
	e.log.Info("Registered %d observable metrics", len(metrics))
	return nil
}

func (e *Exporter) registerMetric(m catalog.Metric) error {
	name := registry.SimpleMetricName(m.Name)
	unit := m.Unit
	if unit == "" {
		unit = "1"
	}

	switch m.Otel {
	case registry.OtelCounter:
		_, err := e.meter.Int64ObservableCounter(name,
			metric.WithDescription(m.Description),
			metric.WithUnit(unit),
			metric.WithInt64Callback(e.int64Callback(m)),
		)
		return err
	case registry.OtelUpDownCounter:
		_, err := e.meter.Int64ObservableUpDownCounter(name,
			metric.WithDescription(m.Description),
			metric.WithUnit(unit),
			metric.WithInt64Callback(e.int64Callback(m)),
		)
		return err
	default:
		_, err := e.meter.Float64ObservableGauge(name,
			metric.WithDescription(m.Description),
			metric.WithUnit(unit),
			metric.WithFloat64Callback(e.float64Callback(m)),
		)
		return err
	}
}

func (e *Exporter) float64Callback(m catalog.Metric) metric.Float64Callback {
	key := m.Name
	return func(ctx context.Context, o metric.Float64Observer) error {
		snap := e.current()
		if snap == nil {
			return nil
		}
		value, ok := snap.Values[key]
		if !ok {
			return nil
		}
		value = registry.FormatMetricValue(value, m.IsPercentage, m.IsCounter, m.Decimals)
		o.Observe(value, metric.WithAttributes(snapshotAttributes(snap)...))
		return nil
	}
}

func (e *Exporter) int64Callback(m catalog.Metric) metric.Int64Callback {
	key := m.Name
	return func(ctx context.Context, o metric.Int64Observer) error {
		snap := e.current()
		if snap == nil {
			return nil
		}
		value, ok := snap.Values[key]
		if !ok {
			return nil
		}
		formatted := registry.FormatMetricValue(value, m.IsPercentage, true, 0)
		o.Observe(int64(formatted), metric.WithAttributes(snapshotAttributes(snap)...))
		return nil
	}
}

// snapshotAttributes carries the contributing pids as a diagnostic
// attribute. Pids are never exported as a numeric metric.
func snapshotAttributes(snap *procscan.Snapshot) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("monitored_pids", utils.JoinPIDs(snap.MonitoredPIDs)),
	}
}

// =============================================================================
// Snapshot Handoff
// =============================================================================

// Record publishes a snapshot to the instrument callbacks. A nil
// snapshot clears the previous one, so a cycle without matching
// processes exports no data points.
func (e *Exporter) Record(snap *procscan.Snapshot) {
	e.mu.Lock()
	e.snapshot = snap
	e.mu.Unlock()
}

func (e *Exporter) current() *procscan.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// =============================================================================
// Lifecycle
// =============================================================================

// ForceFlush pushes pending metrics immediately instead of waiting for
// the periodic reader.
func (e *Exporter) ForceFlush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return e.provider.ForceFlush(ctx)
}

// Shutdown flushes and releases the meter provider.
func (e *Exporter) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return e.provider.Shutdown(ctx)
}
