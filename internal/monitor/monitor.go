// Package monitor wires process collection, the metadata registry, the
// metric catalog and the OTLP exporter into the agent's periodic loop.
package monitor

import (
	"context"
	"fmt"
	"os"
	"time"

	"procwatch/internal/catalog"
	"procwatch/internal/config"
	"procwatch/internal/export"
	"procwatch/internal/logger"
	"procwatch/internal/procscan"
	"procwatch/internal/registry"
	"procwatch/internal/service"
	"procwatch/pkg/utils"
)

// Monitor is one fully wired agent instance. Construction performs all
// startup work: schema migration, identity registration and catalog
// reconciliation. After New returns, Run (or RunCycle) only collects
// and exports.
type Monitor struct {
	cfg       *config.Config
	log       *logger.Logger
	store     *registry.Store
	collector *procscan.Collector
	exporter  *export.Exporter

	svc     registry.Identity
	metrics []catalog.Metric
}

// New builds the agent from configuration.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}
	store, err := registry.Open(registry.Config{
		Path:             dbPath,
		TargetVersion:    cfg.SchemaVersion,
		AllowSchemaReset: cfg.AllowSchemaReset,
		CoreNameStyle:    cfg.CoreNameStyle,
		ServiceMarker:    cfg.ServiceMarker,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("open metadata registry: %w", err)
	}

	hostname, _ := os.Hostname()
	svc := store.GetOrCreateService(cfg.ServiceName, cfg.Version, cfg.Description, hostname, cfg.Namespace)
	if svc.Degraded {
		log.Warning("Metadata storage unavailable, continuing with ephemeral identity for %s", cfg.ServiceName)
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
		if err != nil {
			store.Close()
			return nil, err
		}
	}
	metrics, err := cat.Expand(catalog.Facts{"cpu_count": procscan.CoreCount})
	if err != nil {
		store.Close()
		return nil, err
	}
	if !svc.Degraded {
		if err := catalog.Reconcile(store, svc.ID, metrics, log); err != nil {
			log.Warning("Catalog reconciliation incomplete: %v", err)
		}
	}

	var sampler procscan.CoreSampler
	if cfg.PerCoreCPU {
		sampler = procscan.SystemCoreSampler
	}
	collector, err := procscan.NewCollector(procscan.NewSystemSource(), cfg.ProcessPattern, sampler, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	exporter, err := export.New(ctx, export.Config{
		Endpoint:         cfg.OTLPEndpoint,
		Protocol:         cfg.OTLPProtocol,
		Insecure:         cfg.OTLPInsecure,
		Headers:          cfg.OTLPHeaders,
		ServiceName:      registry.SanitizeForMetrics(cfg.ServiceName),
		ServiceVersion:   cfg.Version,
		ServiceNamespace: cfg.Namespace,
		Hostname:         hostname,
		Interval:         cfg.Interval(),
	}, log)
	if err != nil {
		store.Close()
		return nil, err
	}
	if err := exporter.Register(metrics); err != nil {
		exporter.Shutdown(ctx)
		store.Close()
		return nil, err
	}

	return &Monitor{
		cfg:       cfg,
		log:       log,
		store:     store,
		collector: collector,
		exporter:  exporter,
		svc:       svc,
		metrics:   metrics,
	}, nil
}

// Service returns the registered service identity.
func (m *Monitor) Service() registry.Identity {
	return m.svc
}

// Metrics returns the expanded catalog the agent was built with.
func (m *Monitor) Metrics() []catalog.Metric {
	return m.metrics
}

// RunCycle performs one collection pass and hands the result to the
// exporter. A cycle that finds no matching processes is logged and
// exports nothing; it is not an error.
func (m *Monitor) RunCycle(ctx context.Context) error {
	snap, err := m.collector.Collect(ctx)
	if err != nil {
		return err
	}
	if snap == nil {
		m.log.Warning("No processes matching pattern %q this cycle", m.cfg.ProcessPattern)
		m.exporter.Record(nil)
		return nil
	}

	m.exporter.Record(snap)
	m.log.Info("Cycle complete: %d metrics, %d units (pids %s)",
		len(snap.Values), len(snap.MonitoredPIDs), utils.JoinPIDs(snap.MonitoredPIDs))
	return nil
}

// Run drives the periodic loop until ctx is cancelled. The first cycle
// runs immediately and is flushed so the backend sees data without
// waiting a full interval.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.RunCycle(ctx); err != nil {
		m.log.Error("Initial collection failed: %v", err)
	}
	if err := m.exporter.ForceFlush(ctx); err != nil {
		m.log.Warning("Initial flush failed: %v", err)
	}

	service.NotifyReady()
	service.NotifyStatus(fmt.Sprintf("monitoring %s", m.cfg.ProcessPattern))

	ticker := time.NewTicker(m.cfg.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			service.NotifyStopping()
			return m.Close(context.Background())
		case <-ticker.C:
			service.NotifyWatchdog()
			if err := m.RunCycle(ctx); err != nil {
				m.log.Error("Collection cycle failed: %v", err)
			}
		}
	}
}

// Close flushes pending metrics and releases the exporter and registry.
func (m *Monitor) Close(ctx context.Context) error {
	err := m.exporter.Shutdown(ctx)
	if cerr := m.store.Close(); err == nil {
		err = cerr
	}
	return err
}
