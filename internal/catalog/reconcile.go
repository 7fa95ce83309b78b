package catalog

import (
	"fmt"

	"procwatch/internal/logger"
	"procwatch/internal/registry"
)

// Reconcile makes the registry's metric set for one service match the
// expanded catalog: every catalog metric is upserted, and persisted
// metrics no longer in the catalog are deleted. Metrics belonging to
// other services are never touched.
func Reconcile(store *registry.Store, serviceID string, metrics []Metric, log *logger.Logger) error {
	wanted := make(map[string]struct{}, len(metrics))
	for _, m := range metrics {
		wanted[m.Name] = struct{}{}
		if ident := store.GetOrCreateMetric(serviceID, m.Spec()); ident.Degraded {
			return fmt.Errorf("register metric %q: storage unavailable", m.Name)
		}
	}

	persisted, err := store.MetricsForService(serviceID)
	if err != nil {
		return fmt.Errorf("list persisted metrics: %w", err)
	}
	for _, rec := range persisted {
		if _, ok := wanted[rec.Name]; ok {
			continue
		}
		log.Info("Removing metric %s no longer in catalog", rec.Name)
		if err := store.DeleteMetric(serviceID, rec.Name); err != nil {
			return fmt.Errorf("delete metric %q: %w", rec.Name, err)
		}
	}
	return nil
}
