package registry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	constants "procwatch/config"
	"procwatch/internal/logger"
)

// Config controls where the registry lives and how it behaves.
type Config struct {
	// Path to the SQLite database file.
	Path string
	// TargetVersion is the schema version to migrate to.
	TargetVersion string
	// AllowSchemaReset permits the destructive recreation of a
	// pre-versioning database. Without it a legacy database is a fatal
	// startup error.
	AllowSchemaReset bool
	// CoreNameStyle selects the CPU core display form ("short" or
	// "long").
	CoreNameStyle string
	// ServiceMarker splits a qualified service name for display; the
	// part after the marker becomes the display name.
	ServiceMarker string
}

// Store is the metadata registry. Safe for use from a single goroutine;
// the agent's collection loop is the only writer.
type Store struct {
	db  *sql.DB
	cfg Config
	log *logger.Logger
}

// Open opens (creating if needed) the registry database and runs
// migrations to the configured target version.
func Open(cfg Config, log *logger.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("registry path is empty")
	}
	if cfg.TargetVersion == "" {
		cfg.TargetVersion = constants.METADATA_SCHEMA_VERSION
	}
	if cfg.CoreNameStyle == "" {
		cfg.CoreNameStyle = constants.CORE_STYLE_SHORT
	}
	if cfg.ServiceMarker == "" {
		cfg.ServiceMarker = constants.SERVICE_NAME_MARKER
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CoreNameStyle returns the configured CPU core display style.
func (s *Store) CoreNameStyle() string {
	return s.cfg.CoreNameStyle
}

// GetOrCreateHost returns the stable identity for a hostname, creating
// it on first sight and refreshing last_seen otherwise. On storage
// failure a degraded ephemeral identity is returned.
func (s *Store) GetOrCreateHost(hostname string) Identity {
	now := timestamp()

	var id string
	err := s.db.QueryRow(`SELECT id FROM hosts WHERE hostname = ?`, hostname).Scan(&id)
	switch {
	case err == nil:
		if _, err := s.db.Exec(`UPDATE hosts SET last_seen = ? WHERE id = ?`, now, id); err != nil {
			s.log.Error("Failed to refresh host %s: %v", hostname, err)
		}
		return Identity{ID: id, DisplayName: hostname}
	case err == sql.ErrNoRows:
		id = uuid.NewString()
		if _, err := s.db.Exec(
			`INSERT INTO hosts (id, hostname, first_seen, last_seen) VALUES (?, ?, ?, ?)`,
			id, hostname, now, now,
		); err != nil {
			// Lost a race with another writer; retry the lookup once.
			if ident, ok := s.retryHostLookup(hostname, now); ok {
				return ident
			}
			s.log.Error("Failed to create host %s: %v", hostname, err)
			return Identity{ID: uuid.NewString(), DisplayName: hostname, Degraded: true}
		}
		s.log.Info("Created new host entry: %s (ID: %s)", hostname, id)
		return Identity{ID: id, DisplayName: hostname}
	default:
		s.log.Error("Host lookup failed for %s: %v", hostname, err)
		return Identity{ID: uuid.NewString(), DisplayName: hostname, Degraded: true}
	}
}

func (s *Store) retryHostLookup(hostname, now string) (Identity, bool) {
	var id string
	if err := s.db.QueryRow(`SELECT id FROM hosts WHERE hostname = ?`, hostname).Scan(&id); err != nil {
		return Identity{}, false
	}
	s.db.Exec(`UPDATE hosts SET last_seen = ? WHERE id = ?`, now, id)
	return Identity{ID: id, DisplayName: hostname}, true
}

// GetOrCreateNamespace returns the stable identity for a service
// namespace. Same lifecycle as hosts.
func (s *Store) GetOrCreateNamespace(namespace string) Identity {
	now := timestamp()

	var id string
	err := s.db.QueryRow(`SELECT id FROM service_namespaces WHERE namespace = ?`, namespace).Scan(&id)
	switch {
	case err == nil:
		if _, err := s.db.Exec(`UPDATE service_namespaces SET last_seen = ? WHERE id = ?`, now, id); err != nil {
			s.log.Error("Failed to refresh namespace %s: %v", namespace, err)
		}
		return Identity{ID: id, DisplayName: namespace}
	case err == sql.ErrNoRows:
		id = uuid.NewString()
		if _, err := s.db.Exec(
			`INSERT INTO service_namespaces (id, namespace, first_seen, last_seen) VALUES (?, ?, ?, ?)`,
			id, namespace, now, now,
		); err != nil {
			var existing string
			if s.db.QueryRow(`SELECT id FROM service_namespaces WHERE namespace = ?`, namespace).Scan(&existing) == nil {
				return Identity{ID: existing, DisplayName: namespace}
			}
			s.log.Error("Failed to create namespace %s: %v", namespace, err)
			return Identity{ID: uuid.NewString(), DisplayName: namespace, Degraded: true}
		}
		s.log.Info("Created new namespace entry: %s (ID: %s)", namespace, id)
		return Identity{ID: id, DisplayName: namespace}
	default:
		s.log.Error("Namespace lookup failed for %s: %v", namespace, err)
		return Identity{ID: uuid.NewString(), DisplayName: namespace, Degraded: true}
	}
}

// GetOrCreateService upserts a service keyed by its sanitized full
// name. Empty version or description arguments preserve the stored
// values rather than blanking them. hostname and namespace, when
// non-empty, are upserted too and linked to the service.
func (s *Store) GetOrCreateService(fullName, version, description, hostname, namespace string) Identity {
	sanitized := SanitizeForMetrics(fullName)
	display := ServiceDisplayName(fullName, s.cfg.ServiceMarker, s.cfg.CoreNameStyle)
	now := timestamp()

	var hostID, namespaceID interface{}
	if hostname != "" {
		if h := s.GetOrCreateHost(hostname); !h.Degraded {
			hostID = h.ID
		}
	}
	if namespace != "" {
		if n := s.GetOrCreateNamespace(namespace); !n.Degraded {
			namespaceID = n.ID
		}
	}

	var id string
	err := s.db.QueryRow(`SELECT id FROM services WHERE full_name = ?`, sanitized).Scan(&id)
	switch {
	case err == nil:
		if version == "" || description == "" {
			var storedVersion, storedDescription sql.NullString
			if s.db.QueryRow(`SELECT version, description FROM services WHERE id = ?`, id).
				Scan(&storedVersion, &storedDescription) == nil {
				if version == "" {
					version = storedVersion.String
				}
				if description == "" {
					description = storedDescription.String
				}
			}
		}
		if _, err := s.db.Exec(`
			UPDATE services
			SET display_name = ?, version = ?, description = ?, host_id = ?, namespace_id = ?, last_seen = ?
			WHERE id = ?`,
			display, version, description, hostID, namespaceID, now, id,
		); err != nil {
			s.log.Error("Failed to refresh service %s: %v", fullName, err)
		}
		return Identity{ID: id, DisplayName: display}
	case err == sql.ErrNoRows:
		id = uuid.NewString()
		if _, err := s.db.Exec(`
			INSERT INTO services
			(id, full_name, display_name, version, description, host_id, namespace_id, first_seen, last_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, sanitized, display, version, description, hostID, namespaceID, now, now,
		); err != nil {
			var existing string
			if s.db.QueryRow(`SELECT id FROM services WHERE full_name = ?`, sanitized).Scan(&existing) == nil {
				return Identity{ID: existing, DisplayName: display}
			}
			s.log.Error("Failed to create service %s: %v", fullName, err)
			return Identity{ID: uuid.NewString(), DisplayName: display, Degraded: true}
		}
		s.log.Info("Created new service: %s -> %s (ID: %s)", fullName, sanitized, id)
		return Identity{ID: id, DisplayName: display}
	default:
		s.log.Error("Service lookup failed for %s: %v", fullName, err)
		return Identity{ID: uuid.NewString(), DisplayName: display, Degraded: true}
	}
}

// hasOtelType reports whether the metric rows carry an instrument kind
// column. The row shape is fixed by the configured target version, not
// probed at runtime.
func (s *Store) hasOtelType() bool {
	return s.cfg.TargetVersion != "1.0"
}

// GetOrCreateMetric upserts a metric keyed by (service, name). The
// display name is always recomputed; when it differs from the stored
// one the descriptive columns are refreshed as well, otherwise only
// last_seen moves.
func (s *Store) GetOrCreateMetric(serviceID string, spec MetricSpec) Identity {
	display := FormatMetricName(spec.Name, s.cfg.CoreNameStyle)
	now := timestamp()
	if spec.Format == "" {
		spec.Format = FormatNumber
	}
	if spec.Otel == "" {
		spec.Otel = InferOtelType(spec.Name, spec.IsCounter)
	}

	var id, storedDisplay string
	err := s.db.QueryRow(
		`SELECT id, display_name FROM metrics WHERE service_id = ? AND name = ?`,
		serviceID, spec.Name,
	).Scan(&id, &storedDisplay)
	switch {
	case err == nil:
		if storedDisplay != display {
			var refreshErr error
			if s.hasOtelType() {
				_, refreshErr = s.db.Exec(`
					UPDATE metrics
					SET display_name = ?, unit = ?, format_type = ?, decimal_places = ?,
					    is_percentage = ?, otel_type = ?, last_seen = ?
					WHERE id = ?`,
					display, spec.Unit, string(spec.Format), spec.Decimals,
					spec.IsPercentage, string(spec.Otel), now, id)
			} else {
				_, refreshErr = s.db.Exec(`
					UPDATE metrics
					SET display_name = ?, unit = ?, format_type = ?, decimal_places = ?,
					    is_percentage = ?, last_seen = ?
					WHERE id = ?`,
					display, spec.Unit, string(spec.Format), spec.Decimals,
					spec.IsPercentage, now, id)
			}
			if refreshErr != nil {
				s.log.Error("Failed to refresh metric %s: %v", spec.Name, refreshErr)
			}
		} else if _, err := s.db.Exec(`UPDATE metrics SET last_seen = ? WHERE id = ?`, now, id); err != nil {
			s.log.Error("Failed to touch metric %s: %v", spec.Name, err)
		}
		return Identity{ID: id, DisplayName: display}
	case err == sql.ErrNoRows:
		id = uuid.NewString()
		var insertErr error
		if s.hasOtelType() {
			_, insertErr = s.db.Exec(`
				INSERT INTO metrics
				(id, service_id, name, display_name, unit, format_type, decimal_places,
				 is_percentage, is_counter, otel_type, first_seen, last_seen)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, serviceID, spec.Name, display, spec.Unit, string(spec.Format),
				spec.Decimals, spec.IsPercentage, spec.IsCounter, string(spec.Otel), now, now)
		} else {
			_, insertErr = s.db.Exec(`
				INSERT INTO metrics
				(id, service_id, name, display_name, unit, format_type, decimal_places,
				 is_percentage, is_counter, first_seen, last_seen)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, serviceID, spec.Name, display, spec.Unit, string(spec.Format),
				spec.Decimals, spec.IsPercentage, spec.IsCounter, now, now)
		}
		if insertErr != nil {
			var existing string
			if s.db.QueryRow(
				`SELECT id FROM metrics WHERE service_id = ? AND name = ?`, serviceID, spec.Name,
			).Scan(&existing) == nil {
				s.db.Exec(`UPDATE metrics SET last_seen = ? WHERE id = ?`, now, existing)
				return Identity{ID: existing, DisplayName: display}
			}
			s.log.Error("Failed to create metric %s: %v", spec.Name, insertErr)
			return Identity{ID: uuid.NewString(), DisplayName: display, Degraded: true}
		}
		s.log.Info("Created new metric: %s (ID: %s)", spec.Name, id)
		return Identity{ID: id, DisplayName: display}
	default:
		s.log.Error("Metric lookup failed for %s: %v", spec.Name, err)
		return Identity{ID: uuid.NewString(), DisplayName: display, Degraded: true}
	}
}

// metricColumns returns the SELECT column list for the configured row
// shape. The v1.0 shape has no otel_type column.
func (s *Store) metricColumns() string {
	cols := `id, name, display_name, unit, format_type, decimal_places,
		is_percentage, is_counter`
	if s.hasOtelType() {
		cols += `, otel_type`
	}
	return cols
}

func (s *Store) scanMetric(scan func(dest ...interface{}) error) (*MetricRecord, error) {
	var (
		rec          MetricRecord
		unit         sql.NullString
		format, otel sql.NullString
	)
	dest := []interface{}{&rec.ID, &rec.Name, &rec.DisplayName, &unit,
		&format, &rec.Decimals, &rec.IsPercentage, &rec.IsCounter}
	if s.hasOtelType() {
		dest = append(dest, &otel)
	}
	if err := scan(dest...); err != nil {
		return nil, err
	}
	rec.Unit = unit.String
	rec.Format, _ = ParseFormatType(format.String)
	if s.hasOtelType() {
		rec.Otel, _ = ParseOtelType(otel.String)
	} else {
		rec.Otel = InferOtelType(rec.Name, rec.IsCounter)
	}
	return &rec, nil
}

// MetricsForService lists the persisted metrics of one service.
func (s *Store) MetricsForService(serviceID string) ([]MetricRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+s.metricColumns()+` FROM metrics WHERE service_id = ?`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MetricRecord
	for rows.Next() {
		rec, err := s.scanMetric(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// GetService looks up one service row by its raw name. The name is
// sanitized the same way the upsert path sanitizes it.
func (s *Store) GetService(fullName string) (*ServiceRecord, error) {
	var rec ServiceRecord
	var version, description sql.NullString
	err := s.db.QueryRow(`
		SELECT id, full_name, display_name, version, description, first_seen, last_seen
		FROM services WHERE full_name = ?`, SanitizeForMetrics(fullName)).
		Scan(&rec.ID, &rec.FullName, &rec.DisplayName, &version, &description, &rec.FirstSeen, &rec.LastSeen)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Version = version.String
	rec.Description = description.String
	return &rec, nil
}

// GetMetric looks up one metric row by its natural key.
func (s *Store) GetMetric(serviceID, name string) (*MetricRecord, error) {
	row := s.db.QueryRow(
		`SELECT `+s.metricColumns()+` FROM metrics WHERE service_id = ? AND name = ?`,
		serviceID, name)
	rec, err := s.scanMetric(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteMetric removes a metric row by its natural key. Deleting a
// missing metric is not an error.
func (s *Store) DeleteMetric(serviceID, name string) error {
	_, err := s.db.Exec(`DELETE FROM metrics WHERE service_id = ? AND name = ?`, serviceID, name)
	return err
}

// FormatRules returns all rules in descending priority order, falling
// back to the built-in defaults when the database cannot be read.
func (s *Store) FormatRules() []FormatRule {
	rows, err := s.db.Query(`
		SELECT pattern, replacement, rule_type, priority
		FROM format_rules ORDER BY priority DESC`)
	if err != nil {
		s.log.Error("Failed to read format rules: %v", err)
		return defaultFormatRules()
	}
	defer rows.Close()

	var rules []FormatRule
	for rows.Next() {
		var r FormatRule
		if err := rows.Scan(&r.Pattern, &r.Replacement, &r.RuleType, &r.Priority); err != nil {
			s.log.Error("Failed to scan format rule: %v", err)
			return defaultFormatRules()
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil || len(rules) == 0 {
		return defaultFormatRules()
	}
	return rules
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
