package registry

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"
)

// migration is one schema version transition. Transitions are linear
// and applied in order until the target version is reached; each one
// appends a row to the schema_version log.
type migration struct {
	version string
	apply   func(s *Store) error
}

var migrations = []migration{
	{version: "1.0", apply: (*Store).migrateTo10},
	{version: "2.0", apply: (*Store).migrateTo20},
}

// Migrate brings the database schema up to the configured target
// version. A database already at the target is left untouched.
func (s *Store) Migrate() error {
	current, err := s.currentSchemaVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	s.log.Debug("Schema version: current=%q target=%q", current, s.cfg.TargetVersion)

	if current == s.cfg.TargetVersion {
		return nil
	}

	start := 0
	if current != "" {
		idx := -1
		for i, m := range migrations {
			if m.version == current {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("unknown schema version %q in database", current)
		}
		start = idx + 1
	}

	targetIdx := -1
	for i, m := range migrations {
		if m.version == s.cfg.TargetVersion {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return fmt.Errorf("unknown target schema version %q", s.cfg.TargetVersion)
	}
	if targetIdx < start {
		return fmt.Errorf("database schema %q is newer than target %q", current, s.cfg.TargetVersion)
	}

	for _, m := range migrations[start : targetIdx+1] {
		s.log.Info("Migrating metadata schema to version %s", m.version)
		if err := m.apply(s); err != nil {
			return fmt.Errorf("migrate to %s: %w", m.version, err)
		}
		if err := s.setSchemaVersion(m.version); err != nil {
			return fmt.Errorf("record schema version %s: %w", m.version, err)
		}
	}
	return nil
}

// currentSchemaVersion returns the latest recorded version, or "" when
// the schema_version table does not exist yet.
func (s *Store) currentSchemaVersion() (string, error) {
	var name string
	err := s.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'`,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var version string
	// Timestamps only have second precision; the autoincrement id is
	// the reliable insertion order.
	err = s.db.QueryRow(
		`SELECT version FROM schema_version ORDER BY id DESC LIMIT 1`,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return version, nil
}

// setSchemaVersion appends a row to the schema_version log. The log is
// append-only; prior rows are never updated or deleted.
func (s *Store) setSchemaVersion(version string) error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version TEXT,
			created_date TIMESTAMP,
			updated_date TIMESTAMP
		)`); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`INSERT INTO schema_version (version, created_date, updated_date) VALUES (?, ?, ?)`,
		version, now, now,
	)
	return err
}

// migrateTo10 creates the canonical v1.0 tables. Any pre-existing
// tables indicate data from before the schema log existed; such a
// database cannot be upgraded in place and is recreated from scratch,
// but only when the operator has explicitly allowed the reset.
func (s *Store) migrateTo10() error {
	legacy, err := s.hasUserTables()
	if err != nil {
		return err
	}
	if legacy {
		if !s.cfg.AllowSchemaReset {
			return fmt.Errorf("metadata database %s predates schema versioning; set allow_schema_reset to recreate it (destroys existing metadata)", s.cfg.Path)
		}
		s.log.Warning("Legacy metadata database detected, deleting %s before recreating", s.cfg.Path)
		if err := s.reopenFresh(); err != nil {
			return err
		}
	}

	stmts := []string{
		`CREATE TABLE hosts (
			id TEXT PRIMARY KEY,
			hostname TEXT UNIQUE,
			first_seen TIMESTAMP,
			last_seen TIMESTAMP
		)`,
		`CREATE TABLE service_namespaces (
			id TEXT PRIMARY KEY,
			namespace TEXT UNIQUE,
			first_seen TIMESTAMP,
			last_seen TIMESTAMP
		)`,
		`CREATE TABLE services (
			id TEXT PRIMARY KEY,
			full_name TEXT UNIQUE,
			display_name TEXT,
			version TEXT,
			description TEXT,
			host_id TEXT,
			namespace_id TEXT,
			first_seen TIMESTAMP,
			last_seen TIMESTAMP,
			FOREIGN KEY (host_id) REFERENCES hosts(id),
			FOREIGN KEY (namespace_id) REFERENCES service_namespaces(id)
		)`,
		`CREATE TABLE metrics (
			id TEXT PRIMARY KEY,
			service_id TEXT,
			name TEXT,
			display_name TEXT,
			unit TEXT,
			format_type TEXT,
			decimal_places INTEGER DEFAULT 2,
			is_percentage BOOLEAN DEFAULT 0,
			is_counter BOOLEAN DEFAULT 0,
			first_seen TIMESTAMP,
			last_seen TIMESTAMP,
			FOREIGN KEY (service_id) REFERENCES services(id),
			UNIQUE(service_id, name)
		)`,
		`CREATE TABLE format_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pattern TEXT UNIQUE,
			replacement TEXT,
			rule_type TEXT,
			priority INTEGER
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}

	for _, r := range defaultFormatRules() {
		if _, err := s.db.Exec(
			`INSERT INTO format_rules (pattern, replacement, rule_type, priority) VALUES (?, ?, ?, ?)`,
			r.Pattern, r.Replacement, r.RuleType, r.Priority,
		); err != nil {
			return err
		}
	}
	return nil
}

// migrateTo20 adds the otel_type column and back-fills it for existing
// rows based on each metric's name and counter flag. Existing data is
// preserved.
func (s *Store) migrateTo20() error {
	if _, err := s.db.Exec(
		`ALTER TABLE metrics ADD COLUMN otel_type TEXT DEFAULT 'Gauge'`,
	); err != nil {
		return err
	}

	rows, err := s.db.Query(`SELECT id, name, is_counter FROM metrics`)
	if err != nil {
		return err
	}
	type backfill struct {
		id string
		ot OtelType
	}
	var updates []backfill
	for rows.Next() {
		var id, name string
		var isCounter bool
		if err := rows.Scan(&id, &name, &isCounter); err != nil {
			rows.Close()
			return err
		}
		updates = append(updates, backfill{id: id, ot: InferOtelType(name, isCounter)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, u := range updates {
		if _, err := s.db.Exec(
			`UPDATE metrics SET otel_type = ? WHERE id = ?`, string(u.ot), u.id,
		); err != nil {
			return err
		}
	}
	return nil
}

// InferOtelType guesses the instrument kind for a metric created before
// instrument kinds were recorded. Counters over byte, switch, read or
// write totals only ever grow; other counters may shrink.
func InferOtelType(name string, isCounter bool) OtelType {
	if !isCounter {
		return OtelGauge
	}
	lower := strings.ToLower(name)
	for _, kw := range []string{"bytes", "switches", "read", "write"} {
		if strings.Contains(lower, kw) {
			return OtelCounter
		}
	}
	return OtelUpDownCounter
}

// hasUserTables reports whether the database contains any non-internal
// tables.
func (s *Store) hasUserTables() (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// reopenFresh closes the database, removes the file and opens a new
// empty one at the same path.
func (s *Store) reopenFresh() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	if err := os.Remove(s.cfg.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	db, err := sql.Open("sqlite", s.cfg.Path)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}
