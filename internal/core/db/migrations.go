package db

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	embeddedmigrations "github.com/solatis/approvalgate/migrations"
)

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *time.Time
	ExecutionMs int64
}

// migration represents a parsed migration file
type migration struct {
	ID       string
	Checksum string
	SQL      string
}

// migrationSource selects the embedded migrations for the connection's driver.
func migrationSource(db *sqlx.DB) (embed.FS, string, error) {
	switch db.DriverName() {
	case DriverSQLite:
		return embeddedmigrations.SqliteMigrations, "sqlite", nil
	case DriverPostgres:
		return embeddedmigrations.PostgresMigrations, "postgres", nil
	default:
		return embed.FS{}, "", fmt.Errorf("unsupported database driver: %s", db.DriverName())
	}
}

// loadMigrations prepares the tracking table and parses the embedded files.
func loadMigrations(ctx context.Context, db *sqlx.DB) ([]migration, error) {
	migrationsFS, migrationsDir, err := migrationSource(db)
	if err != nil {
		return nil, err
	}

	if err := createMigrationsTable(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := parseMigrationFiles(migrationsFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrations: %w", err)
	}
	return migrations, nil
}

// MigrateUp runs all pending migrations against the database.
// Validates checksums of applied migrations, then applies pending ones in
// filename order, each in its own transaction.
func MigrateUp(ctx context.Context, db *sqlx.DB, logger *zap.Logger) error {
	migrations, err := loadMigrations(ctx, db)
	if err != nil {
		return err
	}

	// SHA256 hash detects modification of applied migrations
	if err := validateChecksums(ctx, db, migrations); err != nil {
		return fmt.Errorf("migration checksum validation failed: %w", err)
	}

	applied, err := getAppliedMigrations(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}

		start := time.Now()

		// Migration and its bookkeeping row commit together
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", m.ID, err)
		}

		if err := applyMigration(ctx, tx, m); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %s: %w", m.ID, err)
		}

		duration := time.Since(start)

		if err := recordMigration(ctx, tx, m.ID, m.Checksum, duration); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.ID, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.ID, err)
		}

		logger.Info("applied migration",
			zap.String("migration_id", m.ID),
			zap.Int64("execution_ms", duration.Milliseconds()),
		)
	}

	return nil
}

// MigrateStatus returns the status of all migrations (applied and pending).
func MigrateStatus(ctx context.Context, db *sqlx.DB) ([]MigrationStatus, error) {
	migrations, err := loadMigrations(ctx, db)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryxContext(ctx, "SELECT migration_id, checksum, applied_at, execution_ms FROM migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]MigrationStatus)
	for rows.Next() {
		var status MigrationStatus
		var appliedAt time.Time
		if err := rows.Scan(&status.ID, &status.Checksum, &appliedAt, &status.ExecutionMs); err != nil {
			return nil, err
		}
		status.Applied = true
		status.AppliedAt = &appliedAt
		applied[status.ID] = status
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var statuses []MigrationStatus
	for _, m := range migrations {
		if s, ok := applied[m.ID]; ok {
			statuses = append(statuses, s)
		} else {
			statuses = append(statuses, MigrationStatus{
				ID:       m.ID,
				Checksum: m.Checksum,
			})
		}
	}

	return statuses, nil
}

// RequireMigrated fails when any embedded migration has not been applied.
func RequireMigrated(ctx context.Context, db *sqlx.DB) error {
	statuses, err := MigrateStatus(ctx, db)
	if err != nil {
		return err
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("migration %s not applied - run 'approvalgate migrate up' first", s.ID)
		}
	}
	return nil
}

// parseMigrationFiles extracts ordered list of migrations from embed.FS
func parseMigrationFiles(fsys fs.FS, dir string) ([]migration, error) {
	var migrations []migration

	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		hash := sha256.Sum256(content)
		migrations = append(migrations, migration{
			ID:       filepath.Base(path),
			Checksum: fmt.Sprintf("%x", hash),
			SQL:      string(content),
		})

		return nil
	})

	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].ID < migrations[j].ID
	})

	return migrations, nil
}

// createMigrationsTable ensures migrations tracking table exists
// IMPORTANT: Schema must match migrations table definition in 001_initial_schema.sql
func createMigrationsTable(ctx context.Context, db *sqlx.DB) error {
	createSQL := `
		CREATE TABLE IF NOT EXISTS migrations (
			migration_id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			execution_ms INTEGER NOT NULL
		)
	`
	if db.DriverName() == DriverPostgres {
		createSQL = strings.Replace(createSQL, "TIMESTAMP", "TIMESTAMP WITHOUT TIME ZONE", 1)
	}

	_, err := db.ExecContext(ctx, createSQL)
	return err
}

// getAppliedMigrations returns a set of applied migration IDs
func getAppliedMigrations(ctx context.Context, db *sqlx.DB) (map[string]bool, error) {
	var ids []string
	if err := db.SelectContext(ctx, &ids, "SELECT migration_id FROM migrations"); err != nil {
		return nil, err
	}

	applied := make(map[string]bool, len(ids))
	for _, id := range ids {
		applied[id] = true
	}
	return applied, nil
}

// validateChecksums verifies all applied migrations match embedded checksums
func validateChecksums(ctx context.Context, db *sqlx.DB, migrations []migration) error {
	var recorded []struct {
		ID       string `db:"migration_id"`
		Checksum string `db:"checksum"`
	}
	if err := db.SelectContext(ctx, &recorded, "SELECT migration_id, checksum FROM migrations"); err != nil {
		return err
	}

	checksumMap := make(map[string]string)
	for _, m := range migrations {
		checksumMap[m.ID] = m.Checksum
	}

	for _, r := range recorded {
		expected, ok := checksumMap[r.ID]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", r.ID)
		}
		if r.Checksum != expected {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", r.ID, expected, r.Checksum)
		}
	}

	return nil
}

// splitStatements splits migration SQL on semicolons and strips comment lines.
// lib/pq doesn't support multiple statements in single Exec.
func splitStatements(sqlText string) []string {
	var statements []string
	for _, chunk := range strings.Split(sqlText, ";") {
		var lines []string
		for _, line := range strings.Split(chunk, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// applyMigration executes a single migration SQL within a transaction
func applyMigration(ctx context.Context, tx *sqlx.Tx, m migration) error {
	for _, stmt := range splitStatements(m.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement failed: %w", err)
		}
	}
	return nil
}

// recordMigration stores migration metadata within a transaction
func recordMigration(ctx context.Context, tx *sqlx.Tx, id, checksum string, duration time.Duration) error {
	_, err := tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)"),
		id, checksum, time.Now().UTC(), duration.Milliseconds(),
	)
	return err
}
