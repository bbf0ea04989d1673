package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is valid for both SQLite and PostgreSQL.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS sim_jobs (
    job_id INTEGER PRIMARY KEY,
    description TEXT NOT NULL DEFAULT '',
    node_config TEXT NOT NULL,
    timesteps INTEGER NOT NULL,
    relationship_csv TEXT NOT NULL DEFAULT '',
    include_job INTEGER NOT NULL DEFAULT 0,
    processed INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sim_jobs_include ON sim_jobs(include_job);
CREATE INDEX IF NOT EXISTS idx_sim_jobs_processed ON sim_jobs(processed);

-- Predator to prey links
CREATE TABLE IF NOT EXISTS sim_job_links (
    job_id INTEGER NOT NULL REFERENCES sim_jobs(job_id) ON DELETE CASCADE,
    predator INTEGER NOT NULL,
    prey INTEGER NOT NULL,
    PRIMARY KEY (job_id, predator, prey)
);

-- Observed biomass series
CREATE TABLE IF NOT EXISTS sim_job_biomass (
    job_id INTEGER NOT NULL REFERENCES sim_jobs(job_id) ON DELETE CASCADE,
    node_id INTEGER NOT NULL,
    timestep INTEGER NOT NULL,
    biomass DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (job_id, node_id, timestep)
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the tables if the database has no schema yet.
func InitSchema(ctx context.Context, db *sql.DB, rebind func(string) string) error {
	version, err := getSchemaVersion(ctx, db)
	if err == nil && version >= SchemaVersion {
		return nil
	}
	if err == nil && version > 0 {
		return fmt.Errorf("no migration from schema version %d", version)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		rebind(`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`),
		SchemaVersion, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

// getSchemaVersion returns the current schema version. It fails when the
// schema_version table does not exist.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return 0, err
	}
	return int(version.Int64), nil
}
