package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLStore implements Store on SQLite or PostgreSQL.
type SQLStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	driver string
}

// OpenSQL opens the database and initializes the schema. For sqlite, dsn is
// a file path whose parent directory is created if needed.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite", dsn+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
		if err == nil {
			// SQLite works best with a single writer.
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		db, err = sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("unsupported SQL driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := InitSchema(ctx, db, s.rebind); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LoadJob reads a job with its links and biomass series.
func (s *SQLStore) LoadJob(ctx context.Context, id int) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job := &Job{ID: id}
	var include, processed int
	var created string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT description, node_config, timesteps, relationship_csv, include_job, processed, created_at
		FROM sim_jobs WHERE job_id = ?`), id).Scan(
		&job.Description, &job.NodeConfig, &job.Timesteps, &job.RelationshipCSV, &include, &processed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &MissingJobError{JobID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %d: %w", id, err)
	}
	job.Include = include != 0
	job.Processed = processed != 0
	if created != "" {
		if job.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("job %d created_at: %w", id, err)
		}
	}

	if err := s.loadLinks(ctx, job); err != nil {
		return nil, err
	}
	if err := s.loadBiomass(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *SQLStore) loadLinks(ctx context.Context, job *Job) error {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT predator, prey FROM sim_job_links WHERE job_id = ? ORDER BY predator, prey`), job.ID)
	if err != nil {
		return fmt.Errorf("failed to query links for job %d: %w", job.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var pred, prey int
		if err := rows.Scan(&pred, &prey); err != nil {
			return fmt.Errorf("failed to scan link: %w", err)
		}
		if job.Links == nil {
			job.Links = make(map[int][]int)
		}
		job.Links[pred] = append(job.Links[pred], prey)
	}
	return rows.Err()
}

func (s *SQLStore) loadBiomass(ctx context.Context, job *Job) error {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT node_id, timestep, biomass FROM sim_job_biomass WHERE job_id = ? ORDER BY node_id, timestep`), job.ID)
	if err != nil {
		return fmt.Errorf("failed to query biomass for job %d: %w", job.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var node, t int
		var v float64
		if err := rows.Scan(&node, &t, &v); err != nil {
			return fmt.Errorf("failed to scan biomass: %w", err)
		}
		if job.Biomass == nil {
			job.Biomass = make(map[int][]float64)
		}
		series := job.Biomass[node]
		for len(series) <= t {
			series = append(series, 0)
		}
		series[t] = v
		job.Biomass[node] = series
	}
	return rows.Err()
}

// SaveJob upserts the job and replaces its links and biomass series.
func (s *SQLStore) SaveJob(ctx context.Context, job *Job) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	created := job.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO sim_jobs (job_id, description, node_config, timesteps, relationship_csv, include_job, processed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO UPDATE SET
			description = excluded.description,
			node_config = excluded.node_config,
			timesteps = excluded.timesteps,
			relationship_csv = excluded.relationship_csv,
			include_job = excluded.include_job,
			processed = excluded.processed,
			created_at = excluded.created_at`),
		job.ID, job.Description, job.NodeConfig, job.Timesteps, job.RelationshipCSV,
		boolInt(job.Include), boolInt(job.Processed), created.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert job %d: %w", job.ID, err)
	}

	for _, table := range []string{"sim_job_links", "sim_job_biomass"} {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM `+table+` WHERE job_id = ?`), job.ID); err != nil {
			return fmt.Errorf("failed to clear %s for job %d: %w", table, job.ID, err)
		}
	}

	preds := job.PredatorIDs()
	for _, pred := range preds {
		for _, prey := range job.Links[pred] {
			if _, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO sim_job_links (job_id, predator, prey) VALUES (?, ?, ?)
				ON CONFLICT DO NOTHING`), job.ID, pred, prey); err != nil {
				return fmt.Errorf("failed to insert link %d->%d: %w", pred, prey, err)
			}
		}
	}

	nodes := make([]int, 0, len(job.Biomass))
	for id := range job.Biomass {
		nodes = append(nodes, id)
	}
	sort.Ints(nodes)
	for _, node := range nodes {
		for t, v := range job.Biomass[node] {
			if _, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO sim_job_biomass (job_id, node_id, timestep, biomass) VALUES (?, ?, ?, ?)`),
				job.ID, node, t, v); err != nil {
				return fmt.Errorf("failed to insert biomass for node %d: %w", node, err)
			}
		}
	}

	return tx.Commit()
}

// ListJobs returns every job ordered by id.
func (s *SQLStore) ListJobs(ctx context.Context) ([]*Job, error) {
	ids, err := s.queryIDs(ctx, `SELECT job_id FROM sim_jobs ORDER BY job_id`)
	if err != nil {
		return nil, err
	}
	out := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.LoadJob(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

// IncludedJobIDs returns the ids of included jobs, ascending.
func (s *SQLStore) IncludedJobIDs(ctx context.Context) ([]int, error) {
	return s.queryIDs(ctx, `SELECT job_id FROM sim_jobs WHERE include_job = 1 ORDER BY job_id`)
}

// UnprocessedJobIDs returns the ids of unprocessed jobs, ascending.
func (s *SQLStore) UnprocessedJobIDs(ctx context.Context) ([]int, error) {
	return s.queryIDs(ctx, `SELECT job_id FROM sim_jobs WHERE processed = 0 ORDER BY job_id`)
}

// MarkProcessed flags the job as processed.
func (s *SQLStore) MarkProcessed(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE sim_jobs SET processed = 1 WHERE job_id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to mark job %d processed: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark job %d processed: %w", id, err)
	}
	if n == 0 {
		return &MissingJobError{JobID: id}
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) queryIDs(ctx context.Context, query string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, s.rebind(query))
	if err != nil {
		return nil, fmt.Errorf("failed to query job ids: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
