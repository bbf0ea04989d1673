package jobs

import (
	"context"
	"fmt"
	"strings"
)

// Store persists jobs. Implementations return *MissingJobError for unknown
// ids.
type Store interface {
	// LoadJob returns the job with the given id.
	LoadJob(ctx context.Context, id int) (*Job, error)
	// SaveJob inserts or replaces a job.
	SaveJob(ctx context.Context, job *Job) error
	// ListJobs returns every job ordered by id.
	ListJobs(ctx context.Context) ([]*Job, error)
	// IncludedJobIDs returns the ids of jobs flagged for inclusion.
	IncludedJobIDs(ctx context.Context) ([]int, error)
	// UnprocessedJobIDs returns the ids of jobs not yet processed.
	UnprocessedJobIDs(ctx context.Context) ([]int, error)
	// MarkProcessed flags a job as processed.
	MarkProcessed(ctx context.Context, id int) error
	// Close releases resources held by the store.
	Close() error
}

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open returns the store for driver. dsn is a file path for sqlite and a
// connection string for postgres; it is ignored for memory.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, DriverPostgres:
		return OpenSQL(ctx, strings.ToLower(driver), dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
