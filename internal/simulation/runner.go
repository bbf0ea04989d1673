package simulation

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/nvandessel/atnsim/internal/engine"
	"github.com/nvandessel/atnsim/internal/jobs"
)

// Runner saves scenarios as jobs and processes them with a real engine
// and store.
type Runner struct {
	engine *engine.Engine
	store  jobs.Store
}

// NewRunner creates a runner over an existing engine and store.
func NewRunner(e *engine.Engine, s jobs.Store) *Runner {
	return &Runner{engine: e, store: s}
}

// Run saves each scenario as job i+1 and processes them in order. sink,
// when non-nil, also receives each result. Scenario names must be unique.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario, sink engine.Sink) (SimulationResult, error) {
	result := SimulationResult{Results: make(map[string]*engine.Result, len(scenarios))}

	// Phase 1: Seed the store.
	names := make(map[int]string, len(scenarios))
	ids := make([]int, 0, len(scenarios))
	for i, sc := range scenarios {
		id := i + 1
		for _, other := range names {
			if other == sc.Name {
				return result, fmt.Errorf("duplicate scenario name %q", sc.Name)
			}
		}
		if err := r.store.SaveJob(ctx, sc.Job(id)); err != nil {
			return result, fmt.Errorf("save scenario %s: %w", sc.Name, err)
		}
		names[id] = sc.Name
		ids = append(ids, id)
	}

	// Phase 2: Process the batch.
	collect := func(ctx context.Context, res *engine.Result) error {
		result.Results[names[res.JobID]] = res
		if sink != nil {
			return sink(ctx, res)
		}
		return nil
	}
	summary, err := r.engine.ProcessJobs(ctx, r.store, engine.Selection{Mode: engine.ModeExplicit, IDs: ids}, collect)
	result.Summary = summary
	return result, err
}

// TestRunner wraps a Runner with an isolated SQLite store for tests.
type TestRunner struct {
	*Runner
	t *testing.T
}

// NewTestRunner creates a runner with default engine options and an
// isolated SQLite store under t.TempDir().
func NewTestRunner(t *testing.T) *TestRunner {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	s, err := jobs.Open(context.Background(), jobs.DriverSQLite, filepath.Join(tmpDir, "jobs.db"))
	if err != nil {
		t.Fatalf("NewTestRunner: failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	e, err := engine.New(engine.DefaultOptions())
	if err != nil {
		t.Fatalf("NewTestRunner: failed to create engine: %v", err)
	}
	return &TestRunner{Runner: NewRunner(e, s), t: t}
}

// MustRun runs scenarios and fails the test on a batch error.
func (r *TestRunner) MustRun(scenarios ...Scenario) SimulationResult {
	r.t.Helper()
	result, err := r.Run(context.Background(), scenarios, nil)
	if err != nil {
		r.t.Fatalf("MustRun: %v", err)
	}
	return result
}
