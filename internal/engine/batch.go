package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/nvandessel/atnsim/internal/integrator"
	"github.com/nvandessel/atnsim/internal/jobs"
	"github.com/nvandessel/atnsim/internal/telemetry"
)

// Mode selects which jobs a batch processes.
type Mode int

const (
	// ModeExplicit processes the listed job ids.
	ModeExplicit Mode = iota
	// ModeIncluded processes every job flagged for inclusion.
	ModeIncluded
	// ModeUnprocessed processes every job not yet processed and marks
	// each one processed once it yields a result.
	ModeUnprocessed
)

func (m Mode) String() string {
	switch m {
	case ModeExplicit:
		return "explicit"
	case ModeIncluded:
		return "included"
	case ModeUnprocessed:
		return "unprocessed"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Selection names the jobs of a batch.
type Selection struct {
	Mode Mode
	IDs  []int
}

// Sink receives each job result, partial results included.
type Sink func(ctx context.Context, res *Result) error

// BatchSummary lists the job ids of a batch by outcome.
type BatchSummary struct {
	Succeeded []int
	Diverged  []int
	Failed    []int
	Missing   []int
}

// Total returns the number of jobs attempted.
func (s BatchSummary) Total() int {
	return len(s.Succeeded) + len(s.Diverged) + len(s.Failed) + len(s.Missing)
}

// SelectJobs resolves a selection to job ids.
func SelectJobs(ctx context.Context, store jobs.Store, sel Selection) ([]int, error) {
	switch sel.Mode {
	case ModeExplicit:
		return append([]int(nil), sel.IDs...), nil
	case ModeIncluded:
		return store.IncludedJobIDs(ctx)
	case ModeUnprocessed:
		return store.UnprocessedJobIDs(ctx)
	default:
		return nil, fmt.Errorf("unknown batch mode %v", sel.Mode)
	}
}

// ProcessJobs runs every selected job in order. Per-job failures are
// logged and recorded in the summary; they never stop the batch. The
// returned error is set only when the selection itself fails or ctx is
// cancelled.
func (e *Engine) ProcessJobs(ctx context.Context, store jobs.Store, sel Selection, sink Sink) (BatchSummary, error) {
	var summary BatchSummary

	ids, err := SelectJobs(ctx, store, sel)
	if err != nil {
		return summary, fmt.Errorf("select %s jobs: %w", sel.Mode, err)
	}
	e.logger.Info("processing jobs", "mode", sel.Mode.String(), "count", len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		job, err := store.LoadJob(ctx, id)
		if err != nil {
			var missing *jobs.MissingJobError
			if errors.As(err, &missing) {
				e.metrics.ObserveJob(telemetry.OutcomeMissing, 0)
				e.logger.Warn("skipping missing job", "job", id)
				summary.Missing = append(summary.Missing, id)
				continue
			}
			e.logger.Error("failed to load job", "job", id, "error", err)
			summary.Failed = append(summary.Failed, id)
			continue
		}

		res, err := e.ProcessSimJob(ctx, NewJobContext(job))
		var div *integrator.DivergenceError
		switch {
		case err == nil:
		case errors.As(err, &div) && res != nil:
		case ctx.Err() != nil:
			return summary, ctx.Err()
		default:
			e.logger.Error("job failed", "job", id, "error", err)
			summary.Failed = append(summary.Failed, id)
			continue
		}

		if sink != nil {
			if err := sink(ctx, res); err != nil {
				e.logger.Error("failed to write job result", "job", id, "error", err)
				summary.Failed = append(summary.Failed, id)
				continue
			}
		}

		if sel.Mode == ModeUnprocessed {
			if err := store.MarkProcessed(ctx, id); err != nil {
				e.logger.Error("failed to mark job processed", "job", id, "error", err)
			}
		}
		if res.Partial() {
			summary.Diverged = append(summary.Diverged, id)
		} else {
			summary.Succeeded = append(summary.Succeeded, id)
		}
	}
	return summary, nil
}
