package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore implements Store in memory for tests and demos.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[int]*Job
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[int]*Job)}
}

// LoadJob returns a copy of the stored job.
func (s *MemoryStore) LoadJob(ctx context.Context, id int) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, &MissingJobError{JobID: id}
	}
	return cloneJob(job), nil
}

// SaveJob stores a copy of job.
func (s *MemoryStore) SaveJob(ctx context.Context, job *Job) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// ListJobs returns copies of every job ordered by id.
func (s *MemoryStore) ListJobs(ctx context.Context) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, cloneJob(job))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// IncludedJobIDs returns the ids of included jobs, ascending.
func (s *MemoryStore) IncludedJobIDs(ctx context.Context) ([]int, error) {
	return s.ids(func(j *Job) bool { return j.Include }), nil
}

// UnprocessedJobIDs returns the ids of unprocessed jobs, ascending.
func (s *MemoryStore) UnprocessedJobIDs(ctx context.Context) ([]int, error) {
	return s.ids(func(j *Job) bool { return !j.Processed }), nil
}

// MarkProcessed flags the job as processed.
func (s *MemoryStore) MarkProcessed(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return &MissingJobError{JobID: id}
	}
	job.Processed = true
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) ids(keep func(*Job) bool) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]int, 0)
	for id, job := range s.jobs {
		if keep(job) {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

func cloneJob(j *Job) *Job {
	c := *j
	if j.Biomass != nil {
		c.Biomass = make(map[int][]float64, len(j.Biomass))
		for id, series := range j.Biomass {
			c.Biomass[id] = append([]float64(nil), series...)
		}
	}
	if j.Links != nil {
		c.Links = make(map[int][]int, len(j.Links))
		for id, prey := range j.Links {
			c.Links[id] = append([]int(nil), prey...)
		}
	}
	return &c
}
