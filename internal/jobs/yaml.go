package jobs

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// jobFile is the on-disk layout of a YAML job file.
type jobFile struct {
	Jobs []*Job `yaml:"jobs"`
}

// LoadYAMLFile reads and validates the jobs listed in a YAML file.
func LoadYAMLFile(path string) ([]*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes and validates a YAML job document.
func ParseYAML(data []byte) ([]*Job, error) {
	var f jobFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse job file: %w", err)
	}
	if len(f.Jobs) == 0 {
		return nil, fmt.Errorf("job file lists no jobs")
	}
	seen := make(map[int]bool, len(f.Jobs))
	for _, j := range f.Jobs {
		if j == nil {
			return nil, fmt.Errorf("job file contains an empty entry")
		}
		if seen[j.ID] {
			return nil, fmt.Errorf("duplicate job id %d", j.ID)
		}
		seen[j.ID] = true
		if err := j.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Jobs, nil
}

// Import saves every job of a YAML file into store and returns the count.
func Import(ctx context.Context, store Store, path string) (int, error) {
	list, err := LoadYAMLFile(path)
	if err != nil {
		return 0, err
	}
	for _, j := range list {
		if err := store.SaveJob(ctx, j); err != nil {
			return 0, fmt.Errorf("failed to save job %d: %w", j.ID, err)
		}
	}
	return len(list), nil
}
