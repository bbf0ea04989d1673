// Package backup snapshots every job of a store into a checksummed,
// compressed file and restores such files into a store.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nvandessel/atnsim/internal/config"
	"github.com/nvandessel/atnsim/internal/jobs"
)

const (
	filePrefix = "atnsim-jobs-"
	fileSuffix = ".snap"
)

// DefaultDir returns the default snapshot directory, ~/.atnsim/backups.
func DefaultDir() string {
	return filepath.Join(config.Dir(), "backups")
}

// GeneratePath returns a timestamped snapshot path in dir.
func GeneratePath(dir string, now time.Time) string {
	return filepath.Join(dir, filePrefix+now.UTC().Format("20060102-150405")+fileSuffix)
}

// Backup writes every job of store to path.
func Backup(ctx context.Context, store jobs.Store, path string, meta map[string]string) (*Header, error) {
	list, err := store.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	return write(path, &Snapshot{Jobs: list}, meta)
}

// Restore saves every job of the snapshot at path into store, replacing
// jobs with the same id. When allowedDir is non-empty the snapshot must
// live inside it.
func Restore(ctx context.Context, store jobs.Store, path, allowedDir string) (int, error) {
	if allowedDir != "" {
		if err := checkInside(path, allowedDir); err != nil {
			return 0, err
		}
	}
	_, snap, err := Read(path)
	if err != nil {
		return 0, err
	}
	for _, j := range snap.Jobs {
		if err := j.Validate(); err != nil {
			return 0, err
		}
	}
	for i, j := range snap.Jobs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := store.SaveJob(ctx, j); err != nil {
			return i, fmt.Errorf("restore job %d: %w", j.ID, err)
		}
	}
	return len(snap.Jobs), nil
}

// Rotate keeps the keep newest snapshots in dir and deletes the rest. It
// returns the deleted paths.
func Rotate(dir string, keep int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), filePrefix) && strings.HasSuffix(e.Name(), fileSuffix) {
			names = append(names, e.Name())
		}
	}
	// Newest first; the timestamp sorts lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if keep < 0 {
		keep = 0
	}
	if len(names) <= keep {
		return nil, nil
	}

	var deleted []string
	for _, name := range names[keep:] {
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			return deleted, fmt.Errorf("remove old snapshot %s: %w", name, err)
		}
		deleted = append(deleted, path)
	}
	return deleted, nil
}

// checkInside rejects paths that resolve outside dir, symlinks included.
func checkInside(path, dir string) error {
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("snapshot path contains a null byte")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("snapshot %s is outside %s", filepath.Base(path), dir)
	}
	return nil
}
