package history

import (
	"os"

	"github.com/kvasst/depot/internal/storage/types"
)

// CleanupResult holds the outcome of retention cleanup for one kind.
type CleanupResult struct {
	Kind         types.Kind
	FilesDeleted int
	FilesKept    int
	Errors       []error
}

// Cleanup deletes every daily partition whose filename date predates the
// retention cutoff (now minus the retention window). Deletion is always
// whole-file; newer partitions are untouched. Runs on its own schedule,
// independent of the flush schedule.
func (s *Store) Cleanup() []CleanupResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now().UTC()
	cutoff := dayStart(now).AddDate(0, 0, -s.opts.RetentionDays)

	results := make([]CleanupResult, 0, len(s.buffers))
	for kind := range s.buffers {
		res := CleanupResult{Kind: kind}

		days, err := listPartitions(s.kindDir(kind))
		if err != nil {
			res.Errors = append(res.Errors, err)
			results = append(results, res)
			continue
		}

		for _, day := range days {
			if !day.date.Before(cutoff) {
				res.FilesKept++
				continue
			}
			if err := os.Remove(day.path); err != nil {
				s.log.Error("partition delete failed", "kind", kind, "file", day.path, "error", err)
				res.Errors = append(res.Errors, err)
				continue
			}
			s.log.Info("expired partition deleted", "kind", kind, "file", day.path)
			res.FilesDeleted++
		}
		results = append(results, res)
	}
	return results
}

// SetRetentionPeriod changes the retention window, in days. Values below
// one are ignored.
func (s *Store) SetRetentionPeriod(days int) {
	if days < 1 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.RetentionDays = days
}

// RetentionPeriod returns the current retention window, in days.
func (s *Store) RetentionPeriod() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.RetentionDays
}
