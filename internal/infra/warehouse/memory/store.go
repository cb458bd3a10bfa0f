// Package memory implements an in-memory Warehouse for tests. Rows are
// appended via Add and queried with the same ordering guarantees as the
// SQL backends.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"seqprov/internal/warehouse"
	"seqprov/pkg/domain"
)

// Store implements warehouse.Warehouse backed by process memory.
type Store struct {
	mu   sync.RWMutex
	runs []domain.SequencingRun
}

// New returns an empty in-memory warehouse.
func New() *Store { return &Store{} }

// Add appends run rows to the warehouse.
func (s *Store) Add(runs ...domain.SequencingRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, runs...)
}

// RecentExperiments returns distinct experiment names updated at or
// after since, ordered by name.
func (s *Store) RecentExperiments(_ context.Context, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]struct{}{}
	for _, r := range s.runs {
		if !r.LastUpdated.Before(since) {
			seen[r.ExperimentName] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// RecentPositions returns deduplicated (experiment, position) pairs
// updated at or after since, ordered by name then position.
func (s *Store) RecentPositions(_ context.Context, since time.Time) ([]domain.ExperimentPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[domain.ExperimentPosition]struct{}{}
	for _, r := range s.runs {
		if !r.LastUpdated.Before(since) {
			seen[domain.ExperimentPosition{ExperimentName: r.ExperimentName, InstrumentPosition: r.InstrumentPosition}] = struct{}{}
		}
	}
	out := make([]domain.ExperimentPosition, 0, len(seen))
	for ep := range seen {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExperimentName != out[j].ExperimentName {
			return out[i].ExperimentName < out[j].ExperimentName
		}
		return out[i].InstrumentPosition < out[j].InstrumentPosition
	})
	return out, nil
}

// PlexRecords returns the run rows for one (experiment, position) in
// tag-identifier order.
func (s *Store) PlexRecords(_ context.Context, experiment string, position int) ([]domain.SequencingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SequencingRun
	for _, r := range s.runs {
		if r.ExperimentName == experiment && r.InstrumentPosition == position {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TagIdentifier != out[j].TagIdentifier {
			return out[i].TagIdentifier < out[j].TagIdentifier
		}
		return out[i].TagIdentifier2 < out[j].TagIdentifier2
	})
	return out, nil
}

// Compile-time contract assertion.
var _ warehouse.Warehouse = (*Store)(nil)
