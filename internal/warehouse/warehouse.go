// Package warehouse defines the read-only query contract over the ML
// warehouse: discovery of recently updated sequencing runs and retrieval
// of the per-plex records for one (experiment, position). Concrete
// backends live under internal/infra/warehouse; the annotation core
// depends only on the Warehouse interface defined here.
package warehouse

import (
	"context"
	"errors"
	"time"

	"seqprov/pkg/domain"
)

// Warehouse exposes the three read operations the annotation core
// consumes. All result sequences are deterministically ordered so that
// repeated invocations enumerate targets reproducibly.
type Warehouse interface {
	// RecentExperiments returns the distinct names of experiments with
	// any run record updated at or after since.
	RecentExperiments(ctx context.Context, since time.Time) ([]string, error)
	// RecentPositions returns deduplicated (experiment, position) pairs
	// with any run record updated at or after since, ordered by name
	// then position.
	RecentPositions(ctx context.Context, since time.Time) ([]domain.ExperimentPosition, error)
	// PlexRecords returns the run records for one (experiment,
	// position), ordered by (experiment, position, tag identifier,
	// secondary tag identifier). An empty result means the warehouse
	// holds no rows for the pair; it is not an error.
	PlexRecords(ctx context.Context, experiment string, position int) ([]domain.SequencingRun, error)
}

// ErrUnavailable indicates a connectivity failure talking to the
// warehouse. Callers surface it without retrying; retry policy belongs
// to upstream schedulers.
var ErrUnavailable = errors.New("warehouse: unavailable")
