// Package postgres implements the Warehouse over the production
// Postgres warehouse replica via database/sql with the pgx driver. The
// schema is owned by the warehouse loader; this store only reads it.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"seqprov/internal/warehouse"
	"seqprov/pkg/domain"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/mlwh?sslmode=disable"
)

// Store implements warehouse.Warehouse over a Postgres connection pool.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed warehouse using the provided DSN
// (falls back to defaultDSN) and verifies connectivity.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open(defaultDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w (%v)", warehouse.ErrUnavailable, err)
	}
	return &Store{db: db}, nil
}

// OpenFromEnv constructs a warehouse store from SEQPROV_MLWH_DSN.
func OpenFromEnv(ctx context.Context) (*Store, error) {
	return NewStore(ctx, os.Getenv("SEQPROV_MLWH_DSN"))
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// queryErr wraps a query failure, mapping connectivity problems to
// warehouse.ErrUnavailable so pollers can tell a dead warehouse from a
// data error. Server-reported errors pass through unmapped.
func queryErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &connectErr) || errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w (%v)", op, warehouse.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// RecentExperiments returns distinct experiment names updated at or
// after since, ordered by name.
func (s *Store) RecentExperiments(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT experiment_name FROM oseq_flowcell WHERE last_updated >= $1 ORDER BY experiment_name`,
		since)
	if err != nil {
		return nil, queryErr("select recent experiments", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan experiment name: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("select recent experiments", err)
	}
	return out, nil
}

// RecentPositions returns deduplicated (experiment, position) pairs
// updated at or after since, ordered by name then position.
func (s *Store) RecentPositions(ctx context.Context, since time.Time) ([]domain.ExperimentPosition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT experiment_name, instrument_slot
		 FROM oseq_flowcell
		 WHERE last_updated >= $1
		 GROUP BY experiment_name, instrument_slot
		 ORDER BY experiment_name ASC, instrument_slot ASC`,
		since)
	if err != nil {
		return nil, queryErr("select recent positions", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.ExperimentPosition
	for rows.Next() {
		var ep domain.ExperimentPosition
		if err := rows.Scan(&ep.ExperimentName, &ep.InstrumentPosition); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("select recent positions", err)
	}
	return out, nil
}

// PlexRecords returns the run rows for one (experiment, position) in
// tag-identifier order, with sample and study joined in.
func (s *Store) PlexRecords(ctx context.Context, experiment string, position int) ([]domain.SequencingRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.experiment_name, f.instrument_slot,
		        COALESCE(f.tag_identifier, ''), COALESCE(f.tag2_identifier, ''),
		        sa.id_sample_lims, sa.name, COALESCE(sa.accession_number, ''),
		        COALESCE(sa.donor_id, ''), COALESCE(sa.supplier_name, ''), sa.consent_withdrawn,
		        st.id_study_lims, st.name, COALESCE(st.accession_number, ''),
		        f.last_updated
		 FROM oseq_flowcell f
		 JOIN sample sa ON sa.id_sample_tmp = f.id_sample_tmp
		 JOIN study st ON st.id_study_tmp = f.id_study_tmp
		 WHERE f.experiment_name = $1 AND f.instrument_slot = $2
		 ORDER BY f.experiment_name ASC, f.instrument_slot ASC,
		          f.tag_identifier ASC, f.tag2_identifier ASC`,
		experiment, position)
	if err != nil {
		return nil, queryErr("select plex records", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.SequencingRun
	for rows.Next() {
		var run domain.SequencingRun
		var consent int
		if err := rows.Scan(
			&run.ExperimentName, &run.InstrumentPosition,
			&run.TagIdentifier, &run.TagIdentifier2,
			&run.Sample.ID, &run.Sample.Name, &run.Sample.AccessionNumber,
			&run.Sample.DonorID, &run.Sample.SupplierName, &consent,
			&run.Study.ID, &run.Study.Name, &run.Study.AccessionNumber,
			&run.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Sample.ConsentWithdrawn = consent != 0
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("select plex records", err)
	}
	return out, nil
}

// Compile-time contract assertion.
var _ warehouse.Warehouse = (*Store)(nil)
