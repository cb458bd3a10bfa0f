// Package sqlite implements the Warehouse over a local SQLite database
// using the pure-Go modernc driver. It bootstraps the run/sample/study
// schema itself, which makes it suitable for development and for test
// fixtures; the production warehouse schema is owned elsewhere.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"seqprov/internal/warehouse"
	"seqprov/pkg/domain"
)

// Store implements warehouse.Warehouse over a SQLite database file (or
// ":memory:" for throwaway instances).
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if necessary) a SQLite-backed warehouse and
// applies the schema.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "seqprov-mlwh.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.bootstrap(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying sql.DB for fixture population in tests.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) bootstrap(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS study (
			id_study_tmp INTEGER PRIMARY KEY AUTOINCREMENT,
			id_study_lims TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			accession_number TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS sample (
			id_sample_tmp INTEGER PRIMARY KEY AUTOINCREMENT,
			id_sample_lims TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			accession_number TEXT,
			donor_id TEXT,
			supplier_name TEXT,
			consent_withdrawn INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS oseq_flowcell (
			id_oseq_flowcell_tmp INTEGER PRIMARY KEY AUTOINCREMENT,
			experiment_name TEXT NOT NULL,
			instrument_slot INTEGER NOT NULL,
			tag_identifier TEXT,
			tag2_identifier TEXT,
			id_sample_tmp INTEGER NOT NULL REFERENCES sample(id_sample_tmp),
			id_study_tmp INTEGER NOT NULL REFERENCES study(id_study_tmp),
			last_updated TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}

// InsertStudy adds a study row, returning its surrogate key.
func (s *Store) InsertStudy(ctx context.Context, study domain.Study) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO study (id_study_lims, name, accession_number) VALUES (?, ?, ?)`,
		study.ID, study.Name, nullable(study.AccessionNumber))
	if err != nil {
		return 0, fmt.Errorf("insert study %s: %w", study.ID, err)
	}
	return res.LastInsertId()
}

// InsertSample adds a sample row, returning its surrogate key.
func (s *Store) InsertSample(ctx context.Context, sample domain.Sample) (int64, error) {
	consent := 0
	if sample.ConsentWithdrawn {
		consent = 1
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sample (id_sample_lims, name, accession_number, donor_id, supplier_name, consent_withdrawn)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sample.ID, sample.Name, nullable(sample.AccessionNumber), nullable(sample.DonorID),
		nullable(sample.SupplierName), consent)
	if err != nil {
		return 0, fmt.Errorf("insert sample %s: %w", sample.ID, err)
	}
	return res.LastInsertId()
}

// InsertRun adds a flowcell row referencing previously inserted sample
// and study keys.
func (s *Store) InsertRun(ctx context.Context, run domain.SequencingRun, sampleKey, studyKey int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO oseq_flowcell
		 (experiment_name, instrument_slot, tag_identifier, tag2_identifier, id_sample_tmp, id_study_tmp, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ExperimentName, run.InstrumentPosition, nullable(run.TagIdentifier), nullable(run.TagIdentifier2),
		sampleKey, studyKey, run.LastUpdated)
	if err != nil {
		return fmt.Errorf("insert run %s/%d: %w", run.ExperimentName, run.InstrumentPosition, err)
	}
	return nil
}

// RecentExperiments returns distinct experiment names updated at or
// after since, ordered by name.
func (s *Store) RecentExperiments(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT experiment_name FROM oseq_flowcell WHERE last_updated >= ? ORDER BY experiment_name`,
		since)
	if err != nil {
		return nil, fmt.Errorf("select recent experiments: %w", err)
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
	return out, rows.Err()
}

// RecentPositions returns deduplicated (experiment, position) pairs
// updated at or after since, ordered by name then position.
func (s *Store) RecentPositions(ctx context.Context, since time.Time) ([]domain.ExperimentPosition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT experiment_name, instrument_slot
		 FROM oseq_flowcell
		 WHERE last_updated >= ?
		 GROUP BY experiment_name, instrument_slot
		 ORDER BY experiment_name ASC, instrument_slot ASC`,
		since)
	if err != nil {
		return nil, fmt.Errorf("select recent positions: %w", err)
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
	return out, rows.Err()
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
		 WHERE f.experiment_name = ? AND f.instrument_slot = ?
		 ORDER BY f.experiment_name ASC, f.instrument_slot ASC,
		          f.tag_identifier ASC, f.tag2_identifier ASC`,
		experiment, position)
	if err != nil {
		return nil, fmt.Errorf("select plex records: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.SequencingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanRun(rows *sql.Rows) (domain.SequencingRun, error) {
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
		return domain.SequencingRun{}, fmt.Errorf("scan run: %w", err)
	}
	run.Sample.ConsentWithdrawn = consent != 0
	return run, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Compile-time contract assertion.
var _ warehouse.Warehouse = (*Store)(nil)
