package memory

import (
	"context"
	"testing"
	"time"

	"seqprov/pkg/domain"
)

var (
	begin = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	early = time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	late  = time.Date(2020, 6, 14, 0, 0, 0, 0, time.UTC)
)

func seeded() *Store {
	s := New()
	s.Add(
		domain.SequencingRun{ExperimentName: "expt_b", InstrumentPosition: 2, LastUpdated: late},
		domain.SequencingRun{ExperimentName: "expt_b", InstrumentPosition: 1, LastUpdated: late},
		domain.SequencingRun{ExperimentName: "expt_a", InstrumentPosition: 1, LastUpdated: early},
		domain.SequencingRun{ExperimentName: "expt_a", InstrumentPosition: 1, LastUpdated: begin},
		domain.SequencingRun{ExperimentName: "expt_c", InstrumentPosition: 3, LastUpdated: begin},
	)
	return s
}

func TestRecentExperiments(t *testing.T) {
	ctx := context.Background()
	s := seeded()

	names, err := s.RecentExperiments(ctx, early)
	if err != nil {
		t.Fatalf("recent experiments: %v", err)
	}
	if len(names) != 2 || names[0] != "expt_a" || names[1] != "expt_b" {
		t.Fatalf("recent experiments = %v", names)
	}

	names, _ = s.RecentExperiments(ctx, late.Add(time.Hour))
	if len(names) != 0 {
		t.Fatalf("expected none after cutoff, got %v", names)
	}
}

func TestRecentPositionsDedupAndOrder(t *testing.T) {
	s := seeded()
	pos, err := s.RecentPositions(context.Background(), begin)
	if err != nil {
		t.Fatalf("recent positions: %v", err)
	}
	want := []domain.ExperimentPosition{
		{ExperimentName: "expt_a", InstrumentPosition: 1},
		{ExperimentName: "expt_b", InstrumentPosition: 1},
		{ExperimentName: "expt_b", InstrumentPosition: 2},
		{ExperimentName: "expt_c", InstrumentPosition: 3},
	}
	if len(pos) != len(want) {
		t.Fatalf("recent positions = %v, want %v", pos, want)
	}
	for i := range want {
		if pos[i] != want[i] {
			t.Fatalf("recent positions[%d] = %v, want %v", i, pos[i], want[i])
		}
	}
}

func TestPlexRecordsOrdering(t *testing.T) {
	s := New()
	s.Add(
		domain.SequencingRun{ExperimentName: "expt_m", InstrumentPosition: 1, TagIdentifier: "T-03"},
		domain.SequencingRun{ExperimentName: "expt_m", InstrumentPosition: 1, TagIdentifier: "T-01"},
		domain.SequencingRun{ExperimentName: "expt_m", InstrumentPosition: 1, TagIdentifier: "T-02"},
		domain.SequencingRun{ExperimentName: "expt_m", InstrumentPosition: 2, TagIdentifier: "T-09"},
		domain.SequencingRun{ExperimentName: "other", InstrumentPosition: 1, TagIdentifier: "T-05"},
	)
	runs, err := s.PlexRecords(context.Background(), "expt_m", 1)
	if err != nil {
		t.Fatalf("plex records: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("plex records = %v", runs)
	}
	for i, want := range []string{"T-01", "T-02", "T-03"} {
		if runs[i].TagIdentifier != want {
			t.Fatalf("runs[%d].TagIdentifier = %q, want %q", i, runs[i].TagIdentifier, want)
		}
	}
}
