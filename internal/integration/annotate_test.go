// Package integration exercises the annotation flow end to end: a
// SQLite-backed warehouse populated with run fixtures, an in-memory
// storage namespace laid out like an instrument run folder, and the
// annotator wiring the two together.
package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	storagemem "seqprov/internal/infra/storage/memory"
	whsqlite "seqprov/internal/infra/warehouse/sqlite"
	"seqprov/internal/ont"
	"seqprov/internal/storage"
	"seqprov/pkg/domain"
)

const (
	simpleRoot      = "/testZone/home/ingest/synthetic/simple_experiment_001/20190904_1514_GA10000_flowcell011_69126024"
	multiplexedRoot = "/testZone/home/ingest/synthetic/multiplexed_experiment_001/20190904_1514_GA10000_flowcell101_cf751ba1"
)

func seedWarehouse(t *testing.T) *whsqlite.Store {
	t.Helper()
	wh, err := whsqlite.NewStore(filepath.Join(t.TempDir(), "mlwh.db"))
	if err != nil {
		t.Fatalf("open warehouse: %v", err)
	}
	t.Cleanup(func() { _ = wh.Close() })

	ctx := context.Background()
	updated := time.Date(2020, 6, 14, 0, 0, 0, 0, time.UTC)

	yKey, err := wh.InsertStudy(ctx, domain.Study{ID: "study_02", Name: "Study Y"})
	if err != nil {
		t.Fatalf("insert study: %v", err)
	}
	zKey, err := wh.InsertStudy(ctx, domain.Study{ID: "study_03", Name: "Study Z"})
	if err != nil {
		t.Fatalf("insert study: %v", err)
	}

	sKey, err := wh.InsertSample(ctx, domain.Sample{ID: "sample1", Name: "sample 1"})
	if err != nil {
		t.Fatalf("insert sample: %v", err)
	}
	if err := wh.InsertRun(ctx, domain.SequencingRun{
		ExperimentName:     "simple_experiment_001",
		InstrumentPosition: 1,
		LastUpdated:        updated,
	}, sKey, yKey); err != nil {
		t.Fatalf("insert run: %v", err)
	}

	for i := 1; i <= 12; i++ {
		mKey, err := wh.InsertSample(ctx, domain.Sample{
			ID:   fmt.Sprintf("msample%d", i),
			Name: fmt.Sprintf("sample %d", i),
		})
		if err != nil {
			t.Fatalf("insert sample: %v", err)
		}
		if err := wh.InsertRun(ctx, domain.SequencingRun{
			ExperimentName:     "multiplexed_experiment_001",
			InstrumentPosition: 1,
			TagIdentifier:      fmt.Sprintf("ONT_EXP-012-%02d", i),
			LastUpdated:        updated,
		}, mKey, zKey); err != nil {
			t.Fatalf("insert run: %v", err)
		}
	}
	return wh
}

func seedStorage() *storagemem.Store {
	store := storagemem.New()
	store.MkdirAll(simpleRoot)
	store.PutObject(simpleRoot + "/fast5_pass/reads0001.fast5")
	store.MkdirAll(multiplexedRoot)
	for i := 1; i <= 12; i++ {
		store.PutObject(fmt.Sprintf("%s/barcode%02d/reads0001.fast5", multiplexedRoot, i))
	}
	return store
}

func TestAnnotateSimpleExperimentEndToEnd(t *testing.T) {
	ctx := context.Background()
	wh := seedWarehouse(t)
	store := seedStorage()

	annotator := ont.NewAnnotator(store)
	report, err := annotator.AnnotateResultsCollection(ctx, wh, simpleRoot, "simple_experiment_001", 1)
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if !report.OK() {
		t.Fatalf("failures: %v", report.Failures)
	}

	avus, err := store.Metadata(ctx, simpleRoot)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	for _, want := range []storage.AVU{
		{Attr: "sample", Value: "sample 1"},
		{Attr: "study_id", Value: "study_02"},
		{Attr: "study", Value: "Study Y"},
	} {
		found := false
		for _, avu := range avus {
			if avu == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("%v missing from %v", want, avus)
		}
	}

	acl, err := store.ACL(ctx, simpleRoot+"/fast5_pass/reads0001.fast5")
	if err != nil {
		t.Fatalf("acl: %v", err)
	}
	if len(acl) != 1 || acl[0] != (storage.AC{Principal: "ss_study_02", Perm: storage.PermRead}) {
		t.Fatalf("descendant acl = %v", acl)
	}
}

func TestAnnotateMultiplexedExperimentEndToEnd(t *testing.T) {
	ctx := context.Background()
	wh := seedWarehouse(t)
	store := seedStorage()

	annotator := ont.NewAnnotator(store)
	report, err := annotator.AnnotateResultsCollection(ctx, wh, multiplexedRoot, "multiplexed_experiment_001", 1)
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if !report.OK() {
		t.Fatalf("failures: %v", report.Failures)
	}
	if len(report.Annotated) != 12 {
		t.Fatalf("annotated %d targets, want 12", len(report.Annotated))
	}

	for i := 1; i <= 12; i++ {
		p := fmt.Sprintf("%s/barcode%02d", multiplexedRoot, i)
		avus, err := store.Metadata(ctx, p)
		if err != nil {
			t.Fatalf("metadata %s: %v", p, err)
		}
		var tagIndex string
		for _, avu := range avus {
			if avu.Attr == "tag_index" && avu.Namespace == "" {
				tagIndex = avu.Value
			}
		}
		if tagIndex != fmt.Sprintf("%d", i) {
			t.Fatalf("tag_index on %s = %q, want %d", p, tagIndex, i)
		}
	}
}

func TestDiscoveryThenAnnotation(t *testing.T) {
	ctx := context.Background()
	wh := seedWarehouse(t)
	store := seedStorage()

	positions, err := wh.RecentPositions(ctx, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("recent positions: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("recent positions = %v", positions)
	}

	roots := map[string]string{
		"simple_experiment_001":      simpleRoot,
		"multiplexed_experiment_001": multiplexedRoot,
	}
	annotator := ont.NewAnnotator(store)
	for _, ep := range positions {
		report, err := annotator.AnnotateResultsCollection(ctx, wh, roots[ep.ExperimentName], ep.ExperimentName, ep.InstrumentPosition)
		if err != nil {
			t.Fatalf("annotate %v: %v", ep, err)
		}
		if !report.OK() {
			t.Fatalf("annotate %v failures: %v", ep, report.Failures)
		}
	}
}
