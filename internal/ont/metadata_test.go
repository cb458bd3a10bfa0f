package ont

import (
	"reflect"
	"testing"
	"time"

	"seqprov/internal/storage"
	"seqprov/pkg/domain"
)

func TestStudyMetadata(t *testing.T) {
	study := domain.Study{ID: "study_02", Name: "Study Y", AccessionNumber: "EGAS0001"}
	got := StudyMetadata(study)
	want := []storage.AVU{
		{Attr: AttrStudyID, Value: "study_02"},
		{Attr: AttrStudy, Value: "Study Y"},
		{Attr: AttrStudyAccessionNumber, Value: "EGAS0001"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("StudyMetadata = %v, want %v", got, want)
	}
}

func TestStudyMetadataOmitsEmptyFields(t *testing.T) {
	got := StudyMetadata(domain.Study{ID: "study_02", Name: "Study Y"})
	for _, avu := range got {
		if avu.Attr == AttrStudyAccessionNumber {
			t.Fatalf("absent accession must not produce an AVU, got %v", avu)
		}
		if avu.Value == "" {
			t.Fatalf("empty-valued AVU emitted: %v", avu)
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 AVUs, got %v", got)
	}
}

func TestSampleMetadata(t *testing.T) {
	sample := domain.Sample{
		ID:              "sample1",
		Name:            "sample 1",
		AccessionNumber: "EGAN0001",
		DonorID:         "donor1",
		SupplierName:    "supplier 1",
	}
	got := SampleMetadata(sample)
	want := []storage.AVU{
		{Attr: AttrSampleID, Value: "sample1"},
		{Attr: AttrSample, Value: "sample 1"},
		{Attr: AttrSampleAccessionNumber, Value: "EGAN0001"},
		{Attr: AttrSampleDonorID, Value: "donor1"},
		{Attr: AttrSampleSupplierName, Value: "supplier 1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SampleMetadata = %v, want %v", got, want)
	}
}

func TestSampleMetadataConsentWithdrawn(t *testing.T) {
	// With consent active there must be no consent AVU at all; "false"
	// is never written.
	for _, avu := range SampleMetadata(domain.Sample{ID: "s1", Name: "sample 1"}) {
		if avu.Attr == AttrSampleConsentWithdrawn {
			t.Fatalf("consent AVU emitted for active consent: %v", avu)
		}
	}

	withdrawn := SampleMetadata(domain.Sample{ID: "s1", Name: "sample 1", ConsentWithdrawn: true})
	found := false
	for _, avu := range withdrawn {
		if avu.Attr == AttrSampleConsentWithdrawn {
			found = true
			if avu.Value != "1" {
				t.Fatalf("consent AVU value = %q, want \"1\"", avu.Value)
			}
		}
	}
	if !found {
		t.Fatalf("no consent AVU emitted for withdrawn consent: %v", withdrawn)
	}
}

func TestSampleACL(t *testing.T) {
	study := domain.Study{ID: "study_02"}

	ac := SampleACL(domain.Sample{ID: "s1"}, study, "")
	if ac.Principal != "ss_study_02" || ac.Perm != storage.PermRead {
		t.Fatalf("active consent ACL = %v, want ss_study_02#read", ac)
	}

	ac = SampleACL(domain.Sample{ID: "s1", ConsentWithdrawn: true}, study, "")
	if ac.Principal != "ss_study_02" || ac.Perm != storage.PermNull {
		t.Fatalf("withdrawn consent ACL = %v, want ss_study_02#null", ac)
	}

	ac = SampleACL(domain.Sample{ID: "s1"}, study, "grp_")
	if ac.Principal != "grp_study_02" {
		t.Fatalf("custom prefix ACL principal = %q", ac.Principal)
	}
}

func TestInstrumentMetadata(t *testing.T) {
	got := InstrumentMetadata("simple_experiment_001", 1)
	want := []storage.AVU{
		{Namespace: InstrumentNamespace, Attr: AttrExperimentName, Value: "simple_experiment_001"},
		{Namespace: InstrumentNamespace, Attr: AttrInstrumentSlot, Value: "1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("InstrumentMetadata = %v, want %v", got, want)
	}
}

func TestCreationAndModificationMetadata(t *testing.T) {
	at := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)

	created := CreationMetadata("seqprov", at)
	if len(created) != 2 {
		t.Fatalf("CreationMetadata = %v", created)
	}
	for _, avu := range created {
		if avu.Namespace != DublinCoreNamespace {
			t.Fatalf("creation AVU not namespaced: %v", avu)
		}
	}
	if created[1].Value != "2020-06-01T12:00:00Z" {
		t.Fatalf("created timestamp = %q", created[1].Value)
	}

	modified := ModificationMetadata(at)
	if len(modified) != 1 || modified[0].Attr != AttrModified || modified[0].Namespace != DublinCoreNamespace {
		t.Fatalf("ModificationMetadata = %v", modified)
	}
}
