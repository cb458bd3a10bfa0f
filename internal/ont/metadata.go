package ont

import (
	"strconv"
	"time"

	"seqprov/internal/storage"
	"seqprov/pkg/domain"
)

// Tracked sample attribute names, as they appear on storage targets.
const (
	AttrSample                 = "sample"
	AttrSampleID               = "sample_id"
	AttrSampleAccessionNumber  = "sample_accession_number"
	AttrSampleDonorID          = "sample_donor_id"
	AttrSampleSupplierName     = "sample_supplier_name"
	AttrSampleConsentWithdrawn = "sample_consent_withdrawn"
)

// Tracked study attribute names.
const (
	AttrStudy                = "study"
	AttrStudyID              = "study_id"
	AttrStudyAccessionNumber = "study_accession_number"
)

// AttrTagIndex is attached to barcode sub-targets of multiplexed runs.
const AttrTagIndex = "tag_index"

// Instrument-identity attribute names, namespaced under
// InstrumentNamespace. They identify the run itself, independent of
// sample or study content.
const (
	InstrumentNamespace = "ont"

	AttrExperimentName = "experiment_name"
	AttrInstrumentSlot = "instrument_slot"
)

// Dublin Core attribute names for data creation and modification stamps.
const (
	DublinCoreNamespace = "dcterms"

	AttrCreator  = "creator"
	AttrCreated  = "created"
	AttrModified = "modified"
)

// DefaultGroupPrefix is prepended to a study identifier to form the
// access-control principal for that study's data.
const DefaultGroupPrefix = "ss_"

// StudyMetadata derives the study provenance AVUs. Attributes whose
// source field is empty in the warehouse are omitted entirely rather
// than written with an empty value.
func StudyMetadata(study domain.Study) []storage.AVU {
	return avusIfValue(
		pair{AttrStudyID, study.ID},
		pair{AttrStudy, study.Name},
		pair{AttrStudyAccessionNumber, study.AccessionNumber},
	)
}

// SampleMetadata derives the sample provenance AVUs. The
// consent-withdrawn indicator is emitted only when consent has been
// withdrawn; its absence signals active consent.
func SampleMetadata(sample domain.Sample) []storage.AVU {
	consent := ""
	if sample.ConsentWithdrawn {
		consent = "1"
	}
	return avusIfValue(
		pair{AttrSampleID, sample.ID},
		pair{AttrSample, sample.Name},
		pair{AttrSampleAccessionNumber, sample.AccessionNumber},
		pair{AttrSampleDonorID, sample.DonorID},
		pair{AttrSampleSupplierName, sample.SupplierName},
		pair{AttrSampleConsentWithdrawn, consent},
	)
}

// SampleACL derives the single access grant for a sample/study pair: the
// study group may read, unless the sample's consent has been withdrawn,
// in which case its access is revoked. Composition of grants across
// samples sharing one target is the annotator's concern.
func SampleACL(sample domain.Sample, study domain.Study, groupPrefix string) storage.AC {
	if groupPrefix == "" {
		groupPrefix = DefaultGroupPrefix
	}
	perm := storage.PermRead
	if sample.ConsentWithdrawn {
		perm = storage.PermNull
	}
	return storage.AC{Principal: groupPrefix + study.ID, Perm: perm}
}

// InstrumentMetadata derives the run-identity AVUs applied to the
// experiment root target.
func InstrumentMetadata(experiment string, position int) []storage.AVU {
	return []storage.AVU{
		{Namespace: InstrumentNamespace, Attr: AttrExperimentName, Value: experiment},
		{Namespace: InstrumentNamespace, Attr: AttrInstrumentSlot, Value: strconv.Itoa(position)},
	}
}

// CreationMetadata returns standard data-creation AVUs: creator and
// created, under the Dublin Core namespace.
func CreationMetadata(creator string, created time.Time) []storage.AVU {
	return []storage.AVU{
		{Namespace: DublinCoreNamespace, Attr: AttrCreator, Value: creator},
		{Namespace: DublinCoreNamespace, Attr: AttrCreated, Value: created.Format(time.RFC3339)},
	}
}

// ModificationMetadata returns the data-modification AVU under the
// Dublin Core namespace.
func ModificationMetadata(modified time.Time) []storage.AVU {
	return []storage.AVU{
		{Namespace: DublinCoreNamespace, Attr: AttrModified, Value: modified.Format(time.RFC3339)},
	}
}

type pair struct {
	attr  string
	value string
}

func avusIfValue(pairs ...pair) []storage.AVU {
	avus := make([]storage.AVU, 0, len(pairs))
	for _, p := range pairs {
		if p.value == "" {
			continue
		}
		avus = append(avus, storage.AVU{Attr: p.attr, Value: p.value})
	}
	return avus
}
