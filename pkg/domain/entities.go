// Package domain defines the warehouse entities consumed by the
// annotation core: samples, studies, and per-flowcell sequencing runs.
// All three are read-only snapshots owned by the ML warehouse; this
// module never writes them back.
package domain

import "time"

// Sample is a tracked sample as recorded in the warehouse. Optional
// fields are empty strings when the warehouse holds NULL.
type Sample struct {
	// ID is the stable LIMS sample identifier.
	ID string
	// Name is the sample display name.
	Name string
	// AccessionNumber is the external archive accession, if assigned.
	AccessionNumber string
	// DonorID identifies the donor, if recorded.
	DonorID string
	// SupplierName is the name assigned by the sample supplier, if any.
	SupplierName string
	// ConsentWithdrawn is true when the donor has withdrawn consent.
	// Withdrawal revokes read access to every storage target holding
	// data derived from the sample.
	ConsentWithdrawn bool
}

// Study is a tracked study as recorded in the warehouse.
type Study struct {
	// ID is the stable LIMS study identifier.
	ID string
	// Name is the study display name.
	Name string
	// AccessionNumber is the external archive accession, if assigned.
	AccessionNumber string
}

// SequencingRun is one warehouse row describing a flowcell loaded at an
// instrument position within an experiment. Multiplexed runs carry one
// row per plex, each with a distinct tag identifier; unplexed runs carry
// a single row with no tag identifier.
type SequencingRun struct {
	ExperimentName     string
	InstrumentPosition int
	// TagIdentifier encodes the barcode ordinal as a trailing numeric
	// suffix (e.g. "ONT_EXP-012-07"). Empty for unplexed runs.
	TagIdentifier string
	// TagIdentifier2 is the secondary identifier for dual-indexed tag
	// sets. It participates in query ordering only.
	TagIdentifier2 string
	Sample         Sample
	Study          Study
	LastUpdated    time.Time
}

// Multiplexed reports whether the run row belongs to a demultiplexed
// plex rather than a whole flowcell.
func (r SequencingRun) Multiplexed() bool {
	return r.TagIdentifier != ""
}

// ExperimentPosition is a (experiment name, instrument position) pair
// identifying one flowcell slot.
type ExperimentPosition struct {
	ExperimentName     string
	InstrumentPosition int
}
