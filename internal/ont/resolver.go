package ont

import (
	"fmt"
	"path"

	"seqprov/pkg/domain"
)

// Target is one storage path to be annotated with the sample and study
// of the run record that produced it: the experiment root for unplexed
// runs, or a barcode sub-collection for each plex of a multiplexed run.
type Target struct {
	Path string
	Run  domain.SequencingRun
	// Barcoded is true for barcode sub-targets; TagIndex is then the
	// plex's barcode ordinal.
	Barcoded bool
	TagIndex int
}

// ResolveFailure records a run record that could not be mapped onto a
// target, typically because its tag identifier is malformed. Sibling
// records resolve independently.
type ResolveFailure struct {
	Run domain.SequencingRun
	Err error
}

// InconsistentPlexDataError reports run records for one (experiment,
// position) that mix presence and absence of tag identifiers. The
// invariant is that records are either all unplexed (exactly one) or
// all plexed; a violation aborts the whole invocation rather than
// guessing a merge.
type InconsistentPlexDataError struct {
	Experiment string
	Position   int
}

func (e InconsistentPlexDataError) Error() string {
	return fmt.Sprintf("inconsistent plex data for experiment %q position %d: records mix tagged and untagged plexes",
		e.Experiment, e.Position)
}

// ResolveTargets maps the run records for one (experiment, position)
// onto the storage targets to annotate, preserving record order. Zero
// records yield zero targets. Records with malformed tag identifiers
// are returned as failures without blocking their siblings.
func ResolveTargets(root string, runs []domain.SequencingRun) ([]Target, []ResolveFailure, error) {
	if len(runs) == 0 {
		return nil, nil, nil
	}

	tagged := 0
	for _, r := range runs {
		if r.Multiplexed() {
			tagged++
		}
	}
	if tagged != 0 && tagged != len(runs) {
		return nil, nil, InconsistentPlexDataError{
			Experiment: runs[0].ExperimentName,
			Position:   runs[0].InstrumentPosition,
		}
	}

	if tagged == 0 {
		// Unplexed: the run folder itself is the target.
		targets := make([]Target, 0, len(runs))
		for _, r := range runs {
			targets = append(targets, Target{Path: root, Run: r})
		}
		return targets, nil, nil
	}

	// Multiplexed: one barcode sub-collection per plex, following the
	// directory naming convention of the de-plexers.
	var targets []Target
	var failures []ResolveFailure
	for _, r := range runs {
		name, err := BarcodeName(r.TagIdentifier)
		if err != nil {
			failures = append(failures, ResolveFailure{Run: r, Err: err})
			continue
		}
		idx, err := TagIndex(r.TagIdentifier)
		if err != nil {
			failures = append(failures, ResolveFailure{Run: r, Err: err})
			continue
		}
		targets = append(targets, Target{
			Path:     path.Join(root, name),
			Run:      r,
			Barcoded: true,
			TagIndex: idx,
		})
	}
	return targets, failures, nil
}
