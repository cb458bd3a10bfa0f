package ont

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"seqprov/internal/storage"
	"seqprov/internal/warehouse"
)

// TargetNotFoundError reports a resolved target whose storage node does
// not exist. Run folders are created upstream by the ingest pipeline;
// the annotator never creates them.
type TargetNotFoundError struct {
	Path string
}

func (e TargetNotFoundError) Error() string {
	return fmt.Sprintf("storage target %s does not exist", e.Path)
}

// TargetFailure names one target that could not be annotated and why.
type TargetFailure struct {
	// Path is the target path, when resolution got that far.
	Path string
	// TagIdentifier is set when the failure concerns one plex record.
	TagIdentifier string
	Err           error
}

// Report is the structured outcome of one annotation invocation.
// Annotation is best-effort per target and not transactional: targets
// listed in Annotated keep their new state even when siblings failed.
type Report struct {
	Experiment string
	Position   int
	Annotated  []string
	Failures   []TargetFailure
}

// OK reports whether every resolved target was annotated.
func (r Report) OK() bool { return len(r.Failures) == 0 }

// Err summarises the failures as a single error, or nil when none.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f.Err)
	}
	return fmt.Errorf("annotation of %s position %d: %d of %d targets failed: %w",
		r.Experiment, r.Position, len(r.Failures), len(r.Failures)+len(r.Annotated), errors.Join(errs...))
}

// Option configures an Annotator.
type Option func(*Annotator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l Logger) Option {
	return func(a *Annotator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithGroupPrefix overrides the prefix used to derive the study
// access-control principal (default "ss_").
func WithGroupPrefix(prefix string) Option {
	return func(a *Annotator) {
		if prefix != "" {
			a.groupPrefix = prefix
		}
	}
}

// Annotator propagates warehouse provenance and access policy onto
// storage targets. It holds no mutable state between invocations, so
// independent experiments may be annotated concurrently by the caller.
type Annotator struct {
	store       storage.Store
	logger      Logger
	groupPrefix string
}

// NewAnnotator constructs an annotator writing to the given store.
func NewAnnotator(store storage.Store, opts ...Option) *Annotator {
	a := &Annotator{
		store:       store,
		logger:      noopLogger{},
		groupPrefix: DefaultGroupPrefix,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnnotateResultsCollection annotates the storage targets for one
// (experiment, position): the run folder at root for an unplexed run,
// or one barcode sub-collection per plex for a multiplexed run. Derived
// AVUs are upserted by (namespace, attribute) and the per-target access
// grant is upserted by principal, recursively over descendants so that
// files added since the last pass inherit the current policy. The whole
// operation is idempotent.
//
// Per-target failures do not block sibling targets; they are collected
// in the returned Report. A non-nil error is returned only for
// whole-invocation conditions: a warehouse query failure or
// inconsistent plex data.
func (a *Annotator) AnnotateResultsCollection(ctx context.Context, wh warehouse.Warehouse, root, experiment string, position int) (Report, error) {
	annotationInvocations.Inc()
	report := Report{Experiment: experiment, Position: position}

	a.logger.Debug("searching the warehouse for plex information",
		"experiment", experiment, "position", position)
	runs, err := wh.PlexRecords(ctx, experiment, position)
	if err != nil {
		return report, fmt.Errorf("query plex records for %s position %d: %w", experiment, position, err)
	}

	targets, resolveFailures, err := ResolveTargets(root, runs)
	if err != nil {
		return report, err
	}
	for _, f := range resolveFailures {
		targetFailures.Inc()
		report.Failures = append(report.Failures, TargetFailure{
			TagIdentifier: f.Run.TagIdentifier,
			Err:           f.Err,
		})
	}
	if len(targets) == 0 && len(resolveFailures) == 0 {
		a.logger.Info("no plex records found", "experiment", experiment, "position", position)
		return report, nil
	}

	// The run-identity AVUs should be present on the root already from
	// ingest; re-applying is idempotent.
	rootErr := a.annotateRoot(ctx, root, experiment, position)
	if rootErr != nil {
		targetFailures.Inc()
		report.Failures = append(report.Failures, TargetFailure{Path: root, Err: rootErr})
	}

	for _, t := range targets {
		// An unplexed target shares the root path; its failure is
		// already recorded.
		if rootErr != nil && t.Path == root {
			continue
		}
		if err := a.annotateTarget(ctx, t); err != nil {
			targetFailures.Inc()
			report.Failures = append(report.Failures, TargetFailure{
				Path:          t.Path,
				TagIdentifier: t.Run.TagIdentifier,
				Err:           err,
			})
			continue
		}
		targetsAnnotated.Inc()
		report.Annotated = append(report.Annotated, t.Path)
	}
	return report, nil
}

func (a *Annotator) annotateRoot(ctx context.Context, root, experiment string, position int) error {
	if _, err := a.store.Stat(ctx, root); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return TargetNotFoundError{Path: root}
		}
		return fmt.Errorf("stat root %s: %w", root, err)
	}
	if err := a.store.UpsertMetadata(ctx, root, InstrumentMetadata(experiment, position)...); err != nil {
		return fmt.Errorf("apply instrument metadata to %s: %w", root, err)
	}
	return nil
}

func (a *Annotator) annotateTarget(ctx context.Context, t Target) error {
	a.logger.Debug("annotating storage path",
		"path", t.Path, "sample", t.Run.Sample.ID, "study", t.Run.Study.ID,
		"tag_identifier", t.Run.TagIdentifier)

	if _, err := a.store.Stat(ctx, t.Path); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return TargetNotFoundError{Path: t.Path}
		}
		return fmt.Errorf("stat target %s: %w", t.Path, err)
	}

	avus := make([]storage.AVU, 0, 12)
	if t.Barcoded {
		avus = append(avus, storage.AVU{Attr: AttrTagIndex, Value: strconv.Itoa(t.TagIndex)})
	}
	avus = append(avus, StudyMetadata(t.Run.Study)...)
	avus = append(avus, SampleMetadata(t.Run.Sample)...)
	if err := a.store.UpsertMetadata(ctx, t.Path, avus...); err != nil {
		return fmt.Errorf("apply metadata to %s: %w", t.Path, err)
	}

	// The ACL can differ per plex; grants must reach descendants so
	// files added between passes inherit the current policy.
	ac := SampleACL(t.Run.Sample, t.Run.Study, a.groupPrefix)
	if err := a.store.UpsertPermissions(ctx, t.Path, true, ac); err != nil {
		return fmt.Errorf("apply permissions to %s: %w", t.Path, err)
	}
	return nil
}
