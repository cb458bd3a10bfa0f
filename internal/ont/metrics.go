package ont

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	annotationInvocations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seqprov_annotation_invocations_total",
		Help: "Annotation invocations, one per (experiment, position).",
	})
	targetsAnnotated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seqprov_targets_annotated_total",
		Help: "Storage targets annotated successfully.",
	})
	targetFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seqprov_target_failures_total",
		Help: "Storage targets whose annotation failed.",
	})
)
