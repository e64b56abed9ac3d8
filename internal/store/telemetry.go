package store

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/basetier/stratum/internal/store")
var meter = otel.Meter("github.com/basetier/stratum/internal/store")

var (
	// changeSetsApplied counts change sets promoted to head. Apply is
	// the one operation that rewrites the canonical baseline, so its
	// rate is the primary indicator of merge activity.
	changeSetsApplied metric.Int64Counter

	// sessionsSaved counts edit sessions promoted to their change set
	// tier.
	sessionsSaved metric.Int64Counter

	// applyDuration measures the duration of a full ApplyChangeSet
	// transaction, including post-commit notification publishing.
	applyDuration metric.Float64Histogram
)

func init() {
	var err error
	changeSetsApplied, err = meter.Int64Counter(
		"stratum.change_sets.applied",
		metric.WithDescription("The number of change sets applied to head."),
	)
	if err != nil {
		panic("store: failed to init 'stratum.change_sets.applied' instrument")
	}

	sessionsSaved, err = meter.Int64Counter(
		"stratum.edit_sessions.saved",
		metric.WithDescription("The number of edit sessions saved to their change set."),
	)
	if err != nil {
		panic("store: failed to init 'stratum.edit_sessions.saved' instrument")
	}

	applyDuration, err = meter.Float64Histogram(
		"stratum.change_sets.apply.duration",
		metric.WithDescription("The duration of a full change set apply, including post-commit notification publishing."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("store: failed to init 'stratum.change_sets.apply.duration' instrument")
	}
}

// recordApplyDuration records one apply's duration. Floating-point
// division keeps sub-millisecond precision.
func recordApplyDuration(ctx context.Context, d time.Duration) {
	applyDuration.Record(ctx, float64(d)/float64(time.Millisecond))
}
