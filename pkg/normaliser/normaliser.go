// Package normaliser aligns a snapshot of unknown exact binlog position to
// a specific point in the change-log stream, using only the timestamp
// window around the snapshot's approximate creation time.
//
// Normalising is done by applying past operations (skipping any with no
// effect) and reversing future operations. Applying the entire change log
// would work too, but is unnecessary: operations safely outside the window
// are guaranteed to have no net effect once conditional-apply is taken into
// account, since they're chronologically on the "already applied" or "not
// yet applied" side of the snapshot.
package normaliser

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/eigne/pensieve/pkg/applier"
	"github.com/eigne/pensieve/pkg/binlog"
	"github.com/eigne/pensieve/pkg/progress"
)

const (
	phaseForward  = "forward"
	phaseInverted = "inverted"
)

// Result describes the outcome of normalising a snapshot: the (unmodified)
// operation slice it was aligned against, the index within it chosen as
// transaction zero — the anchor the cursor package starts walking from —
// and the RunID this run was tagged with, for correlating its progress
// events across logs and metrics.
type Result struct {
	Operations      []binlog.Operation
	TransactionZero int
	RunID           uuid.UUID
}

// Normalise aligns the store (already carrying the loaded snapshot, reached
// through a) to the midpoint of whichever operations in operations fall
// within [snapshotTimestamp - windowHours, snapshotTimestamp + windowHours].
//
// Operations at or before the chosen midpoint are applied forward in
// stream order; operations after it are inverted and applied in reverse
// stream order. Both phases use conditional apply, so operations that
// already match the snapshot's current state (because the true snapshot
// position coincided with, or post-dated, that operation) are silently
// skipped rather than double-applied.
func Normalise(ctx context.Context, a *applier.Applier, operations []binlog.Operation, snapshotTimestamp binlog.Timestamp, windowHours int, sink progress.Sink) (Result, error) {
	if sink == nil {
		sink = progress.NoopSink{}
	}
	runID := uuid.New()
	sink = sink.WithRunID(runID)

	lower := snapshotTimestamp.SubtractHours(windowHours)
	upper := snapshotTimestamp.AddHours(windowHours)

	var windowIdx []int
	for i, op := range operations {
		if !op.HasTimestamp {
			continue
		}
		if op.Timestamp.InWindow(lower, upper) {
			windowIdx = append(windowIdx, i)
		}
	}

	if len(windowIdx) == 0 {
		fallback := 0
		if len(operations) > 0 {
			fallback = len(operations) - 1
		}
		sink.WindowEmpty(fallback)
		return Result{Operations: operations, TransactionZero: fallback, RunID: runID}, nil
	}

	sink.WindowFound(len(windowIdx), windowHours)

	txZeroIdx := windowIdx[len(windowIdx)/2]
	sink.TransactionZero(txZeroIdx)

	appliedForward, skippedForward := 0, 0
	for _, idx := range windowIdx {
		if idx > txZeroIdx {
			continue
		}
		applied, err := a.ApplyConditionally(ctx, operations[idx])
		if err != nil {
			return Result{}, fmt.Errorf("normaliser: forward phase at index %d: %w", idx, err)
		}
		if applied {
			appliedForward++
		} else {
			skippedForward++
		}
	}
	sink.PhaseComplete(phaseForward, appliedForward, skippedForward)

	var afterIdx []int
	for _, idx := range windowIdx {
		if idx > txZeroIdx {
			afterIdx = append(afterIdx, idx)
		}
	}
	reverse(afterIdx)

	appliedInverted, skippedInverted := 0, 0
	for _, idx := range afterIdx {
		inverted := operations[idx].Invert()
		applied, err := a.ApplyConditionally(ctx, inverted)
		if err != nil {
			return Result{}, fmt.Errorf("normaliser: inverted phase at index %d: %w", idx, err)
		}
		if applied {
			appliedInverted++
		} else {
			skippedInverted++
		}
	}
	sink.PhaseComplete(phaseInverted, appliedInverted, skippedInverted)

	return Result{Operations: operations, TransactionZero: txZeroIdx, RunID: runID}, nil
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
