// Package cursor provides time navigation through a normalised snapshot:
// stepping one operation at a time, jumping to an absolute index, or
// jumping to the operation nearest a target timestamp.
package cursor

import (
	"context"
	"fmt"
	"strings"

	"github.com/eigne/pensieve/pkg/applier"
	"github.com/eigne/pensieve/pkg/binlog"
	"github.com/eigne/pensieve/pkg/store"
)

// Cursor owns the store for the lifetime of a navigation session: the
// normaliser hands it off once alignment is complete, and nothing else
// mutates the store concurrently. One owner at a time.
type Cursor struct {
	applier    *applier.Applier
	operations []binlog.Operation
	position   int
	store      *store.Store
}

// New constructs a Cursor over operations, starting at initialPosition
// (typically the transaction-zero index the normaliser returned).
func New(s *store.Store, operations []binlog.Operation, initialPosition int) *Cursor {
	return &Cursor{
		applier:    applier.New(s, nil),
		operations: operations,
		position:   initialPosition,
		store:      s,
	}
}

// Position returns the index of the operation the cursor currently sits
// immediately after having applied (or, at position 0, before any
// operation beyond the starting snapshot state).
func (c *Cursor) Position() int { return c.position }

// Timestamp returns the timestamp of the operation at the cursor's current
// position, and whether one was recorded for it.
func (c *Cursor) Timestamp() (binlog.Timestamp, bool) {
	if c.position < 0 || c.position >= len(c.operations) {
		return binlog.Timestamp{}, false
	}
	op := c.operations[c.position]
	return op.Timestamp, op.HasTimestamp
}

// Store exposes the underlying store handle for read queries.
func (c *Cursor) Store() *store.Store { return c.store }

// OperationCount returns the total number of operations the cursor can
// navigate across.
func (c *Cursor) OperationCount() int { return len(c.operations) }

// Operation returns the operation at index, and whether index was in
// range.
func (c *Cursor) Operation(index int) (binlog.Operation, bool) {
	if index < 0 || index >= len(c.operations) {
		return binlog.Operation{}, false
	}
	return c.operations[index], true
}

// OperationsRange returns operations[start:min(end, len(operations))],
// clamping end rather than erroring on an overlong range.
func (c *Cursor) OperationsRange(start, end int) []binlog.Operation {
	if end > len(c.operations) {
		end = len(c.operations)
	}
	if start < 0 || start > end {
		return nil
	}
	return c.operations[start:end]
}

// StepForward applies the next operation (at position+1) and advances the
// cursor. It reports false, with no error and no state change, when
// already at the last operation.
//
// This is deliberately asymmetric with StepBackward: stepping forward
// applies the operation AHEAD of the cursor, while stepping backward
// inverts the operation AT the cursor, before moving. The cursor's
// position always denotes "the last operation applied in this direction",
// which is why the two use different indices.
func (c *Cursor) StepForward(ctx context.Context) (bool, error) {
	if c.position+1 >= len(c.operations) {
		return false, nil
	}
	next := c.operations[c.position+1]
	if _, err := c.applier.ApplyConditionally(ctx, next); err != nil {
		return false, fmt.Errorf("cursor: step forward: %w", err)
	}
	c.position++
	return true, nil
}

// StepBackward inverts and applies the operation at the cursor's current
// position, then retreats. It reports false, with no state change, when
// already at position 0.
func (c *Cursor) StepBackward(ctx context.Context) (bool, error) {
	if c.position == 0 {
		return false, nil
	}
	current := c.operations[c.position]
	inverted := current.Invert()
	if _, err := c.applier.ApplyConditionally(ctx, inverted); err != nil {
		return false, fmt.Errorf("cursor: step backward: %w", err)
	}
	c.position--
	return true, nil
}

// StepForwardBy calls StepForward up to count times, stopping early (and
// returning the number of successful steps) once the end of the operation
// sequence is reached.
func (c *Cursor) StepForwardBy(ctx context.Context, count int) (int, error) {
	taken := 0
	for i := 0; i < count; i++ {
		ok, err := c.StepForward(ctx)
		if err != nil {
			return taken, err
		}
		if !ok {
			break
		}
		taken++
	}
	return taken, nil
}

// StepBackwardBy calls StepBackward up to count times, stopping early once
// position 0 is reached.
func (c *Cursor) StepBackwardBy(ctx context.Context, count int) (int, error) {
	taken := 0
	for i := 0; i < count; i++ {
		ok, err := c.StepBackward(ctx)
		if err != nil {
			return taken, err
		}
		if !ok {
			break
		}
		taken++
	}
	return taken, nil
}

// GotoPosition walks the cursor to target by repeated StepForward calls
// (when target is ahead) or StepBackward calls (when it is behind). target
// must be a valid index into the operation sequence.
func (c *Cursor) GotoPosition(ctx context.Context, target int) error {
	if target < 0 || target >= len(c.operations) {
		return fmt.Errorf("cursor: target position %d out of bounds (0..%d)", target, len(c.operations))
	}
	switch {
	case target > c.position:
		_, err := c.StepForwardBy(ctx, target-c.position)
		return err
	case target < c.position:
		_, err := c.StepBackwardBy(ctx, c.position-target)
		return err
	default:
		return nil
	}
}

// GotoTimestamp walks the cursor to the operation whose timestamp exactly
// matches target, or — absent an exact match — the operation whose
// timestamp is "closest" by lexicographic string distance.
//
// "Closest" here is carried over verbatim from the original: the distance
// between two timestamp strings is just the sign of their string
// comparison (-1, 0, or 1), not a real interval. Since every mismatch
// therefore has the same distance (1), this effectively selects the
// first operation with any recorded timestamp, unless an exact match is
// found first — not a true nearest-timestamp search. This is a known
// latent bug, preserved rather than fixed.
func (c *Cursor) GotoTimestamp(ctx context.Context, target string) error {
	closestIdx := 0
	closestDiff := int(^uint(0) >> 1) // max int, mirroring i64::MAX in the source

	for idx, op := range c.operations {
		if !op.HasTimestamp {
			continue
		}
		ts := op.Timestamp.Format()
		if ts == target {
			closestIdx = idx
			break
		}
		diff := abs(strings.Compare(ts, target))
		if diff < closestDiff {
			closestDiff = diff
			closestIdx = idx
		}
	}

	return c.GotoPosition(ctx, closestIdx)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
