// Package progress exposes change-log parsing and normalisation activity as
// an observable side effect, orthogonal to correctness: the parser and the
// normaliser report progress through a Sink rather than writing to stdout or
// a logger directly, so callers can swap in whichever reporting makes sense
// for their context (structured logs, Prometheus, nothing at all). Cursor
// navigation reports no progress events.
package progress

import "github.com/google/uuid"

// Sink receives progress events emitted while walking or normalising a
// change-log window. Implementations must be safe to call from a single
// goroutine at a time; no concurrency guarantee is made by callers.
type Sink interface {
	// WindowFound reports how many operations fell inside the alignment
	// window, and the window's half-width in hours (the window extends that
	// far on each side of the snapshot timestamp).
	WindowFound(count int, windowHours int)

	// WindowEmpty reports that no operations fell inside the window, and
	// the index normalisation fell back to.
	WindowEmpty(fallbackIdx int)

	// TransactionZero reports the index chosen as the alignment anchor.
	TransactionZero(idx int)

	// PhaseComplete reports how many operations were applied vs. skipped
	// during one phase ("forward" or "inverted") of normalisation.
	PhaseComplete(phase string, applied, skipped int)

	// LinesRead reports periodic progress while a change log is parsed.
	LinesRead(n int)

	// WithRunID returns a Sink that tags every subsequent event it emits
	// with runID, so the events of one normalisation run can be
	// correlated against each other in logs or metrics.
	WithRunID(runID uuid.UUID) Sink
}
