package progress

import (
	"log/slog"

	"github.com/google/uuid"
)

// SlogSink reports progress through structured logging, the default sink
// for CLI and test use when nothing else is wired in.
type SlogSink struct {
	log *slog.Logger
}

// NewSlogSink constructs a Sink backed by log. A nil logger falls back to
// slog.Default().
func NewSlogSink(log *slog.Logger) *SlogSink {
	if log == nil {
		log = slog.Default()
	}
	return &SlogSink{log: log}
}

func (s *SlogSink) WindowFound(count int, windowHours int) {
	s.log.Info("found operations in alignment window", "count", count, "window_hours", windowHours)
}

func (s *SlogSink) WindowEmpty(fallbackIdx int) {
	s.log.Warn("no operations found in alignment window, skipping normalisation", "fallback_index", fallbackIdx)
}

func (s *SlogSink) TransactionZero(idx int) {
	s.log.Info("selected transaction zero", "index", idx)
}

func (s *SlogSink) PhaseComplete(phase string, applied, skipped int) {
	s.log.Info("normalisation phase complete", "phase", phase, "applied", applied, "skipped", skipped)
}

func (s *SlogSink) LinesRead(n int) {
	s.log.Debug("parsing change log", "lines", n)
}

// WithRunID returns a SlogSink whose logger tags every line with run_id,
// so one run's events can be grepped out of a shared log stream.
func (s *SlogSink) WithRunID(runID uuid.UUID) Sink {
	return &SlogSink{log: s.log.With("run_id", runID.String())}
}

// NoopSink discards all progress events, for callers that don't want any
// reporting (most tests).
type NoopSink struct{}

func (NoopSink) WindowFound(int, int)        {}
func (NoopSink) WindowEmpty(int)             {}
func (NoopSink) TransactionZero(int)         {}
func (NoopSink) PhaseComplete(string, int, int) {}
func (NoopSink) LinesRead(int)               {}
func (n NoopSink) WithRunID(uuid.UUID) Sink  { return n }
