package extract

import "github.com/rs/zerolog"

// Attempt records one locator evaluation during field extraction.
type Attempt struct {
	Strategy int    // 0 = primary, 1.. = fallback order
	Selector string
	Matched  int // nodes the locator matched before kind conversion
}

// TraceEntry is the per-field diagnostic record handed to a TraceSink.
// Strategy is the winning locator index, or -1 with Reason set.
type TraceEntry struct {
	Field    string
	Attempts []Attempt
	Strategy int
	Reason   string
}

// TraceSink observes extraction without influencing it.
type TraceSink interface {
	Trace(TraceEntry)
}

type nopSink struct{}

func (nopSink) Trace(TraceEntry) {}

// LogSink writes trace entries to a zerolog logger: debug for extracted
// fields, warn for missing ones so selector drift stands out in logs.
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Trace(e TraceEntry) {
	if e.Strategy >= 0 {
		s.Logger.Debug().
			Str("field", e.Field).
			Int("strategy", e.Strategy).
			Int("attempts", len(e.Attempts)).
			Msg("field extracted")
		return
	}
	selectors := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		selectors = append(selectors, a.Selector)
	}
	s.Logger.Warn().
		Str("field", e.Field).
		Strs("selectors", selectors).
		Str("reason", e.Reason).
		Msg("field missing")
}

// CollectSink accumulates entries in memory, mainly for tests and for the
// checkpage summary.
type CollectSink struct {
	Entries []TraceEntry
}

func (s *CollectSink) Trace(e TraceEntry) {
	s.Entries = append(s.Entries, e)
}
