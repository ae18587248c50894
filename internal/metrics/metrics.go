// Package metrics defines the minimal metrics abstraction the extraction
// pipeline emits into. Vendor backends live in subpackages so core code
// depends only on Backend.
package metrics

// Labels are free-form metric dimensions.
type Labels map[string]string

// Canonical metric names emitted by the extraction pipeline.
const (
	// FieldsTotal counts extracted fields. Labels: field, status (ok|missing).
	FieldsTotal = "extract_fields_total"

	// ItemsSkipped counts malformed items dropped inside list/pair fields.
	// Labels: field.
	ItemsSkipped = "extract_items_skipped_total"

	// PagesTotal counts processed documents.
	PagesTotal = "extract_pages_total"

	// DurationSeconds is the per-document extraction duration histogram.
	DurationSeconds = "extract_duration_seconds"
)

// Backend receives counters and histogram samples. Implementations must be
// safe for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Nop discards all metrics. It lets callers keep a non-nil Backend when
// metrics are disabled.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}

var _ Backend = Nop{}
