package storage

import (
	"encoding/json"
	"fmt"

	"listingcheck/internal/extract"
)

// FieldRow is the flattened per-field form every backend inserts. Keeping
// the flattening here means the three backends cannot drift apart on what a
// stored field looks like.
type FieldRow struct {
	Position int
	Name     string
	Status   string
	Strategy int
	Payload  string // JSON-encoded result (value/values/pairs/skipped)
	Skipped  int
}

// FieldRows flattens a report into insertable rows, preserving spec order
// via Position.
func FieldRows(r *extract.Report) ([]FieldRow, error) {
	if r == nil {
		return nil, fmt.Errorf("storage: nil report")
	}
	fields := r.Fields()
	rows := make([]FieldRow, 0, len(fields))
	for i, res := range fields {
		payload, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", res.Name, err)
		}
		rows = append(rows, FieldRow{
			Position: i,
			Name:     res.Name,
			Status:   string(res.Status),
			Strategy: res.Strategy,
			Payload:  string(payload),
			Skipped:  res.Skipped,
		})
	}
	return rows, nil
}
