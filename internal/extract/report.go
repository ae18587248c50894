package extract

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrInvalidRoot is returned when Extract is called with a nil or empty
// document root. It is the only error that aborts a whole extraction; every
// per-field problem is recorded inside the report instead.
var ErrInvalidRoot = errors.New("extract: invalid document root")

// Report is the immutable outcome of one extraction run. Field order equals
// spec order.
type Report struct {
	results []FieldResult
	byName  map[string]int
}

func newReport(capacity int) *Report {
	return &Report{
		results: make([]FieldResult, 0, capacity),
		byName:  make(map[string]int, capacity),
	}
}

func (r *Report) add(res FieldResult) {
	r.byName[res.Name] = len(r.results)
	r.results = append(r.results, res)
}

// Fields returns all results in spec order. The returned slice is a copy.
func (r *Report) Fields() []FieldResult {
	out := make([]FieldResult, len(r.results))
	copy(out, r.results)
	return out
}

// Field returns the result for name.
func (r *Report) Field(name string) (FieldResult, bool) {
	i, ok := r.byName[name]
	if !ok {
		return FieldResult{}, false
	}
	return r.results[i], true
}

// Len returns the number of fields in the report.
func (r *Report) Len() int { return len(r.results) }

// FailedCount returns how many fields ended up missing.
func (r *Report) FailedCount() int {
	n := 0
	for _, res := range r.results {
		if !res.OK() {
			n++
		}
	}
	return n
}

// SkippedCount returns the total number of malformed items dropped across
// all fields.
func (r *Report) SkippedCount() int {
	n := 0
	for _, res := range r.results {
		n += res.Skipped
	}
	return n
}

// MarshalJSON encodes the report as a JSON object keyed by field name,
// preserving spec order. A plain map would lose the ordering contract, so
// the object is assembled by hand.
func (r *Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, res := range r.results {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(res.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(res)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
