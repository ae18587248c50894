package extract

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// fileReport is the per-file object emitted by StreamFromDir.
type fileReport struct {
	SourceFile string  `json:"source_file"`
	Fields     *Report `json:"fields"`
}

// StreamFromDir extracts every HTML file in dir and streams a single JSON
// array to w, one object per file.
//
// Behavior:
//   - stable ordering by filename
//   - only .html/.htm files are considered
//   - unreadable or unparseable files are skipped, the rest still stream
func StreamFromDir(w io.Writer, dir string, specs []FieldSpec, opts Options, enc *json.Encoder) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	if _, err := io.WriteString(w, "["); err != nil {
		return fmt.Errorf("write [: %w", err)
	}

	first := true
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".html", ".htm":
		default:
			continue
		}

		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}

		report, err := ExtractHTML(string(b), specs, opts)
		if err != nil {
			continue
		}

		if !first {
			if _, err := io.WriteString(w, ","); err != nil {
				return fmt.Errorf("write comma: %w", err)
			}
		}
		first = false
		if err := enc.Encode(fileReport{SourceFile: e.Name(), Fields: report}); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	}

	if _, err := io.WriteString(w, "]"); err != nil {
		return fmt.Errorf("write ]: %w", err)
	}
	return nil
}
