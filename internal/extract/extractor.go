package extract

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// Options configures one Extract call.
type Options struct {
	// BaseURL is used to resolve relative values of url fields. Empty is
	// allowed; relative values are then kept as-is.
	BaseURL string

	// Trace, when non-nil, receives one entry per field. It is a passive
	// observer: results never depend on it.
	Trace TraceSink
}

// Extract applies specs to the document rooted at root and returns a report
// with one result per spec, in spec order.
//
// Extraction is a pure function of (root, specs, opts): the document is
// never mutated, and running twice yields an identical report.
//
// Per-field problems (no locator matched, unusable URL attributes, malformed
// pair containers) are recorded in the report. The only aborting errors are
// ErrInvalidRoot and an invalid spec list.
func Extract(root *goquery.Selection, specs []FieldSpec, opts Options) (*Report, error) {
	if root == nil || root.Length() == 0 {
		return nil, ErrInvalidRoot
	}
	if err := ValidateSpecs(specs); err != nil {
		return nil, err
	}

	trace := opts.Trace
	if trace == nil {
		trace = nopSink{}
	}

	report := newReport(len(specs))

	// anchors remembers the first node matched by each extracted field so
	// later fields can scope their search inside it.
	anchors := make(map[string]*goquery.Selection, len(specs))

	for _, spec := range specs {
		res, anchor, entry := extractField(root, spec, anchors, opts.BaseURL)
		report.add(res)
		if anchor != nil {
			anchors[spec.Name] = anchor
		}
		trace.Trace(entry)
	}
	return report, nil
}

// extractField evaluates one spec: primary locator first, then fallbacks in
// order, stopping at the first locator that yields a usable value.
func extractField(
	root *goquery.Selection,
	spec FieldSpec,
	anchors map[string]*goquery.Selection,
	baseURL string,
) (FieldResult, *goquery.Selection, TraceEntry) {
	res := FieldResult{Name: spec.Name, Status: StatusMissing, Strategy: -1}
	entry := TraceEntry{Field: spec.Name, Strategy: -1}

	scope := root
	if spec.Scope != "" {
		anchor := anchors[spec.Scope]
		if anchor == nil {
			entry.Reason = "scope field " + spec.Scope + " was not extracted"
			return res, nil, entry
		}
		scope = anchor
	}

	locators := make([]Locator, 0, 1+len(spec.Fallbacks))
	locators = append(locators, spec.Locator)
	locators = append(locators, spec.Fallbacks...)

	for i, loc := range locators {
		nodes := matchLocator(scope, loc)
		entry.Attempts = append(entry.Attempts, Attempt{
			Strategy: i,
			Selector: loc.Selector,
			Matched:  nodes.Length(),
		})
		if nodes.Length() == 0 {
			continue
		}
		if !applyKind(&res, spec, nodes, baseURL) {
			// Nodes matched but none produced a value (e.g. img tags
			// without a usable src). Treat like a miss and keep trying.
			continue
		}
		res.Status = StatusOK
		res.Strategy = i
		entry.Strategy = i
		return res, nodes.First(), entry
	}

	entry.Reason = "no locator yielded a value"
	return res, nil, entry
}

// matchLocator returns the nodes selected by loc, narrowed by its optional
// text-match regex.
func matchLocator(scope *goquery.Selection, loc Locator) *goquery.Selection {
	nodes := scope.Find(loc.Selector)
	if loc.Match == "" || nodes.Length() == 0 {
		return nodes
	}
	re, err := regexp.Compile(loc.Match)
	if err != nil {
		// ValidateSpecs rejects invalid patterns before extraction starts.
		return nodes.Slice(0, 0)
	}
	return nodes.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return re.MatchString(CleanText(s.Text()))
	})
}

// applyKind converts matched nodes into a value on res. It returns false
// when the nodes yielded nothing usable, so the caller can fall through to
// the next locator.
func applyKind(res *FieldResult, spec FieldSpec, nodes *goquery.Selection, baseURL string) bool {
	kind := spec.Kind
	if kind == "" {
		kind = KindText
	}

	switch kind {
	case KindText:
		if spec.All {
			res.Values = collectText(nodes, spec.Max)
			return true
		}
		// An empty string is a valid success: the node matched, it just
		// has no text. Only "no node matched" means missing.
		res.Value = CleanText(nodes.First().Text())
		return true

	case KindURL:
		if spec.All {
			vals := collectURLs(nodes, spec.Attrs, baseURL, spec.Max)
			if len(vals) == 0 {
				return false
			}
			res.Values = vals
			return true
		}
		v, ok := firstURL(nodes, spec.Attrs, baseURL)
		if !ok {
			return false
		}
		res.Value = v
		return true

	case KindPair:
		if spec.All {
			pairs, skipped := collectPairs(nodes, spec.Items, spec.Max)
			res.Pairs = pairs
			res.Skipped = skipped
			return true
		}
		pair, skipped, ok := firstPair(nodes, spec.Items)
		if !ok {
			return false
		}
		res.Pairs = []Pair{pair}
		res.Value = pair.Value
		res.Skipped = skipped
		return true
	}
	return false
}

// collectText gathers cleaned text for every node, in document order, up to
// max items (0 = unlimited). Empty texts are dropped.
func collectText(nodes *goquery.Selection, max int) []string {
	var out []string
	nodes.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if max > 0 && len(out) >= max {
			return false
		}
		if v := CleanText(s.Text()); v != "" {
			out = append(out, v)
		}
		return true
	})
	return out
}

// collectURLs gathers resolved URLs for every node carrying a usable
// attribute, in document order, up to max items (0 = unlimited). Nodes
// without a usable attribute are skipped, never an error.
func collectURLs(nodes *goquery.Selection, attrs []string, baseURL string, max int) []string {
	var out []string
	nodes.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if max > 0 && len(out) >= max {
			return false
		}
		if v, ok := nodeURL(s, attrs, baseURL); ok {
			out = append(out, v)
		}
		return true
	})
	return out
}

// firstURL returns the resolved URL of the first node with a usable
// attribute.
func firstURL(nodes *goquery.Selection, attrs []string, baseURL string) (string, bool) {
	var found string
	ok := false
	nodes.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, got := nodeURL(s, attrs, baseURL); got {
			found, ok = v, true
			return false
		}
		return true
	})
	return found, ok
}

// nodeURL picks the first present, non-empty attribute from the priority
// list and resolves it. Resolution is total, so the only failure mode is
// "no usable attribute on this node".
func nodeURL(s *goquery.Selection, attrs []string, baseURL string) (string, bool) {
	for _, attr := range attrs {
		raw, present := s.Attr(attr)
		if !present {
			continue
		}
		if v := ResolveURL(baseURL, raw); v != "" {
			return v, true
		}
	}
	return "", false
}

// collectPairs extracts a label/value pair from every container, up to max
// pairs (0 = unlimited). Containers with fewer than two sub-elements are
// counted as skipped and do not abort the rest.
func collectPairs(nodes *goquery.Selection, itemSelector string, max int) ([]Pair, int) {
	var out []Pair
	skipped := 0
	nodes.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if max > 0 && len(out) >= max {
			return false
		}
		pair, ok := nodePair(s, itemSelector)
		if !ok {
			skipped++
			return true
		}
		out = append(out, pair)
		return true
	})
	return out, skipped
}

// firstPair scans containers in order and returns the first well-formed
// pair, counting malformed containers seen before it.
func firstPair(nodes *goquery.Selection, itemSelector string) (Pair, int, bool) {
	var found Pair
	skipped := 0
	ok := false
	nodes.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		pair, got := nodePair(s, itemSelector)
		if !got {
			skipped++
			return true
		}
		found, ok = pair, true
		return false
	})
	return found, skipped, ok
}

// nodePair splits a container into label (first sub-element) and value
// (second sub-element), both cleaned.
func nodePair(s *goquery.Selection, itemSelector string) (Pair, bool) {
	var items *goquery.Selection
	if itemSelector == "" {
		items = s.Children()
	} else {
		items = s.Find(itemSelector)
	}
	if items.Length() < 2 {
		return Pair{}, false
	}
	return Pair{
		Label: CleanText(items.Eq(0).Text()),
		Value: CleanText(items.Eq(1).Text()),
	}, true
}
