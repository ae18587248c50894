package extract

// Kind selects how matched nodes are converted into a field value.
type Kind string

const (
	// KindText takes the cleaned text content of the matched node.
	KindText Kind = "text"

	// KindURL takes the first present, non-empty attribute from the field's
	// attribute priority list and resolves it against the base URL.
	KindURL Kind = "url"

	// KindPair treats each matched node as a container of ordered
	// sub-elements: the first is the label, the second is the value.
	KindPair Kind = "pair"
)

// Locator is one way to find candidate nodes for a field.
type Locator struct {
	// Selector is a CSS selector evaluated relative to the field's root.
	Selector string `json:"selector" yaml:"selector"`

	// Match optionally narrows candidates to nodes whose cleaned text
	// matches this regular expression. Best-effort fallback locators
	// (e.g. "any span that looks like a price") use this instead of a
	// hardcoded pattern.
	Match string `json:"match,omitempty" yaml:"match,omitempty"`
}

// FieldSpec describes one field to extract.
//
// The primary Locator is tried first; Fallbacks are tried in declared order
// only when the locators before them yielded nothing usable.
type FieldSpec struct {
	Name      string    `json:"name" yaml:"name"`
	Locator   Locator   `json:"locator" yaml:"locator"`
	Fallbacks []Locator `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`

	// Kind defaults to KindText when empty.
	Kind Kind `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Attrs is the attribute priority list for KindURL fields, e.g.
	// ["src", "data-src"]. At least one entry is required for url fields.
	Attrs []string `json:"attrs,omitempty" yaml:"attrs,omitempty"`

	// Items is an optional selector for sub-elements inside a KindPair
	// container. When empty, direct element children are used.
	Items string `json:"items,omitempty" yaml:"items,omitempty"`

	// All collects every matching node (document order) instead of only the
	// first. Max caps the collected count; 0 means unlimited.
	All bool `json:"all,omitempty" yaml:"all,omitempty"`
	Max int  `json:"max,omitempty" yaml:"max,omitempty"`

	// Scope names an earlier field in the same spec list. When set, this
	// field is evaluated inside the node matched by that field instead of
	// the document root.
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`

	// Required marks fields whose absence should fail a page check. It has
	// no effect on extraction itself.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`
}

// Pair is one label/value couple extracted from a parameter container.
type Pair struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Status tags a field result as extracted or not found.
type Status string

const (
	StatusOK      Status = "ok"
	StatusMissing Status = "missing"
)

// FieldResult holds the outcome for one field. Exactly one of "a value" and
// "missing" holds: when Status is StatusMissing no value fields are set and
// Strategy is -1.
type FieldResult struct {
	Name   string `json:"-"`
	Status Status `json:"status"`

	// Strategy is the index of the locator that produced the value:
	// 0 for the primary, 1..n for fallbacks, -1 when missing.
	Strategy int `json:"strategy"`

	// Value is set for single text/url fields. An empty string is a valid
	// success; missing means no locator matched at all.
	Value string `json:"value,omitempty"`

	// Values is set for All fields of text/url kind, document order.
	Values []string `json:"values,omitempty"`

	// Pairs is set for pair fields.
	Pairs []Pair `json:"pairs,omitempty"`

	// Skipped counts malformed items (pair containers with too few
	// sub-elements) that were dropped without failing the field.
	Skipped int `json:"skipped,omitempty"`
}

// OK reports whether the field was extracted.
func (r FieldResult) OK() bool { return r.Status == StatusOK }
