package diag

import (
	"reflect"
	"sort"
	"strconv"
)

// Path identifies a location in the request document, e.g.
// "facets.and[0].locations.in". The empty Path is the document root.
type Path string

// Root starts a path at the named top-level field.
func Root(name string) Path {
	return Path(name)
}

// Field appends a named member to the path.
func (p Path) Field(name string) Path {
	if p == "" {
		return Path(name)
	}
	return p + "." + Path(name)
}

// Index appends an array index to the path.
func (p Path) Index(i int) Path {
	return p + "[" + Path(strconv.Itoa(i)) + "]"
}

// String returns the path as a plain string.
func (p Path) String() string {
	return string(p)
}

// Issue is a single error or warning attached to a path.
type Issue struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// Dictionary maps paths to the issues recorded against them.
type Dictionary map[string][]Issue

// Paths returns the dictionary keys in sorted order.
func (d Dictionary) Paths() []string {
	paths := make([]string, 0, len(d))
	for p := range d {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Codes returns the issue codes recorded at path, in insertion order.
func (d Dictionary) Codes(path string) []string {
	issues := d[path]
	codes := make([]string, len(issues))
	for i, issue := range issues {
		codes[i] = issue.Code
	}
	return codes
}

// clone deep-copies the dictionary's slices so callers cannot mutate the
// ledger through a returned value.
func (d Dictionary) clone() Dictionary {
	if len(d) == 0 {
		return nil
	}
	out := make(Dictionary, len(d))
	for k, v := range d {
		out[k] = append([]Issue(nil), v...)
	}
	return out
}

// Ledger accumulates errors and warnings for one request.
//
// The zero value is ready to use.
type Ledger struct {
	errors   Dictionary
	warnings Dictionary
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Error records an error at path. Identical issues at the same path are
// recorded once.
func (l *Ledger) Error(path Path, issue Issue) {
	if l.errors == nil {
		l.errors = make(Dictionary)
	}
	add(l.errors, path, issue)
}

// Warn records a warning at path. Identical issues at the same path are
// recorded once.
func (l *Ledger) Warn(path Path, issue Issue) {
	if l.warnings == nil {
		l.warnings = make(Dictionary)
	}
	add(l.warnings, path, issue)
}

// HasErrors reports whether any error has been recorded.
func (l *Ledger) HasErrors() bool {
	return len(l.errors) > 0
}

// Errors returns a copy of the recorded errors, or nil if there are none.
func (l *Ledger) Errors() Dictionary {
	return l.errors.clone()
}

// Warnings returns a copy of the recorded warnings, or nil if there are none.
func (l *Ledger) Warnings() Dictionary {
	return l.warnings.clone()
}

func add(d Dictionary, path Path, issue Issue) {
	key := string(path)
	for _, existing := range d[key] {
		if existing.Code == issue.Code &&
			existing.Message == issue.Message &&
			reflect.DeepEqual(existing.Details, issue.Details) {
			return
		}
	}
	d[key] = append(d[key], issue)
}
