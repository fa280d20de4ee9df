package taxonomy

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Build variants.
const (
	VariantRanked   = "ranked"
	VariantExplicit = "explicit"
)

// Entry is the flattened, externally consumed form of a taxonomy node.
type Entry struct {
	Code       string   `json:"code"`
	Label      string   `json:"label"`
	Path       []string `json:"path"`
	Level      int      `json:"level"`
	ParentCode string   `json:"parent,omitempty"`
	SourceID   string   `json:"source_id,omitempty"`
}

// IsRoot reports whether the entry has no parent.
func (e Entry) IsRoot() bool { return e.ParentCode == "" }

// BuildReport counts rows the builder could not use.
type BuildReport struct {
	Rows       int `json:"rows"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
	Orphans    int `json:"orphans"`
}

// Stats summarizes an index.
type Stats struct {
	Total         int         `json:"total"`
	TopLevel      int         `json:"top_level"`
	Subcategories int         `json:"subcategories"`
	MaxDepth      int         `json:"max_depth"`
	ByLevel       map[int]int `json:"by_level"`
}

// Index is an immutable, code-addressed taxonomy. All methods are safe for
// concurrent use; returned slices are copies.
type Index struct {
	source   string
	version  string
	variant  string
	builtAt  time.Time
	report   BuildReport
	entries  []Entry
	byCode   map[string]int
	byUpper  map[string]int
	byLabel  map[string][]int
	children map[string][]int
}

func newIndex(source, version, variant string, entries []Entry, report BuildReport) *Index {
	idx := &Index{
		source:   source,
		version:  version,
		variant:  variant,
		builtAt:  time.Now().UTC(),
		report:   report,
		entries:  entries,
		byCode:   make(map[string]int, len(entries)),
		byUpper:  make(map[string]int, len(entries)),
		byLabel:  make(map[string][]int, len(entries)),
		children: make(map[string][]int),
	}
	for i, e := range entries {
		idx.byCode[e.Code] = i
		if _, ok := idx.byUpper[strings.ToUpper(e.Code)]; !ok {
			idx.byUpper[strings.ToUpper(e.Code)] = i
		}
		key := FoldLabel(e.Label)
		idx.byLabel[key] = append(idx.byLabel[key], i)
		if e.ParentCode != "" {
			idx.children[e.ParentCode] = append(idx.children[e.ParentCode], i)
		}
	}
	return idx
}

// FoldLabel is the case-insensitive key used for label lookups.
func FoldLabel(label string) string {
	return cases.Fold().String(strings.Join(strings.Fields(label), " "))
}

// Source returns the location the index was built from.
func (x *Index) Source() string { return x.source }

// Version returns the version tag recorded on classifications.
func (x *Index) Version() string { return x.version }

// Variant returns the build variant.
func (x *Index) Variant() string { return x.variant }

// BuiltAt returns the build time.
func (x *Index) BuiltAt() time.Time { return x.builtAt }

// Report returns the build report.
func (x *Index) Report() BuildReport { return x.report }

// Len returns the number of entries.
func (x *Index) Len() int { return len(x.entries) }

// Entries returns all entries in build order.
func (x *Index) Entries() []Entry {
	out := make([]Entry, len(x.entries))
	copy(out, x.entries)
	return out
}

// Lookup finds an entry by code. An exact match wins over a case-insensitive one.
func (x *Index) Lookup(code string) (Entry, bool) {
	code = strings.TrimSpace(code)
	if i, ok := x.byCode[code]; ok {
		return x.entries[i], true
	}
	if i, ok := x.byUpper[strings.ToUpper(code)]; ok {
		return x.entries[i], true
	}
	return Entry{}, false
}

// Roots returns the top-level entries in build order.
func (x *Index) Roots() []Entry {
	var out []Entry
	for _, e := range x.entries {
		if e.IsRoot() {
			out = append(out, e)
		}
	}
	return out
}

// Children returns the immediate children of code in build order.
func (x *Index) Children(code string) []Entry {
	idxs := x.children[code]
	out := make([]Entry, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, x.entries[i])
	}
	return out
}

// WithLabel returns every entry whose label folds to the same key as label.
func (x *Index) WithLabel(label string) []Entry {
	idxs := x.byLabel[FoldLabel(label)]
	out := make([]Entry, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, x.entries[i])
	}
	return out
}

// CodesForLabel returns the codes sharing label.
func (x *Index) CodesForLabel(label string) []string {
	var codes []string
	for _, e := range x.WithLabel(label) {
		codes = append(codes, e.Code)
	}
	return codes
}

// IsImmediateChild reports whether child sits directly below parent.
func (x *Index) IsImmediateChild(parent, child string) bool {
	if parent == "" || child == "" {
		return false
	}
	if e, ok := x.Lookup(child); ok && e.ParentCode != "" {
		if p, ok := x.Lookup(parent); ok {
			return e.ParentCode == p.Code
		}
	}
	return isRankedChildCode(parent, child)
}

// isRankedChildCode checks the {parent}-{n} form.
func isRankedChildCode(parent, child string) bool {
	rest, ok := strings.CutPrefix(child, parent+"-")
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Stats summarizes the index.
func (x *Index) Stats() Stats {
	st := Stats{Total: len(x.entries), ByLevel: make(map[int]int)}
	for _, e := range x.entries {
		if e.IsRoot() {
			st.TopLevel++
		}
		if e.Level > st.MaxDepth {
			st.MaxDepth = e.Level
		}
		st.ByLevel[e.Level]++
	}
	st.Subcategories = st.Total - st.TopLevel
	return st
}
