// Package validation resolves free-text category fields produced by the
// completion service to taxonomy codes.
//
// Each field tries, in order: a code token in the field itself, a code token
// in its paired label field, then a case-insensitive label lookup. A field
// that resolves by none of these is absent, never an error. Subcategories
// that are not immediate children of their primary are dropped with a
// warning.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ignite/content-signals/internal/domain"
	"github.com/ignite/content-signals/internal/taxonomy"
)

// Strategy names reported on each resolution.
const (
	StrategyCode      = "code"
	StrategyLabelCode = "label_code"
	StrategyLabel     = "label"
)

// Field names, matching the classification record's JSON fields.
const (
	FieldPrimary      = "iab_code"
	FieldSub          = "iab_subcode"
	FieldSecondary    = "iab_secondary_code"
	FieldSecondarySub = "iab_secondary_subcode"
)

const codeToken = `[A-Za-z]*[0-9]+(?:[-._][0-9]+)*`

var (
	leadingCodeRe  = regexp.MustCompile(`^\s*[(\[]?\s*(` + codeToken + `)(?:$|[^A-Za-z0-9])`)
	trailingCodeRe = regexp.MustCompile(`[(\[]\s*(` + codeToken + `)\s*[)\]]\s*$`)
	leadingStripRe = regexp.MustCompile(`^\s*[(\[]?\s*` + codeToken + `\s*[)\]]?\s*[:|\-–—]*\s*`)
)

// Input holds the raw category fields of one completion response. Code
// fields may hold codes, labels or both; label fields usually hold labels.
type Input struct {
	Category             string
	Code                 string
	Subcategory          string
	Subcode              string
	SecondaryCategory    string
	SecondaryCode        string
	SecondarySubcategory string
	SecondarySubcode     string
}

// Resolution is a field resolved to a taxonomy entry.
type Resolution struct {
	Code     string `json:"code"`
	Label    string `json:"label"`
	Strategy string `json:"strategy"`
}

// Result holds the four resolved fields (nil when absent) and the summary.
type Result struct {
	Primary      *Resolution
	Sub          *Resolution
	Secondary    *Resolution
	SecondarySub *Resolution
	Summary      domain.ValidationSummary
}

// Apply writes the resolved codes and their taxonomy labels onto rec.
// Absent fields are cleared.
func (r Result) Apply(rec *domain.ClassificationRecord) {
	set := func(res *Resolution, code, label *string) {
		*code, *label = "", ""
		if res != nil {
			*code, *label = res.Code, res.Label
		}
	}
	set(r.Primary, &rec.IABCode, &rec.IABCategory)
	set(r.Sub, &rec.IABSubcode, &rec.IABSubcategory)
	set(r.Secondary, &rec.IABSecondaryCode, &rec.IABSecondaryCategory)
	set(r.SecondarySub, &rec.IABSecondarySubcode, &rec.IABSecondarySubcategory)
	summary := r.Summary
	rec.Validation = &summary
}

// Validator resolves fields against one index. It is safe for concurrent use.
type Validator struct {
	idx *taxonomy.Index
}

// New creates a validator over idx.
func New(idx *taxonomy.Index) *Validator {
	return &Validator{idx: idx}
}

type depthPolicy int

const (
	preferShallow depthPolicy = iota
	preferDeep
)

// Validate resolves every field of in.
func (v *Validator) Validate(in Input) Result {
	var res Result
	res.Summary.Strategies = make(map[string]string)

	res.Primary = v.resolve(&res.Summary, FieldPrimary, in.Code, in.Category, preferShallow, nil)
	res.Sub = v.resolve(&res.Summary, FieldSub, in.Subcode, in.Subcategory, preferDeep, res.Primary)
	res.Secondary = v.resolve(&res.Summary, FieldSecondary, in.SecondaryCode, in.SecondaryCategory, preferShallow, nil)
	res.SecondarySub = v.resolve(&res.Summary, FieldSecondarySub, in.SecondarySubcode, in.SecondarySubcategory, preferDeep, res.Secondary)

	res.Sub = v.checkChild(&res.Summary, FieldSub, res.Primary, res.Sub)
	res.SecondarySub = v.checkChild(&res.Summary, FieldSecondarySub, res.Secondary, res.SecondarySub)

	for _, r := range []*Resolution{res.Primary, res.Sub, res.Secondary, res.SecondarySub} {
		if r != nil {
			res.Summary.Resolved++
		}
	}
	if len(res.Summary.Strategies) == 0 {
		res.Summary.Strategies = nil
	}
	return res
}

func (v *Validator) resolve(sum *domain.ValidationSummary, field, code, label string, policy depthPolicy, parent *Resolution) *Resolution {
	code, label = clean(code), clean(label)
	if code == "" && label == "" {
		return nil
	}

	r := v.byCodeToken(code)
	if r != nil {
		r.Strategy = StrategyCode
	} else if r = v.byCodeToken(label); r != nil {
		r.Strategy = StrategyLabelCode
	} else {
		text := label
		if text == "" {
			text = code
		}
		r = v.byLabel(text, policy, parent)
	}

	if r == nil {
		input := code
		if label != "" {
			input = strings.TrimSpace(label + " " + code)
		}
		sum.Unresolved = append(sum.Unresolved, domain.UnresolvedField{Field: field, Input: input})
		return nil
	}
	sum.Strategies[field] = r.Strategy
	return r
}

// byCodeToken resolves a leading or trailing parenthesized code token.
func (v *Validator) byCodeToken(s string) *Resolution {
	if s == "" || v.idx == nil {
		return nil
	}
	for _, re := range []*regexp.Regexp{leadingCodeRe, trailingCodeRe} {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if e, ok := v.idx.Lookup(taxonomy.CanonicalCode(m[1])); ok {
			return &Resolution{Code: e.Code, Label: e.Label}
		}
	}
	return nil
}

func (v *Validator) byLabel(text string, policy depthPolicy, parent *Resolution) *Resolution {
	if v.idx == nil {
		return nil
	}
	// Labels such as "2024 Elections" start with a number, so the text is
	// tried with its leading token before the code-stripped form.
	var candidates []taxonomy.Entry
	if label := labelText(text); label != "" {
		candidates = v.idx.WithLabel(label)
	}
	if len(candidates) == 0 {
		if label := CleanLabel(text); label != "" {
			candidates = v.idx.WithLabel(label)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	if parent != nil {
		for _, c := range candidates {
			if v.idx.IsImmediateChild(parent.Code, c.Code) {
				return &Resolution{Code: c.Code, Label: c.Label, Strategy: StrategyLabel}
			}
		}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if (policy == preferShallow && c.Level < best.Level) || (policy == preferDeep && c.Level > best.Level) {
			best = c
		}
	}
	return &Resolution{Code: best.Code, Label: best.Label, Strategy: StrategyLabel}
}

func (v *Validator) checkChild(sum *domain.ValidationSummary, field string, parent, child *Resolution) *Resolution {
	if child == nil {
		return nil
	}
	if parent != nil && v.idx.IsImmediateChild(parent.Code, child.Code) {
		return child
	}
	parentCode := "<absent>"
	if parent != nil {
		parentCode = parent.Code
	}
	sum.Warnings = append(sum.Warnings,
		fmt.Sprintf("%s %s is not an immediate child of %s; dropped", field, child.Code, parentCode))
	delete(sum.Strategies, field)
	return nil
}

// CleanLabel strips leading code prefixes ("ROOT3 - ", "IAB2: "), trailing
// parenthesized codes and quotes. For "A > B" paths the last segment is kept.
func CleanLabel(s string) string {
	s = labelText(s)
	if m := leadingCodeRe.FindString(s); m != "" {
		s = strings.TrimSpace(leadingStripRe.ReplaceAllString(s, ""))
	}
	return s
}

// labelText is CleanLabel without the leading code strip.
func labelText(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if i := strings.LastIndex(s, ">"); i >= 0 {
		s = s[i+1:]
	}
	s = trailingCodeRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

var absentValues = map[string]bool{
	"n/a": true, "na": true, "none": true, "null": true, "nil": true,
	"unknown": true, "-": true, "not applicable": true,
}

// clean trims a raw value and maps placeholder text to absent.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if absentValues[strings.ToLower(s)] {
		return ""
	}
	return s
}
