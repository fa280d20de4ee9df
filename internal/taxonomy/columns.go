package taxonomy

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

var (
	idAliases     = []string{"uniqueid", "id", "nodeid"}
	parentAliases = []string{"parent", "parentid", "parentuniqueid", "parentnodeid"}
	labelAliases  = []string{"name", "label", "title", "taxonomyname", "nodename", "englishname", "categoryname"}
	codeAliases   = []string{"code", "iabcode", "taxonomycode", "legacyv2code", "nodecode"}
	pathAliases   = []string{"fullpath", "path"}
)

// columns is the resolved role of each header cell.
type columns struct {
	id     string
	parent string
	label  string
	code   string
	path   string
	tiers  []string // ordered by tier number
}

// canonHeader reduces a header cell to lowercase letters and digits, so
// "Unique ID", "unique_id" and a BOM-prefixed "UniqueID" compare equal.
func canonHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func detectColumns(header []string) columns {
	byCanon := make(map[string]string, len(header))
	for _, h := range header {
		c := canonHeader(h)
		if _, seen := byCanon[c]; !seen && c != "" {
			byCanon[c] = h
		}
	}
	pick := func(aliases []string) string {
		for _, a := range aliases {
			if h, ok := byCanon[a]; ok {
				return h
			}
		}
		return ""
	}

	cols := columns{
		id:     pick(idAliases),
		parent: pick(parentAliases),
		label:  pick(labelAliases),
		code:   pick(codeAliases),
		path:   pick(pathAliases),
	}

	type tier struct {
		n int
		h string
	}
	var tiers []tier
	for c, h := range byCanon {
		if !strings.HasPrefix(c, "tier") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(c, "tier"))
		if err != nil || n <= 0 {
			continue
		}
		tiers = append(tiers, tier{n, h})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].n < tiers[j].n })
	for _, t := range tiers {
		cols.tiers = append(cols.tiers, t.h)
	}
	return cols
}

// recognized counts how many roles were found; header detection uses it to
// skip banner lines above the real header.
func (c columns) recognized() int {
	n := len(c.tiers)
	for _, h := range []string{c.id, c.parent, c.label, c.code, c.path} {
		if h != "" {
			n++
		}
	}
	return n
}

func (c columns) hasLabelSource() bool {
	return c.label != "" || c.path != "" || len(c.tiers) > 0
}

// missingRanked lists the roles the ranked variant needs but lacks.
func (c columns) missingRanked() []string {
	var missing []string
	if c.id == "" {
		missing = append(missing, "unique id")
	}
	if c.parent == "" {
		missing = append(missing, "parent")
	}
	if !c.hasLabelSource() {
		missing = append(missing, "label or tier")
	}
	return missing
}

// missingExplicit lists the roles the explicit-code variant needs but lacks.
// The id column stands in for a code column when no code column exists.
func (c columns) missingExplicit() []string {
	var missing []string
	if c.code == "" && c.id == "" {
		missing = append(missing, "code")
	}
	if !c.hasLabelSource() {
		missing = append(missing, "label or tier")
	}
	return missing
}

// tierLabels returns the non-empty tier labels of a row, or the segments of
// its path column split on ">".
func (c columns) tierLabels(row Row) []string {
	var out []string
	for _, h := range c.tiers {
		if v := cleanCell(row[h]); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 && c.path != "" {
		for _, seg := range strings.Split(row[c.path], ">") {
			if v := cleanCell(seg); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// rowLabel is the label column when present, else the deepest tier.
func (c columns) rowLabel(row Row, tiers []string) string {
	if c.label != "" {
		if v := cleanCell(row[c.label]); v != "" {
			return v
		}
	}
	if len(tiers) > 0 {
		return tiers[len(tiers)-1]
	}
	return ""
}

func cleanCell(s string) string {
	return strings.Join(strings.Fields(strings.TrimPrefix(s, "\ufeff")), " ")
}
