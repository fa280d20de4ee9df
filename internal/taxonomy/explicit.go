package taxonomy

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// buildExplicit trusts a code column already present in the source. Parents
// come from the code prefix up to the last dash, or from the parent column
// when codes carry no hierarchy.
func buildExplicit(src RowSource, cols columns) ([]Entry, BuildReport, error) {
	codeCol := cols.code
	if codeCol == "" {
		codeCol = cols.id
	}

	var (
		report   BuildReport
		entries  []Entry
		seen     = make(map[string]bool)
		idToCode = make(map[string]string)
		parentID = make(map[string]string)
	)
	for {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, report, fmt.Errorf("reading row %d: %w", report.Rows+1, err)
		}
		report.Rows++

		code := CanonicalCode(row[codeCol])
		tiers := cols.tierLabels(row)
		label := cols.rowLabel(row, tiers)
		if code == "" || label == "" {
			report.Skipped++
			continue
		}
		if seen[code] {
			report.Duplicates++
			continue
		}
		seen[code] = true

		path := tiers
		if len(path) == 0 || path[len(path)-1] != label {
			path = append(path, label)
		}
		e := Entry{Code: code, Label: label, Path: path}
		if cols.id != "" {
			id := cleanCell(row[cols.id])
			e.SourceID = id
			// An empty id names no row, and an empty parent marks a root.
			if id != "" {
				if _, dup := idToCode[id]; !dup {
					idToCode[id] = code
				}
			}
			if cols.parent != "" {
				if p := cleanCell(row[cols.parent]); p != "" {
					parentID[code] = p
				}
			}
		}
		entries = append(entries, e)
	}

	parentOf := make(map[string]string, len(entries))
	for i := range entries {
		e := &entries[i]
		if j := strings.LastIndex(e.Code, "-"); j > 0 && seen[e.Code[:j]] {
			e.ParentCode = e.Code[:j]
		} else if p, ok := parentID[e.Code]; ok {
			if pc, ok := idToCode[p]; ok && pc != e.Code {
				e.ParentCode = pc
			}
		}
		parentOf[e.Code] = e.ParentCode
	}
	for i := range entries {
		entries[i].Level = chainDepth(entries[i].Code, parentOf)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return compareCodes(entries[i].Code, entries[j].Code) < 0
	})
	return entries, report, nil
}

// chainDepth counts the entries from code up to its root, so a root is level
// 1. A parent cycle stops the walk at the first repeated code.
func chainDepth(code string, parentOf map[string]string) int {
	depth := 1
	visited := map[string]bool{code: true}
	for p := parentOf[code]; p != "" && !visited[p]; p = parentOf[p] {
		visited[p] = true
		depth++
	}
	return depth
}

// CanonicalCode trims a code and normalizes "." and "_" separators to "-",
// so "IAB1.2" and "IAB1_2" both become "IAB1-2".
func CanonicalCode(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(".", "-", "_", "-").Replace(s)
	return strings.Trim(s, "-")
}

// compareCodes orders codes segment by segment, comparing digit runs
// numerically so IAB2 sorts before IAB10.
func compareCodes(a, b string) int {
	as, bs := strings.Split(a, "-"), strings.Split(b, "-")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return len(as) - len(bs)
}

func compareSegment(a, b string) int {
	ap, an := splitAlphaNum(a)
	bp, bn := splitAlphaNum(b)
	if ap != bp {
		return strings.Compare(ap, bp)
	}
	if an != bn {
		if an < bn {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// splitAlphaNum splits "IAB12" into ("IAB", 12). A segment without a
// trailing number gets -1.
func splitAlphaNum(s string) (string, int) {
	i := len(s)
	for i > 0 && unicode.IsDigit(rune(s[i-1])) {
		i--
	}
	if i == len(s) {
		return s, -1
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil {
		return s, -1
	}
	return s[:i], n
}
