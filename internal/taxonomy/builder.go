package taxonomy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ignite/content-signals/internal/pkg/logger"
)

// Options controls a build.
type Options struct {
	Source     string // location, used as the index identity
	Variant    string // VariantRanked (default) or VariantExplicit
	MinEntries int    // builds below this count fail with SizeError
	Version    string // taxonomy release, e.g. "3.1"
}

// Build parses tab-separated source bytes. The version tag combines
// opts.Version with a short hash of data, so a changed source is visible on
// every classification made against it.
func Build(data []byte, opts Options) (*Index, error) {
	src, err := NewTSVSource(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	opts.Version = versionTag(opts.Version, hex.EncodeToString(sum[:])[:8])
	return BuildFromSource(src, opts)
}

func versionTag(release, hash string) string {
	if release == "" {
		return hash
	}
	return release + "@" + hash
}

// BuildFromSource builds an index from any RowSource.
func BuildFromSource(src RowSource, opts Options) (*Index, error) {
	cols := detectColumns(src.Header())

	var (
		entries []Entry
		report  BuildReport
		err     error
	)
	switch opts.Variant {
	case "", VariantRanked:
		opts.Variant = VariantRanked
		if missing := cols.missingRanked(); len(missing) > 0 {
			return nil, formatError(opts.Source, missing, src.Header())
		}
		entries, report, err = buildRanked(src, cols)
	case VariantExplicit:
		if missing := cols.missingExplicit(); len(missing) > 0 {
			return nil, formatError(opts.Source, missing, src.Header())
		}
		entries, report, err = buildExplicit(src, cols)
	default:
		return nil, fmt.Errorf("unknown taxonomy variant %q", opts.Variant)
	}
	if err != nil {
		return nil, fmt.Errorf("building taxonomy %s: %w", opts.Source, err)
	}

	if len(entries) < opts.MinEntries {
		return nil, &SizeError{Source: opts.Source, Count: len(entries), Min: opts.MinEntries}
	}

	if report.Skipped+report.Duplicates+report.Orphans > 0 {
		logger.Warn("taxonomy: rows dropped during build",
			"source", opts.Source,
			"rows", report.Rows,
			"skipped", report.Skipped,
			"duplicates", report.Duplicates,
			"orphans", report.Orphans,
		)
	}
	return newIndex(opts.Source, opts.Version, opts.Variant, entries, report), nil
}

type node struct {
	id       string
	parentID string
	label    string
	children []*node
}

func buildRanked(src RowSource, cols columns) ([]Entry, BuildReport, error) {
	var (
		report BuildReport
		nodes  []*node
		byID   = make(map[string]*node)
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

		id := cleanCell(row[cols.id])
		label := cols.rowLabel(row, cols.tierLabels(row))
		if id == "" || label == "" {
			report.Skipped++
			continue
		}
		if _, dup := byID[id]; dup {
			report.Duplicates++
			continue
		}
		n := &node{id: id, parentID: cleanCell(row[cols.parent]), label: label}
		byID[id] = n
		nodes = append(nodes, n)
	}

	var roots []*node
	for _, n := range nodes {
		if n.parentID == "" {
			roots = append(roots, n)
			continue
		}
		parent, ok := byID[n.parentID]
		if !ok || parent == n {
			continue
		}
		parent.children = append(parent.children, n)
	}

	entries := make([]Entry, 0, len(nodes))
	visited := make(map[*node]bool, len(nodes))
	var walk func(siblings []*node, parent *Entry)
	walk = func(siblings []*node, parent *Entry) {
		sortSiblings(siblings)
		for rank, n := range siblings {
			if visited[n] {
				continue
			}
			visited[n] = true

			e := Entry{Label: n.label, SourceID: n.id}
			if parent == nil {
				e.Code = "ROOT" + strconv.Itoa(rank+1)
				e.Path = []string{n.label}
				e.Level = 1
			} else {
				e.Code = parent.Code + "-" + strconv.Itoa(rank+1)
				e.ParentCode = parent.Code
				e.Path = append(append(make([]string, 0, len(parent.Path)+1), parent.Path...), n.label)
				e.Level = parent.Level + 1
			}
			entries = append(entries, e)
			walk(n.children, &e)
		}
	}
	walk(roots, nil)

	// Missing parents, their descendants and parent cycles are never reached
	// from a root.
	report.Orphans = len(nodes) - len(visited)
	return entries, report, nil
}

// sortSiblings orders by case-insensitive label, then raw label, then id,
// so equal labels still order deterministically.
func sortSiblings(ns []*node) {
	sort.SliceStable(ns, func(i, j int) bool {
		li, lj := strings.ToLower(ns[i].label), strings.ToLower(ns[j].label)
		if li != lj {
			return li < lj
		}
		if ns[i].label != ns[j].label {
			return ns[i].label < ns[j].label
		}
		return ns[i].id < ns[j].id
	})
}

// formatError logs the offending header and returns an error that does not
// carry its cells in the message.
func formatError(source string, missing, header []string) *FormatError {
	logger.Warn("taxonomy: header missing required columns",
		"source", source,
		"missing", missing,
		"header", header,
	)
	return &FormatError{Source: source, Missing: missing, Header: header}
}
