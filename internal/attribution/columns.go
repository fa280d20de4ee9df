package attribution

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/ignite/content-signals/internal/domain"
)

// Canonical non-metric columns.
const (
	columnURL  = "url"
	columnDate = "upload_date"
)

// columnAliases maps folded header names to canonical columns. Metric
// columns map to their domain metric name.
var columnAliases = map[string]string{
	// URL
	"url":          columnURL,
	"page_url":     columnURL,
	"pageurl":      columnURL,
	"page":         columnURL,
	"link":         columnURL,
	"landing_page": columnURL,
	"content_url":  columnURL,
	"article_url":  columnURL,

	// Upload date
	"date":        columnDate,
	"upload_date": columnDate,
	"uploaddate":  columnDate,
	"day":         columnDate,
	"report_date": columnDate,

	"conversions":       domain.MetricConversions,
	"conversion":        domain.MetricConversions,
	"conv":              domain.MetricConversions,
	"total_conversions": domain.MetricConversions,

	"revenue":  domain.MetricRevenue,
	"rev":      domain.MetricRevenue,
	"earnings": domain.MetricRevenue,
	"income":   domain.MetricRevenue,

	"impressions": domain.MetricImpressions,
	"impression":  domain.MetricImpressions,
	"impr":        domain.MetricImpressions,
	"imps":        domain.MetricImpressions,

	"clicks": domain.MetricClicks,
	"click":  domain.MetricClicks,

	"ctr":                domain.MetricCTR,
	"click_through_rate": domain.MetricCTR,
	"clickthrough_rate":  domain.MetricCTR,

	"scroll_depth":     domain.MetricScrollDepth,
	"scrolldepth":      domain.MetricScrollDepth,
	"avg_scroll_depth": domain.MetricScrollDepth,

	"viewability":      domain.MetricViewability,
	"viewability_rate": domain.MetricViewability,

	"time_on_page":     domain.MetricTimeOnPage,
	"timeonpage":       domain.MetricTimeOnPage,
	"avg_time_on_page": domain.MetricTimeOnPage,
	"dwell_time":       domain.MetricTimeOnPage,

	"fill_rate": domain.MetricFillRate,
	"fillrate":  domain.MetricFillRate,
}

var headerCleaner = strings.NewReplacer("(%)", "", "%", "", "(", "", ")", "", "-", " ", ".", " ", "/", " ")

// foldHeader turns "Avg. Time-on-Page (%)" into "avg_time_on_page".
func foldHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = headerCleaner.Replace(cases.Fold().String(h))
	h = strings.TrimPrefix(h, domain.AttributionPrefix)
	return strings.Join(strings.Fields(h), "_")
}

// columnMapping resolves header positions to canonical columns.
type columnMapping struct {
	url      int
	date     int
	metrics  map[int]string
	unmapped []string
}

func mapColumns(header []string) columnMapping {
	m := columnMapping{url: -1, date: -1, metrics: make(map[int]string)}
	seen := make(map[string]bool)
	for i, h := range header {
		canonical, ok := columnAliases[foldHeader(h)]
		if !ok || seen[canonical] {
			if strings.TrimSpace(h) != "" {
				m.unmapped = append(m.unmapped, strings.TrimSpace(h))
			}
			continue
		}
		seen[canonical] = true
		switch canonical {
		case columnURL:
			m.url = i
		case columnDate:
			m.date = i
		default:
			m.metrics[i] = canonical
		}
	}
	return m
}
