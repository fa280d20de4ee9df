package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Metric names as they appear in uploads and under the attribution_ prefix.
const (
	MetricConversions = "conversions"
	MetricRevenue     = "revenue"
	MetricImpressions = "impressions"
	MetricClicks      = "clicks"
	MetricCTR         = "ctr"
	MetricScrollDepth = "scroll_depth"
	MetricViewability = "viewability"
	MetricTimeOnPage  = "time_on_page"
	MetricFillRate    = "fill_rate"
)

// MetricNames lists every attribution metric in a stable order.
var MetricNames = []string{
	MetricConversions, MetricRevenue, MetricImpressions, MetricClicks, MetricCTR,
	MetricScrollDepth, MetricViewability, MetricTimeOnPage, MetricFillRate,
}

// Metrics is the performance metric set of an attribution record.
// A nil field means the metric was absent, which is not the same as zero.
type Metrics struct {
	Conversions *float64 `json:"conversions,omitempty"`
	Revenue     *float64 `json:"revenue,omitempty"`
	Impressions *float64 `json:"impressions,omitempty"`
	Clicks      *float64 `json:"clicks,omitempty"`
	CTR         *float64 `json:"ctr,omitempty"`
	ScrollDepth *float64 `json:"scroll_depth,omitempty"`
	Viewability *float64 `json:"viewability,omitempty"`
	TimeOnPage  *float64 `json:"time_on_page,omitempty"`
	FillRate    *float64 `json:"fill_rate,omitempty"`
}

// Field returns a pointer to the named metric slot, or nil for unknown names.
func (m *Metrics) Field(name string) **float64 {
	switch strings.ToLower(name) {
	case MetricConversions:
		return &m.Conversions
	case MetricRevenue:
		return &m.Revenue
	case MetricImpressions:
		return &m.Impressions
	case MetricClicks:
		return &m.Clicks
	case MetricCTR:
		return &m.CTR
	case MetricScrollDepth:
		return &m.ScrollDepth
	case MetricViewability:
		return &m.Viewability
	case MetricTimeOnPage:
		return &m.TimeOnPage
	case MetricFillRate:
		return &m.FillRate
	default:
		return nil
	}
}

// Get returns the named metric, or nil when absent or unknown.
func (m Metrics) Get(name string) *float64 {
	if slot := m.Field(name); slot != nil {
		return *slot
	}
	return nil
}

// Set stores v under the named metric. NaN and infinities are stored as
// absent. Returns false for unknown names.
func (m *Metrics) Set(name string, v *float64) bool {
	slot := m.Field(name)
	if slot == nil {
		return false
	}
	if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
		v = nil
	}
	*slot = v
	return true
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// AttributionRecord is one immutable ingested snapshot of performance
// metrics for one URL. Records are appended, never overwritten.
type AttributionRecord struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	NormalizedURL string    `json:"normalized_url"`
	OwnerID       string    `json:"owner_id"`
	UploadDate    string    `json:"upload_date"`
	IngestedAt    time.Time `json:"ingested_at"`
	Source        string    `json:"source,omitempty"`
	Metrics
}

var numberCleaner = strings.NewReplacer("%", "", "$", "", ",", "", " ", "", "\u00a0", "")

// ParseNumber reads metric text such as "5.2%", "$1,234.50" or "1,000".
// Empty, unparsable and non-finite values report false.
func ParseNumber(s string) (float64, bool) {
	s = numberCleaner.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
