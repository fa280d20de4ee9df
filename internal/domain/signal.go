package domain

import (
	"strings"
	"time"
)

// Field name prefixes of merged signals.
const (
	AttributionPrefix    = "attribution_"
	ClassificationPrefix = "classification_"
)

// MergedSignal reconciles one attribution record with the classification of
// its URL, when one exists. There is one signal per attribution record.
type MergedSignal struct {
	ID                  string    `json:"id"`
	RunID               string    `json:"run_id,omitempty"`
	AttributionRecordID string    `json:"attribution_record_id"`
	OwnerID             string    `json:"owner_id"`
	URL                 string    `json:"url"`
	NormalizedURL       string    `json:"normalized_url"`
	UploadDate          string    `json:"upload_date"`
	MergedAt            time.Time `json:"merged_at"`
	HasAttribution      bool      `json:"has_attribution"`
	HasClassification   bool      `json:"has_classification"`

	AttributionConversions *float64  `json:"attribution_conversions,omitempty"`
	AttributionRevenue     *float64  `json:"attribution_revenue,omitempty"`
	AttributionImpressions *float64  `json:"attribution_impressions,omitempty"`
	AttributionClicks      *float64  `json:"attribution_clicks,omitempty"`
	AttributionCTR         *float64  `json:"attribution_ctr,omitempty"`
	AttributionScrollDepth *float64  `json:"attribution_scroll_depth,omitempty"`
	AttributionViewability *float64  `json:"attribution_viewability,omitempty"`
	AttributionTimeOnPage  *float64  `json:"attribution_time_on_page,omitempty"`
	AttributionFillRate    *float64  `json:"attribution_fill_rate,omitempty"`
	AttributionCTRDerived  bool      `json:"attribution_ctr_derived,omitempty"`
	AttributionIngestedAt  time.Time `json:"attribution_ingested_at"`
	AttributionSource      string    `json:"attribution_source,omitempty"`

	ClassificationIABCategory             string     `json:"classification_iab_category,omitempty"`
	ClassificationIABCode                 string     `json:"classification_iab_code,omitempty"`
	ClassificationIABSubcategory          string     `json:"classification_iab_subcategory,omitempty"`
	ClassificationIABSubcode              string     `json:"classification_iab_subcode,omitempty"`
	ClassificationIABSecondaryCategory    string     `json:"classification_iab_secondary_category,omitempty"`
	ClassificationIABSecondaryCode        string     `json:"classification_iab_secondary_code,omitempty"`
	ClassificationIABSecondarySubcategory string     `json:"classification_iab_secondary_subcategory,omitempty"`
	ClassificationIABSecondarySubcode     string     `json:"classification_iab_secondary_subcode,omitempty"`
	ClassificationTone                    string     `json:"classification_tone,omitempty"`
	ClassificationIntent                  string     `json:"classification_intent,omitempty"`
	ClassificationAudience                string     `json:"classification_audience,omitempty"`
	ClassificationKeywords                []string   `json:"classification_keywords,omitempty"`
	ClassificationBuyingIntent            string     `json:"classification_buying_intent,omitempty"`
	ClassificationAdSuggestions           string     `json:"classification_ad_suggestions,omitempty"`
	ClassificationTaxonomyVersion         string     `json:"classification_taxonomy_version,omitempty"`
	ClassificationTimestamp               *time.Time `json:"classification_timestamp,omitempty"`
}

// SetAttributionMetrics copies m under the attribution_ fields.
func (s *MergedSignal) SetAttributionMetrics(m Metrics) {
	s.AttributionConversions = m.Conversions
	s.AttributionRevenue = m.Revenue
	s.AttributionImpressions = m.Impressions
	s.AttributionClicks = m.Clicks
	s.AttributionCTR = m.CTR
	s.AttributionScrollDepth = m.ScrollDepth
	s.AttributionViewability = m.Viewability
	s.AttributionTimeOnPage = m.TimeOnPage
	s.AttributionFillRate = m.FillRate
}

// AttributionMetrics returns the attribution_ fields as a Metrics value.
func (s *MergedSignal) AttributionMetrics() Metrics {
	return Metrics{
		Conversions: s.AttributionConversions,
		Revenue:     s.AttributionRevenue,
		Impressions: s.AttributionImpressions,
		Clicks:      s.AttributionClicks,
		CTR:         s.AttributionCTR,
		ScrollDepth: s.AttributionScrollDepth,
		Viewability: s.AttributionViewability,
		TimeOnPage:  s.AttributionTimeOnPage,
		FillRate:    s.AttributionFillRate,
	}
}

// SetClassification copies c under the classification_ fields and marks the
// signal as classified.
func (s *MergedSignal) SetClassification(c *ClassificationRecord) {
	if c == nil {
		return
	}
	s.HasClassification = true
	s.ClassificationIABCategory = c.IABCategory
	s.ClassificationIABCode = c.IABCode
	s.ClassificationIABSubcategory = c.IABSubcategory
	s.ClassificationIABSubcode = c.IABSubcode
	s.ClassificationIABSecondaryCategory = c.IABSecondaryCategory
	s.ClassificationIABSecondaryCode = c.IABSecondaryCode
	s.ClassificationIABSecondarySubcategory = c.IABSecondarySubcategory
	s.ClassificationIABSecondarySubcode = c.IABSecondarySubcode
	s.ClassificationTone = c.Tone
	s.ClassificationIntent = c.Intent
	s.ClassificationAudience = c.Audience
	if len(c.Keywords) > 0 {
		s.ClassificationKeywords = append([]string(nil), c.Keywords...)
	}
	s.ClassificationBuyingIntent = c.BuyingIntent
	s.ClassificationAdSuggestions = c.AdSuggestions
	s.ClassificationTaxonomyVersion = c.TaxonomyVersion
	if !c.UpdatedAt.IsZero() {
		ts := c.UpdatedAt
		s.ClassificationTimestamp = &ts
	}
}

// Value returns the named field. Metric names may be given bare ("ctr") or
// prefixed ("attribution_ctr"); classification fields may omit their prefix.
// The bool is false for unknown names and absent values.
func (s *MergedSignal) Value(name string) (any, bool) {
	name = strings.ToLower(strings.TrimSpace(name))

	metric := strings.TrimPrefix(name, AttributionPrefix)
	if (&Metrics{}).Field(metric) != nil {
		if v := s.AttributionMetrics().Get(metric); v != nil {
			return *v, true
		}
		return nil, false
	}

	var str string
	switch strings.TrimPrefix(name, ClassificationPrefix) {
	case "iab_category":
		str = s.ClassificationIABCategory
	case "iab_code":
		str = s.ClassificationIABCode
	case "iab_subcategory":
		str = s.ClassificationIABSubcategory
	case "iab_subcode":
		str = s.ClassificationIABSubcode
	case "iab_secondary_category":
		str = s.ClassificationIABSecondaryCategory
	case "iab_secondary_code":
		str = s.ClassificationIABSecondaryCode
	case "iab_secondary_subcategory":
		str = s.ClassificationIABSecondarySubcategory
	case "iab_secondary_subcode":
		str = s.ClassificationIABSecondarySubcode
	case "tone":
		str = s.ClassificationTone
	case "intent":
		str = s.ClassificationIntent
	case "audience":
		str = s.ClassificationAudience
	case "buying_intent":
		str = s.ClassificationBuyingIntent
	case "upload_date":
		str = s.UploadDate
	case "url":
		str = s.URL
	case "normalized_url":
		str = s.NormalizedURL
	case "owner_id":
		str = s.OwnerID
	default:
		return nil, false
	}
	if str == "" {
		return nil, false
	}
	return str, true
}
