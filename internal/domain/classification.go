package domain

import "time"

// UnresolvedField records a field value that could not be mapped to a
// taxonomy code.
type UnresolvedField struct {
	Field string `json:"field"`
	Input string `json:"input"`
}

// ValidationSummary describes how AI output resolved against the taxonomy.
type ValidationSummary struct {
	Resolved   int               `json:"resolved"`
	Unresolved []UnresolvedField `json:"unresolved,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
	Strategies map[string]string `json:"strategies,omitempty"`
}

// ClassificationRecord is the current taxonomy labeling for one URL.
// There is one record per normalized URL; reclassification overwrites it.
type ClassificationRecord struct {
	URL           string `json:"url"`
	NormalizedURL string `json:"normalized_url"`
	OwnerID       string `json:"owner_id,omitempty"`

	IABCategory             string `json:"iab_category,omitempty"`
	IABCode                 string `json:"iab_code,omitempty"`
	IABSubcategory          string `json:"iab_subcategory,omitempty"`
	IABSubcode              string `json:"iab_subcode,omitempty"`
	IABSecondaryCategory    string `json:"iab_secondary_category,omitempty"`
	IABSecondaryCode        string `json:"iab_secondary_code,omitempty"`
	IABSecondarySubcategory string `json:"iab_secondary_subcategory,omitempty"`
	IABSecondarySubcode     string `json:"iab_secondary_subcode,omitempty"`

	Tone          string   `json:"tone,omitempty"`
	Intent        string   `json:"intent,omitempty"`
	Audience      string   `json:"audience,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	BuyingIntent  string   `json:"buying_intent,omitempty"`
	AdSuggestions string   `json:"ad_suggestions,omitempty"`

	TaxonomyVersion    string             `json:"taxonomy_version,omitempty"`
	ExtractionStrategy string             `json:"extraction_strategy,omitempty"`
	ParseStrategy      string             `json:"parse_strategy,omitempty"`
	Validation         *ValidationSummary `json:"validation,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"timestamp"`
}
