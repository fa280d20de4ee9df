package domain

import "time"

// Sort orders for RuleSet.SortOrder.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// DateRange bounds upload_date inclusively. Either end may be empty.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Threshold is a per-metric KPI condition.
type Threshold struct {
	GTE *float64 `json:"gte,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// RuleSet is the declarative filter of a segment.
type RuleSet struct {
	DateRange    *DateRange           `json:"date_range,omitempty"`
	IncludeCodes []string             `json:"include_codes,omitempty"`
	ExcludeCodes []string             `json:"exclude_codes,omitempty"`
	KPIFilters   map[string]Threshold `json:"kpi_filters,omitempty"`
	SortField    string               `json:"sort_field,omitempty"`
	SortOrder    string               `json:"sort_order,omitempty"`
	Limit        int                  `json:"limit,omitempty"`
}

// Segment is a named, owner-scoped rule set.
type Segment struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Rules     RuleSet   `json:"rules" db:"rules"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
