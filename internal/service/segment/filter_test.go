package segment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/content-signals/internal/domain"
)

func sig(id, primary, secondary, date string, ctr *float64) domain.MergedSignal {
	return domain.MergedSignal{
		ID: id, UploadDate: date, HasAttribution: true,
		ClassificationIABCode: primary, ClassificationIABSecondaryCode: secondary,
		AttributionCTR: ctr,
	}
}

func ids(signals []domain.MergedSignal) []string {
	out := make([]string, len(signals))
	for i, s := range signals {
		out[i] = s.ID
	}
	return out
}

func TestApplyIncludeMatchesSecondary(t *testing.T) {
	signals := []domain.MergedSignal{sig("s1", "A", "B", "", nil)}
	got := Apply(signals, domain.RuleSet{IncludeCodes: []string{"B"}})
	assert.Equal(t, []string{"s1"}, ids(got))
}

func TestApplyIncludeExclude(t *testing.T) {
	signals := []domain.MergedSignal{
		sig("s1", "ROOT1", "", "", nil),
		sig("s2", "ROOT2", "ROOT1", "", nil),
		sig("s3", "ROOT3", "ROOT4", "", nil),
		sig("s4", "", "", "", nil),
	}
	assert.Equal(t, []string{"s1", "s2"}, ids(Apply(signals, domain.RuleSet{IncludeCodes: []string{"root1"}})))
	assert.Equal(t, []string{"s3", "s4"}, ids(Apply(signals, domain.RuleSet{ExcludeCodes: []string{"ROOT1"}})))
	assert.Equal(t, []string{"s1"}, ids(Apply(signals, domain.RuleSet{
		IncludeCodes: []string{"ROOT1"}, ExcludeCodes: []string{"ROOT2"},
	})))
	// Blank codes in rules are ignored rather than matching unclassified signals.
	assert.Len(t, Apply(signals, domain.RuleSet{IncludeCodes: []string{" "}}), 4)
	assert.Len(t, Apply(signals, domain.RuleSet{ExcludeCodes: []string{""}}), 4)
}

func TestApplyKPIThresholds(t *testing.T) {
	f := domain.Float
	signals := []domain.MergedSignal{
		sig("low", "", "", "", f(1)),
		sig("mid", "", "", "", f(3)),
		sig("high", "", "", "", f(6)),
		sig("missing", "", "", "", nil),
	}
	got := Apply(signals, domain.RuleSet{KPIFilters: map[string]domain.Threshold{
		"ctr": {GTE: f(2), LTE: f(5)},
	}})
	assert.Equal(t, []string{"mid"}, ids(got))

	got = Apply(signals, domain.RuleSet{KPIFilters: map[string]domain.Threshold{
		"attribution_ctr": {GTE: f(0)},
	}})
	assert.Equal(t, []string{"low", "mid", "high"}, ids(got), "absent values fail the filter")

	// An empty threshold is no condition.
	assert.Len(t, Apply(signals, domain.RuleSet{KPIFilters: map[string]domain.Threshold{"ctr": {}}}), 4)
}

func TestApplySortUnparsableLoses(t *testing.T) {
	f := domain.Float
	signals := []domain.MergedSignal{
		sig("missing", "", "", "", nil),
		sig("two", "", "", "", f(2)),
		sig("one", "", "", "", f(1)),
		sig("three", "", "", "", f(3)),
	}
	desc := Apply(signals, domain.RuleSet{SortField: "ctr", SortOrder: "desc"})
	assert.Equal(t, []string{"three", "two", "one", "missing"}, ids(desc))

	asc := Apply(signals, domain.RuleSet{SortField: "attribution_ctr", SortOrder: "ASC"})
	assert.Equal(t, []string{"one", "two", "three", "missing"}, ids(asc))

	// Default order is descending.
	assert.Equal(t, ids(desc), ids(Apply(signals, domain.RuleSet{SortField: "ctr"})))

	// Input order is untouched.
	assert.Equal(t, "missing", signals[0].ID)
}

func TestApplySortIsStable(t *testing.T) {
	signals := []domain.MergedSignal{
		sig("a", "", "", "", nil),
		sig("b", "", "", "", nil),
		sig("c", "", "", "", domain.Float(1)),
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids(Apply(signals, domain.RuleSet{SortField: "ctr"})))
}

func TestApplyDateRange(t *testing.T) {
	signals := []domain.MergedSignal{
		sig("before", "", "", "2023-12-31T23:59:59Z", nil),
		sig("start", "", "", "2024-01-01", nil),
		sig("late-on-end-day", "", "", "2024-01-31T22:00:00Z", nil),
		sig("after", "", "", "2024-02-01T00:00:00Z", nil),
		sig("bad", "", "", "yesterday", nil),
	}
	got := Apply(signals, domain.RuleSet{DateRange: &domain.DateRange{Start: "2024-01-01", End: "2024-01-31"}})
	assert.Equal(t, []string{"start", "late-on-end-day"}, ids(got))

	got = Apply(signals, domain.RuleSet{DateRange: &domain.DateRange{Start: "2024-01-15"}})
	assert.Equal(t, []string{"late-on-end-day", "after"}, ids(got))
}

func TestApplyLimit(t *testing.T) {
	f := domain.Float
	signals := []domain.MergedSignal{sig("a", "", "", "", f(1)), sig("b", "", "", "", f(3)), sig("c", "", "", "", f(2))}
	got := Apply(signals, domain.RuleSet{SortField: "ctr", Limit: 2})
	assert.Equal(t, []string{"b", "c"}, ids(got))
}

func TestNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{4.5, 4.5, true},
		{"5.2%", 5.2, true},
		{"$1,234.50", 1234.5, true},
		{" 7 ", 7, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"NaN", 0, false},
		{math.Inf(1), 0, false},
		{true, 0, false},
		{(*float64)(nil), 0, false},
		{domain.Float(2), 2, true},
	}
	for _, tt := range tests {
		got, ok := Number(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, "%v", tt.in)
		}
	}
}
