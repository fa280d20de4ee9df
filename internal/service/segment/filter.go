package segment

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ignite/content-signals/internal/domain"
)

// Apply returns the signals selected by rules, in rule order. The input
// slice is not modified.
//
// Include and exclude codes match either the primary or the secondary code.
// A signal whose KPI value does not parse as a number fails that KPI filter.
// When sorting, unparsable values sort last in either direction.
func Apply(signals []domain.MergedSignal, rules domain.RuleSet) []domain.MergedSignal {
	start, end := dateBounds(rules.DateRange)
	include := codeSet(rules.IncludeCodes)
	exclude := codeSet(rules.ExcludeCodes)

	out := make([]domain.MergedSignal, 0, len(signals))
	for i := range signals {
		sig := &signals[i]
		if !inRange(sig.UploadDate, start, end) {
			continue
		}
		primary := strings.ToUpper(strings.TrimSpace(sig.ClassificationIABCode))
		secondary := strings.ToUpper(strings.TrimSpace(sig.ClassificationIABSecondaryCode))
		if len(include) > 0 && !include[primary] && !include[secondary] {
			continue
		}
		if exclude[primary] || exclude[secondary] {
			continue
		}
		if !passesKPIs(sig, rules.KPIFilters) {
			continue
		}
		out = append(out, *sig)
	}

	if field := strings.TrimSpace(rules.SortField); field != "" {
		sortSignals(out, field, !strings.EqualFold(rules.SortOrder, domain.SortAsc))
	}
	if rules.Limit > 0 && len(out) > rules.Limit {
		out = out[:rules.Limit]
	}
	return out
}

// codeSet keys the empty string out so absent codes never match.
func codeSet(codes []string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			set[c] = true
		}
	}
	return set
}

// dateBounds turns a range into inclusive instants. A date-only end covers
// its whole day. Unparsable bounds are ignored.
func dateBounds(r *domain.DateRange) (start, end *time.Time) {
	if r == nil {
		return nil, nil
	}
	if t, _, ok := domain.ParseUploadDate(r.Start); ok {
		start = &t
	}
	if t, dateOnly, ok := domain.ParseUploadDate(r.End); ok {
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		end = &t
	}
	return start, end
}

func inRange(uploadDate string, start, end *time.Time) bool {
	if start == nil && end == nil {
		return true
	}
	t, _, ok := domain.ParseUploadDate(uploadDate)
	if !ok {
		return false
	}
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && t.After(*end) {
		return false
	}
	return true
}

func passesKPIs(sig *domain.MergedSignal, filters map[string]domain.Threshold) bool {
	for name, th := range filters {
		if th.GTE == nil && th.LTE == nil {
			continue
		}
		v, ok := numericValue(sig, name)
		if !ok {
			return false
		}
		if th.GTE != nil && v < *th.GTE {
			return false
		}
		if th.LTE != nil && v > *th.LTE {
			return false
		}
	}
	return true
}

func sortSignals(signals []domain.MergedSignal, field string, desc bool) {
	missing := math.Inf(1)
	if desc {
		missing = math.Inf(-1)
	}
	keys := make([]float64, len(signals))
	for i := range signals {
		if v, ok := numericValue(&signals[i], field); ok {
			keys[i] = v
		} else {
			keys[i] = missing
		}
	}
	idx := make([]int, len(signals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if desc {
			return keys[idx[a]] > keys[idx[b]]
		}
		return keys[idx[a]] < keys[idx[b]]
	})
	sorted := make([]domain.MergedSignal, len(signals))
	for i, j := range idx {
		sorted[i] = signals[j]
	}
	copy(signals, sorted)
}

func numericValue(sig *domain.MergedSignal, field string) (float64, bool) {
	v, ok := sig.Value(field)
	if !ok {
		return 0, false
	}
	return Number(v)
}

// Number coerces v to a finite float. Strings may carry %, $ and thousands
// separators.
func Number(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case *float64:
		if x == nil {
			return 0, false
		}
		f = *x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case string:
		return domain.ParseNumber(x)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
