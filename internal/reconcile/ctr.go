package reconcile

import (
	"math"

	"github.com/ignite/content-signals/internal/domain"
)

// DeriveCTR returns the click-through rate to record for m and whether it
// was derived. An uploaded rate is kept unless it is absent, or it is 0 while
// clicks are positive. A replacement is clicks / impressions * 100 and is
// only computed when impressions are positive; otherwise the uploaded value
// (possibly absent) stands.
func DeriveCTR(m domain.Metrics) (*float64, bool) {
	if usableCTR(m) {
		return m.CTR, false
	}
	if m.Clicks == nil || m.Impressions == nil || *m.Impressions <= 0 {
		return m.CTR, false
	}
	v := *m.Clicks / *m.Impressions * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return m.CTR, false
	}
	return &v, true
}

func usableCTR(m domain.Metrics) bool {
	if m.CTR == nil || math.IsNaN(*m.CTR) || math.IsInf(*m.CTR, 0) {
		return false
	}
	if *m.CTR == 0 && m.Clicks != nil && *m.Clicks > 0 {
		return false
	}
	return true
}
