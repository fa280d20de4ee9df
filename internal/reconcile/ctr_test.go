package reconcile

import (
	"testing"

	"github.com/ignite/content-signals/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestDeriveCTR(t *testing.T) {
	f := domain.Float
	tests := []struct {
		name        string
		m           domain.Metrics
		want        *float64
		wantDerived bool
	}{
		{"derived from clicks and impressions", domain.Metrics{Clicks: f(50), Impressions: f(1000)}, f(5), true},
		{"zero impressions leaves rate absent", domain.Metrics{Clicks: f(50), Impressions: f(0)}, nil, false},
		{"missing impressions leaves rate absent", domain.Metrics{Clicks: f(50)}, nil, false},
		{"missing clicks leaves rate absent", domain.Metrics{Impressions: f(1000)}, nil, false},
		{"uploaded rate kept", domain.Metrics{CTR: f(2.5), Clicks: f(50), Impressions: f(1000)}, f(2.5), false},
		{"uploaded zero with no clicks kept", domain.Metrics{CTR: f(0), Clicks: f(0), Impressions: f(1000)}, f(0), false},
		{"uploaded zero with clicks re-derived", domain.Metrics{CTR: f(0), Clicks: f(10), Impressions: f(200)}, f(5), true},
		{"uploaded zero with clicks and no impressions kept", domain.Metrics{CTR: f(0), Clicks: f(10)}, f(0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, derived := DeriveCTR(tt.m)
			assert.Equal(t, tt.wantDerived, derived)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.InDelta(t, *tt.want, *got, 1e-9)
			}
		})
	}
}
