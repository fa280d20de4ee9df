package segment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/content-signals/internal/domain"
)

// Service implements segment management and evaluation. It is safe for
// concurrent use.
type Service struct {
	repo    Repository
	signals SignalReader
	now     func() time.Time
}

// NewService creates a segment service.
func NewService(repo Repository, signals SignalReader) *Service {
	return &Service{repo: repo, signals: signals, now: time.Now}
}

// Create validates and stores a new segment.
func (s *Service) Create(ctx context.Context, ownerID, name string, rules domain.RuleSet) (*domain.Segment, error) {
	ownerID, name = strings.TrimSpace(ownerID), strings.TrimSpace(name)
	if err := validate(ownerID, name, rules); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	seg := &domain.Segment{
		ID:        uuid.New().String(),
		Name:      name,
		OwnerID:   ownerID,
		Rules:     normalizeRules(rules),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, seg); err != nil {
		return nil, fmt.Errorf("create segment: %w", err)
	}
	return seg, nil
}

// Get returns one of the owner's segments.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*domain.Segment, error) {
	return s.repo.Get(ctx, ownerID, id)
}

// List returns the owner's segments.
func (s *Service) List(ctx context.Context, ownerID string) ([]domain.Segment, error) {
	return s.repo.List(ctx, ownerID)
}

// Update replaces a segment's name and rules.
func (s *Service) Update(ctx context.Context, ownerID, id, name string, rules domain.RuleSet) (*domain.Segment, error) {
	name = strings.TrimSpace(name)
	if err := validate(ownerID, name, rules); err != nil {
		return nil, err
	}
	seg, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	seg.Name = name
	seg.Rules = normalizeRules(rules)
	seg.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, seg); err != nil {
		return nil, err
	}
	return seg, nil
}

// Delete removes one of the owner's segments.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	return s.repo.Delete(ctx, ownerID, id)
}

// Preview evaluates a stored segment.
func (s *Service) Preview(ctx context.Context, ownerID, id string) ([]domain.MergedSignal, error) {
	seg, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(ctx, ownerID, seg.Rules)
}

// Evaluate applies ad-hoc rules to the owner's merged signals.
func (s *Service) Evaluate(ctx context.Context, ownerID string, rules domain.RuleSet) ([]domain.MergedSignal, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrInvalid)
	}
	if err := validateRules(rules); err != nil {
		return nil, err
	}
	signals, err := s.signals.List(ctx, ownerID, rules.DateRange)
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}
	return Apply(signals, rules), nil
}

func validate(ownerID, name string, rules domain.RuleSet) error {
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("%w: owner id is required", ErrInvalid)
	}
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	return validateRules(rules)
}

func validateRules(rules domain.RuleSet) error {
	if r := rules.DateRange; r != nil {
		for _, v := range []string{r.Start, r.End} {
			if v == "" {
				continue
			}
			if _, _, ok := domain.ParseUploadDate(v); !ok {
				return fmt.Errorf("%w: unparsable date %q", ErrInvalid, v)
			}
		}
	}
	for name, th := range rules.KPIFilters {
		if !isMetric(name) {
			return fmt.Errorf("%w: unknown kpi %q", ErrInvalid, name)
		}
		if th.GTE != nil && th.LTE != nil && *th.GTE > *th.LTE {
			return fmt.Errorf("%w: kpi %q has gte above lte", ErrInvalid, name)
		}
	}
	switch strings.ToLower(rules.SortOrder) {
	case "", domain.SortAsc, domain.SortDesc:
	default:
		return fmt.Errorf("%w: sort order must be asc or desc", ErrInvalid)
	}
	if rules.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalid)
	}
	return nil
}

func isMetric(name string) bool {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), domain.AttributionPrefix)
	return (&domain.Metrics{}).Field(name) != nil
}

func normalizeRules(rules domain.RuleSet) domain.RuleSet {
	rules.SortOrder = strings.ToLower(rules.SortOrder)
	rules.IncludeCodes = trimCodes(rules.IncludeCodes)
	rules.ExcludeCodes = trimCodes(rules.ExcludeCodes)
	return rules
}

func trimCodes(codes []string) []string {
	var out []string
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
