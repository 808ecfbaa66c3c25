package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erpeaz/siteboard/app/models"
	"github.com/erpeaz/siteboard/app/repository"
	"github.com/erpeaz/siteboard/internal/pkg/planmath"
	"gorm.io/gorm"
)

var (
	// ErrNotFound means no subscription record exists for the site.
	ErrNotFound = errors.New("subscription not found")
	// ErrConflict means a subscription was already initialized for the site.
	ErrConflict = errors.New("subscription already initialized")
	// ErrValidation means the request payload was rejected before any store
	// mutation.
	ErrValidation = errors.New("invalid subscription payload")
)

// Service owns the subscription lifecycle: one-time initialization and term
// renewal.
type Service struct {
	repo repository.SubscriptionRepository
	now  func() time.Time
}

// NewService creates a subscription service from an injected repository.
func NewService(repo repository.SubscriptionRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewServiceFromDB creates a subscription service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(repository.NewSubscriptionRepository(db))
}

// WithClock overrides the service clock. Tests use this to pin "now".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns the subscription for a site or ErrNotFound.
func (s *Service) Get(ctx context.Context, siteID string) (*models.SiteSubscription, error) {
	_ = ctx
	siteID = strings.TrimSpace(siteID)
	if siteID == "" {
		return nil, fmt.Errorf("%w: site id is required", ErrValidation)
	}

	sub, err := s.repo.GetBySiteID(siteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sub, nil
}

// Init creates the subscription record for a site. It fails with ErrConflict
// when one already exists; the original record is left untouched in that
// case. Trial end and expiry are derived from startAt.
func (s *Service) Init(ctx context.Context, siteID, planKey string, startAt time.Time) (*models.SiteSubscription, error) {
	_ = ctx
	siteID = strings.TrimSpace(siteID)
	if siteID == "" {
		return nil, fmt.Errorf("%w: site id is required", ErrValidation)
	}
	if !planmath.IsKnownPlan(planKey) {
		return nil, fmt.Errorf("%w: unknown plan key %q", ErrValidation, planKey)
	}
	if startAt.IsZero() {
		return nil, fmt.Errorf("%w: start_at is required", ErrValidation)
	}

	exists, err := s.repo.ExistsBySiteID(siteID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrConflict
	}

	plan := planmath.NormalizePlan(planKey)
	trialEnd := planmath.ComputeTrialEnd(startAt, planmath.TrialDays)
	expiry := planmath.ComputeExpiry(trialEnd, plan)

	sub := &models.SiteSubscription{
		SiteID:         siteID,
		PlanKey:        plan,
		StartAt:        startAt,
		TrialEndAt:     trialEnd,
		ExpiryAt:       expiry,
		RenewalHistory: models.RenewalHistory{},
	}
	if err := s.repo.Create(sub); err != nil {
		// A concurrent init for the same site loses the unique-index race.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return sub, nil
}

// Renew extends the current term. The new expiry is counted from the later of
// now and the current expiry, so a renewal can neither shorten a term that is
// still running nor backdate one that has lapsed. months <= 0 defaults to the
// plan's billing cycle.
func (s *Service) Renew(ctx context.Context, siteID string, months int, actor string) (*models.SiteSubscription, error) {
	sub, err := s.Get(ctx, siteID)
	if err != nil {
		return nil, err
	}

	if months <= 0 {
		months = planmath.PlanMonths(sub.PlanKey)
	}
	if actor == "" {
		actor = "system"
	}

	now := s.now()
	base := sub.ExpiryAt
	if now.After(base) {
		base = now
	}
	newExpiry := base.AddDate(0, months, 0)

	event := models.RenewalEvent{
		Type:        models.RenewalEventRenew,
		Months:      months,
		OldExpiryAt: sub.ExpiryAt,
		NewExpiryAt: newExpiry,
		Actor:       actor,
		OccurredAt:  now,
	}

	sub.ExpiryAt = newExpiry
	sub.RenewedAt = &now
	sub.RenewalHistory = append(sub.RenewalHistory, event)

	if err := s.repo.Update(sub); err != nil {
		return nil, err
	}
	return sub, nil
}
