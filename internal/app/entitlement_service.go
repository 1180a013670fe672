package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mcqlab/internal/domain"
)

// SubscriptionReader exposes the billing state the entitlement check needs.
type SubscriptionReader interface {
	LatestSubscription(ctx context.Context, userID string) (domain.Subscription, error)
}

// UsageStore tracks per-period submission counters.
type UsageStore interface {
	Latest(ctx context.Context, userID string) (domain.Usage, error)
	StartPeriod(ctx context.Context, usage *domain.Usage) error
	Increment(ctx context.Context, userID string, now time.Time) error
}

// EntitlementService decides whether a user may submit another resource and
// records consumption. Pro users spend subscription points within a billing
// period; free users get a fixed number of submissions per UTC calendar day,
// counted off the resources table itself.
type EntitlementService struct {
	subscriptions  SubscriptionReader
	usage          UsageStore
	resources      ResourceStore
	freeDailyLimit int
	proPoints      int
	now            func() time.Time
}

func NewEntitlementService(
	subscriptions SubscriptionReader,
	usage UsageStore,
	resources ResourceStore,
	freeDailyLimit, proPoints int,
) *EntitlementService {
	return &EntitlementService{
		subscriptions:  subscriptions,
		usage:          usage,
		resources:      resources,
		freeDailyLimit: freeDailyLimit,
		proPoints:      proPoints,
		now:            time.Now,
	}
}

// Check evaluates the plan and usage for a user. The result is enforced by
// the submission pipeline, not just reported.
func (s *EntitlementService) Check(ctx context.Context, userID string) (domain.Entitlement, error) {
	now := s.now().UTC()

	sub, err := s.subscriptions.LatestSubscription(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		return s.checkFree(ctx, userID, now)
	case err != nil:
		return domain.Entitlement{}, err
	}

	if !sub.Valid(now) {
		return s.checkFree(ctx, userID, now)
	}
	return s.checkPro(ctx, userID, sub, now)
}

func (s *EntitlementService) checkFree(ctx context.Context, userID string, now time.Time) (domain.Entitlement, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	count, err := s.resources.CountCreatedSince(ctx, userID, dayStart)
	if err != nil {
		return domain.Entitlement{}, err
	}

	remaining := s.freeDailyLimit - count
	if remaining <= 0 {
		return domain.Entitlement{
			CanSubmit: false,
			IsPro:     false,
			Remaining: 0,
			Message:   "daily free limit reached, try again tomorrow or upgrade",
		}, nil
	}
	return domain.Entitlement{
		CanSubmit: true,
		IsPro:     false,
		Remaining: remaining,
		Message:   fmt.Sprintf("%d free submission(s) left today", remaining),
	}, nil
}

func (s *EntitlementService) checkPro(ctx context.Context, userID string, sub domain.Subscription, now time.Time) (domain.Entitlement, error) {
	usage, err := s.usage.Latest(ctx, userID)
	if errors.Is(err, domain.ErrUsageNotFound) {
		// First submission of a fresh subscription: open a period running to
		// the next renewal.
		periodEnd := now.Add(30 * 24 * time.Hour)
		if sub.RenewsAt != nil && sub.RenewsAt.After(now) {
			periodEnd = *sub.RenewsAt
		}
		usage = domain.Usage{
			UserID:             userID,
			PeriodStart:        now,
			PeriodEnd:          periodEnd,
			SubscriptionPoints: s.proPoints,
		}
		if err := s.usage.StartPeriod(ctx, &usage); err != nil {
			return domain.Entitlement{}, err
		}
	} else if err != nil {
		return domain.Entitlement{}, err
	}

	if !now.Before(usage.PeriodEnd) {
		return domain.Entitlement{
			CanSubmit: false,
			IsPro:     true,
			Remaining: 0,
			Message:   "billing period has ended, waiting for renewal",
		}, nil
	}

	remaining := usage.SubscriptionPoints - usage.SubmissionCount
	if remaining <= 0 {
		return domain.Entitlement{
			CanSubmit: false,
			IsPro:     true,
			Remaining: 0,
			Message:   "submission points exhausted for this period",
		}, nil
	}
	return domain.Entitlement{
		CanSubmit: true,
		IsPro:     true,
		Remaining: remaining,
		Message:   fmt.Sprintf("%d submission point(s) left this period", remaining),
	}, nil
}

// Consume bumps the usage counter after a successful submission. Free-tier
// consumption needs no bump: the daily rule counts resource rows directly.
func (s *EntitlementService) Consume(ctx context.Context, userID string) error {
	now := s.now().UTC()

	sub, err := s.subscriptions.LatestSubscription(ctx, userID)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !sub.Valid(now) {
		return nil
	}

	if err := s.usage.Increment(ctx, userID, now); err != nil {
		if errors.Is(err, domain.ErrUsageNotFound) {
			log.Printf("entitlement: no usage period for pro user %s", userID)
			return nil
		}
		return err
	}
	return nil
}

// OpenPeriod resets the usage counter for a renewed billing period. Called by
// the billing service when a subscription is created or renewed.
func (s *EntitlementService) OpenPeriod(ctx context.Context, userID string, start, end time.Time) error {
	usage := domain.Usage{
		UserID:             userID,
		PeriodStart:        start,
		PeriodEnd:          end,
		SubscriptionPoints: s.proPoints,
	}
	return s.usage.StartPeriod(ctx, &usage)
}
