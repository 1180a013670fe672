package app_test

import (
	"context"
	"testing"
	"time"

	"mcqlab/internal/app"
	"mcqlab/internal/domain"
)

func TestEntitlementFreeUserWithNoResourceToday(t *testing.T) {
	resources := newFakeResourceStore()
	service := app.NewEntitlementService(
		&fakeSubscriptionReader{err: domain.ErrSubscriptionNotFound},
		&fakeUsageStore{},
		resources,
		1, 100,
	)

	ent, err := service.Check(context.Background(), "u1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !ent.CanSubmit || ent.IsPro {
		t.Fatalf("expected canSubmit=true isPro=false, got %+v", ent)
	}
}

func TestEntitlementFreeUserAtDailyLimit(t *testing.T) {
	resources := newFakeResourceStore()
	resources.Insert(context.Background(), &domain.Resource{
		ID: "r1", UserID: "u1", CreatedAt: time.Now().UTC(),
	})
	service := app.NewEntitlementService(
		&fakeSubscriptionReader{err: domain.ErrSubscriptionNotFound},
		&fakeUsageStore{},
		resources,
		1, 100,
	)

	ent, err := service.Check(context.Background(), "u1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ent.CanSubmit || ent.IsPro {
		t.Fatalf("expected canSubmit=false isPro=false, got %+v", ent)
	}
}

func TestEntitlementProPeriodEnded(t *testing.T) {
	now := time.Now().UTC()
	renews := now.Add(24 * time.Hour)
	usage := &fakeUsageStore{usage: &domain.Usage{
		UserID:             "u1",
		PeriodStart:        now.Add(-31 * 24 * time.Hour),
		PeriodEnd:          now.Add(-24 * time.Hour),
		SubmissionCount:    3,
		SubscriptionPoints: 100,
	}}
	service := app.NewEntitlementService(
		&fakeSubscriptionReader{sub: domain.Subscription{
			UserID: "u1", Status: domain.SubscriptionActive, RenewsAt: &renews,
		}},
		usage,
		newFakeResourceStore(),
		1, 100,
	)

	ent, err := service.Check(context.Background(), "u1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ent.CanSubmit || !ent.IsPro {
		t.Fatalf("expected canSubmit=false isPro=true, got %+v", ent)
	}
	if ent.Message != "billing period has ended, waiting for renewal" {
		t.Fatalf("unexpected message %q", ent.Message)
	}
}

func TestEntitlementProPointsExhausted(t *testing.T) {
	now := time.Now().UTC()
	usage := &fakeUsageStore{usage: &domain.Usage{
		UserID:             "u1",
		PeriodStart:        now.Add(-24 * time.Hour),
		PeriodEnd:          now.Add(24 * time.Hour),
		SubmissionCount:    100,
		SubscriptionPoints: 100,
	}}
	service := app.NewEntitlementService(
		&fakeSubscriptionReader{sub: domain.Subscription{UserID: "u1", Status: domain.SubscriptionActive}},
		usage,
		newFakeResourceStore(),
		1, 100,
	)

	ent, err := service.Check(context.Background(), "u1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ent.CanSubmit || !ent.IsPro || ent.Remaining != 0 {
		t.Fatalf("expected exhausted pro, got %+v", ent)
	}
}

func TestEntitlementProFirstCheckOpensPeriod(t *testing.T) {
	renews := time.Now().UTC().Add(20 * 24 * time.Hour)
	usage := &fakeUsageStore{}
	service := app.NewEntitlementService(
		&fakeSubscriptionReader{sub: domain.Subscription{
			UserID: "u1", Status: domain.SubscriptionActive, RenewsAt: &renews,
		}},
		usage,
		newFakeResourceStore(),
		1, 100,
	)

	ent, err := service.Check(context.Background(), "u1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !ent.CanSubmit || !ent.IsPro || ent.Remaining != 100 {
		t.Fatalf("expected fresh pro period, got %+v", ent)
	}
	if usage.usage == nil || !usage.usage.PeriodEnd.Equal(renews) {
		t.Fatalf("expected period opened until renewal, got %+v", usage.usage)
	}
}

func TestEntitlementExpiredSubscriptionFallsBackToFree(t *testing.T) {
	ended := time.Now().UTC().Add(-time.Hour)
	service := app.NewEntitlementService(
		&fakeSubscriptionReader{sub: domain.Subscription{
			UserID: "u1", Status: domain.SubscriptionActive, EndsAt: &ended,
		}},
		&fakeUsageStore{},
		newFakeResourceStore(),
		1, 100,
	)

	ent, err := service.Check(context.Background(), "u1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !ent.CanSubmit || ent.IsPro {
		t.Fatalf("expected free-tier fallback, got %+v", ent)
	}
}

func TestConsumeIncrementsProUsage(t *testing.T) {
	now := time.Now().UTC()
	usage := &fakeUsageStore{usage: &domain.Usage{
		UserID:             "u1",
		PeriodStart:        now.Add(-time.Hour),
		PeriodEnd:          now.Add(time.Hour),
		SubscriptionPoints: 100,
	}}
	service := app.NewEntitlementService(
		&fakeSubscriptionReader{sub: domain.Subscription{UserID: "u1", Status: domain.SubscriptionActive}},
		usage,
		newFakeResourceStore(),
		1, 100,
	)

	if err := service.Consume(context.Background(), "u1"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if usage.increment != 1 {
		t.Fatalf("expected one increment, got %d", usage.increment)
	}
}

func TestConsumeNoopForFreeUser(t *testing.T) {
	usage := &fakeUsageStore{}
	service := app.NewEntitlementService(
		&fakeSubscriptionReader{err: domain.ErrSubscriptionNotFound},
		usage,
		newFakeResourceStore(),
		1, 100,
	)

	if err := service.Consume(context.Background(), "u1"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if usage.increment != 0 {
		t.Fatalf("free consume must not touch usage, got %d increments", usage.increment)
	}
}
