package http

import (
	"context"
	"time"

	"mcqlab/internal/app"
	"mcqlab/internal/domain"
)

type fakeBillingStore struct {
	subs       map[string]domain.Subscription
	payments   []domain.Payment
	events     map[string]string
	paymentErr error
}

func newFakeBillingStore() *fakeBillingStore {
	return &fakeBillingStore{
		subs:   make(map[string]domain.Subscription),
		events: make(map[string]string),
	}
}

func (s *fakeBillingStore) LatestSubscription(_ context.Context, userID string) (domain.Subscription, error) {
	sub, ok := s.subs[userID]
	if !ok {
		return domain.Subscription{}, domain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *fakeBillingStore) UpsertSubscription(_ context.Context, sub *domain.Subscription) error {
	s.subs[sub.UserID] = *sub
	return nil
}

func (s *fakeBillingStore) UpdateSubscriptionStatus(_ context.Context, userID, status string, endsAt *time.Time) error {
	sub, ok := s.subs[userID]
	if !ok {
		return domain.ErrSubscriptionNotFound
	}
	sub.Status = status
	sub.EndsAt = endsAt
	s.subs[userID] = sub
	return nil
}

func (s *fakeBillingStore) AddCredits(_ context.Context, userID string, credits int) error {
	sub, ok := s.subs[userID]
	if !ok {
		return domain.ErrSubscriptionNotFound
	}
	sub.Credits += credits
	s.subs[userID] = sub
	return nil
}

func (s *fakeBillingStore) InsertPayment(_ context.Context, payment *domain.Payment) error {
	if s.paymentErr != nil {
		err := s.paymentErr
		s.paymentErr = nil
		return err
	}
	for _, p := range s.payments {
		if p.Provider == payment.Provider && p.ProviderOrderID == payment.ProviderOrderID {
			return domain.ErrDuplicateEvent
		}
	}
	s.payments = append(s.payments, *payment)
	return nil
}

func (s *fakeBillingStore) MarkEventProcessed(_ context.Context, event *domain.WebhookEvent) error {
	key := event.Provider + ":" + event.ProviderEventID
	if errMsg, seen := s.events[key]; seen && errMsg == "" {
		return domain.ErrDuplicateEvent
	}
	s.events[key] = ""
	return nil
}

func (s *fakeBillingStore) MarkEventFailed(_ context.Context, provider, providerEventID, errMsg string) error {
	s.events[provider+":"+providerEventID] = errMsg
	return nil
}

type fakeUserStore struct{}

func (fakeUserStore) Ensure(_ context.Context, authProviderID, email string) (domain.User, error) {
	return domain.User{ID: authProviderID, AuthProviderID: authProviderID, Email: email}, nil
}

func (fakeUserStore) ByEmail(_ context.Context, email string) (domain.User, error) {
	return domain.User{ID: "by-email", Email: email}, nil
}

type nullUsageStore struct{}

func (nullUsageStore) Latest(context.Context, string) (domain.Usage, error) {
	return domain.Usage{}, domain.ErrUsageNotFound
}
func (nullUsageStore) StartPeriod(context.Context, *domain.Usage) error   { return nil }
func (nullUsageStore) Increment(context.Context, string, time.Time) error { return nil }

type nullResourceStore struct{}

func (nullResourceStore) Insert(context.Context, *domain.Resource) error { return nil }
func (nullResourceStore) AttachTutorial(context.Context, string, string) error {
	return nil
}
func (nullResourceStore) Get(context.Context, string) (domain.Resource, error) {
	return domain.Resource{}, domain.ErrResourceNotFound
}
func (nullResourceStore) ListByUser(context.Context, string) ([]domain.Resource, error) {
	return nil, nil
}
func (nullResourceStore) Delete(context.Context, string, string) error { return nil }
func (nullResourceStore) CountCreatedSince(context.Context, string, time.Time) (int, error) {
	return 0, nil
}

func newTestBillingService(store *fakeBillingStore) *app.BillingService {
	entitlement := app.NewEntitlementService(store, nullUsageStore{}, nullResourceStore{}, 1, 100)
	return app.NewBillingService(store, fakeUserStore{}, entitlement)
}

type fakeQuizCache struct {
	quizzes map[string]domain.Quiz
}

func (c *fakeQuizCache) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	quiz, ok := c.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

type fakePerformanceStore struct {
	records []domain.Performance
}

func (s *fakePerformanceStore) Insert(_ context.Context, p *domain.Performance) error {
	s.records = append(s.records, *p)
	return nil
}

func (s *fakePerformanceStore) ListByUser(_ context.Context, userID string) ([]domain.Performance, error) {
	var out []domain.Performance
	for _, p := range s.records {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakePerformanceStore) Delete(_ context.Context, id, userID string) error {
	for i, p := range s.records {
		if p.ID == id && p.UserID == userID {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return domain.ErrPerformanceNotFound
}
