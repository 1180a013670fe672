package app_test

import (
	"context"
	"sync"
	"time"

	"mcqlab/internal/app"
	"mcqlab/internal/domain"
	"mcqlab/internal/extract"
)

// fakeResourceStore implements app.ResourceStore in memory.
type fakeResourceStore struct {
	mu        sync.Mutex
	resources map[string]domain.Resource
	insertErr error
	deleted   []string
}

func newFakeResourceStore() *fakeResourceStore {
	return &fakeResourceStore{resources: make(map[string]domain.Resource)}
}

func (f *fakeResourceStore) Insert(_ context.Context, r *domain.Resource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	f.resources[r.ID] = *r
	return nil
}

func (f *fakeResourceStore) AttachTutorial(_ context.Context, id, tutorial string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.resources[id]
	if !ok {
		return domain.ErrResourceNotFound
	}
	r.Tutorial = tutorial
	f.resources[id] = r
	return nil
}

func (f *fakeResourceStore) Get(_ context.Context, id string) (domain.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.resources[id]
	if !ok {
		return domain.Resource{}, domain.ErrResourceNotFound
	}
	return r, nil
}

func (f *fakeResourceStore) ListByUser(_ context.Context, userID string) ([]domain.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Resource
	for _, r := range f.resources {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResourceStore) Delete(_ context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.resources[id]
	if !ok || r.UserID != userID {
		return domain.ErrResourceNotFound
	}
	delete(f.resources, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeResourceStore) CountCreatedSince(_ context.Context, userID string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, r := range f.resources {
		if r.UserID == userID && !r.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

type fakeQuizStore struct {
	mu        sync.Mutex
	quizzes   map[string]domain.Quiz
	insertErr error
}

func newFakeQuizStore() *fakeQuizStore {
	return &fakeQuizStore{quizzes: make(map[string]domain.Quiz)}
}

func (f *fakeQuizStore) InsertWithQuestions(_ context.Context, quiz *domain.Quiz, questions []domain.MCQ) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	q := *quiz
	q.Questions = questions
	f.quizzes[q.ID] = q
	return nil
}

type stepRecord struct {
	step, status string
}

type fakeStepStore struct {
	mu      sync.Mutex
	records []stepRecord
}

func (f *fakeStepStore) Record(_ context.Context, _, step, status, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, stepRecord{step: step, status: status})
	return nil
}

func (f *fakeStepStore) has(step, status string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.step == step && r.status == status {
			return true
		}
	}
	return false
}

type fakeExtractor struct {
	result extract.Result
	err    error
}

func (f *fakeExtractor) ExtractURL(context.Context, string) (extract.Result, error) {
	return f.result, f.err
}

type fakeGenerator struct {
	mcqs        []domain.GeneratedMCQ
	mcqErr      error
	tutorial    string
	tutorialErr error
}

func (f *fakeGenerator) GenerateMCQs(context.Context, string) ([]domain.GeneratedMCQ, error) {
	return f.mcqs, f.mcqErr
}

func (f *fakeGenerator) GenerateTutorial(context.Context, string) (string, error) {
	return f.tutorial, f.tutorialErr
}

type fakeSubscriptionReader struct {
	sub domain.Subscription
	err error
}

func (f *fakeSubscriptionReader) LatestSubscription(context.Context, string) (domain.Subscription, error) {
	return f.sub, f.err
}

type fakeUsageStore struct {
	mu        sync.Mutex
	usage     *domain.Usage
	increment int
}

func (f *fakeUsageStore) Latest(context.Context, string) (domain.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usage == nil {
		return domain.Usage{}, domain.ErrUsageNotFound
	}
	return *f.usage, nil
}

func (f *fakeUsageStore) StartPeriod(_ context.Context, usage *domain.Usage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *usage
	f.usage = &copied
	return nil
}

func (f *fakeUsageStore) Increment(context.Context, string, time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usage == nil {
		return domain.ErrUsageNotFound
	}
	f.usage.SubmissionCount++
	f.increment++
	return nil
}

type fakeBillingStore struct {
	fakeSubscriptionReader
	mu            sync.Mutex
	upserts       []domain.Subscription
	statusUpdates []string
	payments      []domain.Payment
	events        map[string]string
	credits       int
	paymentErr    error
}

func newFakeBillingStore() *fakeBillingStore {
	return &fakeBillingStore{events: make(map[string]string)}
}

func (f *fakeBillingStore) UpsertSubscription(_ context.Context, sub *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, *sub)
	return nil
}

func (f *fakeBillingStore) UpdateSubscriptionStatus(_ context.Context, userID, status string, _ *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusUpdates = append(f.statusUpdates, userID+":"+status)
	return nil
}

func (f *fakeBillingStore) AddCredits(_ context.Context, _ string, credits int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credits += credits
	return nil
}

func (f *fakeBillingStore) InsertPayment(_ context.Context, payment *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paymentErr != nil {
		err := f.paymentErr
		f.paymentErr = nil
		return err
	}
	key := payment.Provider + ":" + payment.ProviderOrderID
	for _, p := range f.payments {
		if p.Provider+":"+p.ProviderOrderID == key {
			return domain.ErrDuplicateEvent
		}
	}
	f.payments = append(f.payments, *payment)
	return nil
}

func (f *fakeBillingStore) MarkEventProcessed(_ context.Context, event *domain.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := event.Provider + ":" + event.ProviderEventID
	if errMsg, seen := f.events[key]; seen && errMsg == "" {
		return domain.ErrDuplicateEvent
	}
	f.events[key] = ""
	return nil
}

func (f *fakeBillingStore) MarkEventFailed(_ context.Context, provider, providerEventID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[provider+":"+providerEventID] = errMsg
	return nil
}

type fakeUserStore struct {
	user domain.User
}

func (f *fakeUserStore) Ensure(context.Context, string, string) (domain.User, error) {
	return f.user, nil
}

func (f *fakeUserStore) ByEmail(context.Context, string) (domain.User, error) {
	return f.user, nil
}

func generatedQuestions(n int) []domain.GeneratedMCQ {
	questions := make([]domain.GeneratedMCQ, n)
	for i := range questions {
		questions[i] = domain.GeneratedMCQ{
			Question:      "Q?",
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: "b",
		}
	}
	return questions
}

func freeEntitlement(resources app.ResourceStore) *app.EntitlementService {
	return app.NewEntitlementService(
		&fakeSubscriptionReader{err: domain.ErrSubscriptionNotFound},
		&fakeUsageStore{},
		resources,
		1, 100,
	)
}
