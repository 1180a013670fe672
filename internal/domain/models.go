package domain

import (
	"time"

	"github.com/uptrace/bun"
)

// ResourceType classifies how a learning item was submitted.
type ResourceType string

const (
	ResourceYouTube  ResourceType = "youtube"
	ResourceArticle  ResourceType = "article"
	ResourceDocument ResourceType = "document"
)

// Subscription statuses as reported by the payment providers.
const (
	SubscriptionActive    = "active"
	SubscriptionOnTrial   = "on_trial"
	SubscriptionPaused    = "paused"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// User is an identity row keyed by the external auth provider id. Rows are
// created lazily the first time an auth id shows up on a request.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID             string    `bun:"id,pk" json:"id"`
	AuthProviderID string    `bun:"auth_provider_id,unique" json:"authProviderId"`
	Email          string    `bun:"email" json:"email"`
	CreatedAt      time.Time `bun:"created_at,default:now()" json:"createdAt"`
}

// Resource is a submitted learning item with its extracted text.
type Resource struct {
	bun.BaseModel `bun:"table:resources"`

	ID        string       `bun:"id,pk" json:"id"`
	UserID    string       `bun:"user_id" json:"userId"`
	URL       string       `bun:"url" json:"url"`
	Type      ResourceType `bun:"type" json:"type"`
	Title     string       `bun:"title" json:"title"`
	Content   string       `bun:"content" json:"content"`
	ImageURL  string       `bun:"image_url" json:"imageUrl"`
	Tutorial  string       `bun:"tutorial" json:"tutorial"`
	CreatedAt time.Time    `bun:"created_at,default:now()" json:"createdAt"`
}

// Quiz links one resource to its generated question set. Immutable after insert.
type Quiz struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID         string    `bun:"id,pk" json:"id"`
	ResourceID string    `bun:"resource_id" json:"resourceId"`
	UserID     string    `bun:"user_id" json:"userId"`
	CreatedAt  time.Time `bun:"created_at,default:now()" json:"createdAt"`

	Questions []MCQ `bun:"-" json:"questions,omitempty"`
}

// MCQ is one generated multiple-choice question. CorrectOption is 1-based.
type MCQ struct {
	bun.BaseModel `bun:"table:mcqs"`

	ID            string `bun:"id,pk" json:"id"`
	QuizID        string `bun:"quiz_id" json:"quizId"`
	Question      string `bun:"question" json:"question"`
	OptionA       string `bun:"option_a" json:"optionA"`
	OptionB       string `bun:"option_b" json:"optionB"`
	OptionC       string `bun:"option_c" json:"optionC"`
	OptionD       string `bun:"option_d" json:"optionD"`
	CorrectOption int    `bun:"correct_option" json:"correctOption"`
}

// GeneratedMCQ is the provider-side shape before persistence.
type GeneratedMCQ struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

// Performance records one quiz attempt and its score.
type Performance struct {
	bun.BaseModel `bun:"table:performances"`

	ID             string    `bun:"id,pk" json:"id"`
	QuizID         string    `bun:"quiz_id" json:"quizId"`
	UserID         string    `bun:"user_id" json:"userId"`
	CorrectAnswers int       `bun:"correct_answers" json:"correctAnswers"`
	TotalQuestions int       `bun:"total_questions" json:"totalQuestions"`
	CreatedAt      time.Time `bun:"created_at,default:now()" json:"createdAt"`
}

// Subscription is the current billing state for a user. Rows are keyed by the
// internal user id; the email is carried as a lookup column only.
type Subscription struct {
	bun.BaseModel `bun:"table:subscriptions"`

	ID                     string     `bun:"id,pk" json:"id"`
	UserID                 string     `bun:"user_id,unique" json:"userId"`
	UserEmail              string     `bun:"user_email" json:"userEmail"`
	Provider               string     `bun:"provider" json:"provider"`
	ProviderSubscriptionID string     `bun:"provider_subscription_id" json:"providerSubscriptionId"`
	Status                 string     `bun:"status" json:"status"`
	PlanID                 string     `bun:"plan_id" json:"planId"`
	PlanName               string     `bun:"plan_name" json:"planName"`
	CardBrand              string     `bun:"card_brand" json:"cardBrand"`
	CardLastFour           string     `bun:"card_last_four" json:"cardLastFour"`
	Credits                int        `bun:"credits" json:"credits"`
	RenewsAt               *time.Time `bun:"renews_at" json:"renewsAt,omitempty"`
	EndsAt                 *time.Time `bun:"ends_at" json:"endsAt,omitempty"`
	CreatedAt              time.Time  `bun:"created_at,default:now()" json:"createdAt"`
	UpdatedAt              time.Time  `bun:"updated_at,default:now()" json:"updatedAt"`
}

// Valid reports whether the subscription entitles the user right now.
func (s Subscription) Valid(now time.Time) bool {
	switch s.Status {
	case SubscriptionActive, SubscriptionOnTrial:
	default:
		return false
	}
	if s.EndsAt != nil && !now.Before(*s.EndsAt) {
		return false
	}
	return true
}

// Usage is the per-period submission counter consulted by the entitlement check.
type Usage struct {
	bun.BaseModel `bun:"table:user_usage"`

	UserID             string    `bun:"user_id,pk" json:"userId"`
	PeriodStart        time.Time `bun:"period_start,pk" json:"periodStart"`
	PeriodEnd          time.Time `bun:"period_end" json:"periodEnd"`
	SubmissionCount    int       `bun:"submission_count" json:"submissionCount"`
	SubscriptionPoints int       `bun:"subscription_points" json:"subscriptionPoints"`
}

// Payment is an append-only record of a provider charge. The
// (provider, provider_order_id) pair is unique so redelivered webhooks cannot
// double-insert.
type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID              string    `bun:"id,pk" json:"id"`
	UserID          string    `bun:"user_id" json:"userId"`
	UserEmail       string    `bun:"user_email" json:"userEmail"`
	Provider        string    `bun:"provider" json:"provider"`
	ProviderOrderID string    `bun:"provider_order_id" json:"providerOrderId"`
	Total           int64     `bun:"total" json:"total"`
	Currency        string    `bun:"currency" json:"currency"`
	Status          string    `bun:"status" json:"status"`
	Receipt         string    `bun:"receipt" json:"receipt"`
	CreatedAt       time.Time `bun:"created_at,default:now()" json:"createdAt"`
}

// WebhookEvent is the dedup + audit record for inbound provider callbacks.
type WebhookEvent struct {
	bun.BaseModel `bun:"table:webhook_events"`

	ID              string     `bun:"id,pk" json:"id"`
	Provider        string     `bun:"provider" json:"provider"`
	ProviderEventID string     `bun:"provider_event_id" json:"providerEventId"`
	EventType       string     `bun:"event_type" json:"eventType"`
	Payload         []byte     `bun:"payload" json:"-"`
	ProcessedAt     *time.Time `bun:"processed_at" json:"processedAt,omitempty"`
	ProcessingError string     `bun:"processing_error" json:"processingError,omitempty"`
	CreatedAt       time.Time  `bun:"created_at,default:now()" json:"createdAt"`
}

// Generation step lifecycle for the submission saga.
const (
	StepPending   = "pending"
	StepRunning   = "running"
	StepDone      = "done"
	StepFailed    = "failed"
	StepRolledBck = "rolled_back"
)

// Saga step names, in execution order.
const (
	StepExtract  = "extract"
	StepResource = "resource"
	StepQuiz     = "quiz"
	StepMCQs     = "mcqs"
	StepTutorial = "tutorial"
)

// GenerationStep records completion of one submission saga step so partial
// failures can be detected and compensated.
type GenerationStep struct {
	bun.BaseModel `bun:"table:generation_steps"`

	ID           string    `bun:"id,pk" json:"id"`
	SubmissionID string    `bun:"submission_id" json:"submissionId"`
	Step         string    `bun:"step" json:"step"`
	Status       string    `bun:"status" json:"status"`
	Error        string    `bun:"error" json:"error,omitempty"`
	CreatedAt    time.Time `bun:"created_at,default:now()" json:"createdAt"`
	UpdatedAt    time.Time `bun:"updated_at,default:now()" json:"updatedAt"`
}

// Progress is one saga progress update streamed to websocket subscribers.
type Progress struct {
	SubmissionID string    `json:"submissionId"`
	Step         string    `json:"step"`
	Status       string    `json:"status"`
	Message      string    `json:"message,omitempty"`
	ResourceID   string    `json:"resourceId,omitempty"`
	QuizID       string    `json:"quizId,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Entitlement is the result of the plan/usage check.
type Entitlement struct {
	CanSubmit bool   `json:"canSubmit"`
	IsPro     bool   `json:"isPro"`
	Remaining int    `json:"remaining"`
	Message   string `json:"message"`
}
