package domain

import "errors"

var (
	// ErrResourceNotFound is returned when a submitted resource id is unknown.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrPerformanceNotFound indicates a performance record does not exist.
	ErrPerformanceNotFound = errors.New("performance not found")
	// ErrSubscriptionNotFound is returned when a user has no billing row.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrUsageNotFound is returned when no usage row exists for the current period.
	ErrUsageNotFound = errors.New("usage record not found")
	// ErrSubmissionNotFound is returned for unknown generation submission ids.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrQuotaExceeded rejects a submission that went past the plan allowance.
	ErrQuotaExceeded = errors.New("submission quota exceeded")
	// ErrUnsupportedFileType rejects uploads that are not pdf, docx, txt or md.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrAnswerMismatch is returned when a generated correct answer does not
	// appear among the generated options.
	ErrAnswerMismatch = errors.New("correct answer not present in options")
	// ErrScoreOutOfRange rejects a reported score that exceeds the quiz size.
	ErrScoreOutOfRange = errors.New("score out of range for quiz")
	// ErrDuplicateEvent marks a webhook delivery that was already processed.
	ErrDuplicateEvent = errors.New("webhook event already processed")
)
