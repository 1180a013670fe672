package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"mcqlab/internal/domain"
	"mcqlab/internal/extract"
	"mcqlab/internal/genai"
)

// ResourceStore persists submitted learning items.
type ResourceStore interface {
	Insert(ctx context.Context, resource *domain.Resource) error
	AttachTutorial(ctx context.Context, resourceID, tutorial string) error
	Get(ctx context.Context, id string) (domain.Resource, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Resource, error)
	Delete(ctx context.Context, id, userID string) error
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// QuizStore persists generated quizzes and their question batches.
type QuizStore interface {
	InsertWithQuestions(ctx context.Context, quiz *domain.Quiz, questions []domain.MCQ) error
}

// StepStore records saga step transitions for post-mortem and recovery.
type StepStore interface {
	Record(ctx context.Context, submissionID, step, status, errMsg string) error
}

// ContentExtractor turns a URL into text, a title and an image.
type ContentExtractor interface {
	ExtractURL(ctx context.Context, url string) (extract.Result, error)
}

// MCQGenerator produces questions and tutorials from extracted content.
type MCQGenerator interface {
	GenerateMCQs(ctx context.Context, content string) ([]domain.GeneratedMCQ, error)
	GenerateTutorial(ctx context.Context, content string) (string, error)
}

// SubmitRequest carries one user submission. Exactly one of URL, File or Text
// should be set.
type SubmitRequest struct {
	UserID   string
	URL      string
	FileName string
	FileData []byte
	Text     string
}

// SubmitResult is returned once the whole saga has completed.
type SubmitResult struct {
	SubmissionID string          `json:"submissionId"`
	Resource     domain.Resource `json:"resource"`
	QuizID       string          `json:"quizId"`
}

// SubmissionService runs the submission saga: extract, insert resource,
// generate and insert the quiz, generate and attach the tutorial. Step
// completion is recorded so a mid-sequence failure is visible, and the
// compensation path deletes the resource (the database cascades the rest)
// instead of leaving orphaned rows behind.
type SubmissionService struct {
	resources   ResourceStore
	quizzes     QuizStore
	steps       StepStore
	extractor   ContentExtractor
	generator   MCQGenerator
	entitlement *EntitlementService
	hub         *ProgressHub
}

func NewSubmissionService(
	resources ResourceStore,
	quizzes QuizStore,
	steps StepStore,
	extractor ContentExtractor,
	generator MCQGenerator,
	entitlement *EntitlementService,
	hub *ProgressHub,
) *SubmissionService {
	return &SubmissionService{
		resources:   resources,
		quizzes:     quizzes,
		steps:       steps,
		extractor:   extractor,
		generator:   generator,
		entitlement: entitlement,
		hub:         hub,
	}
}

// Submit runs the full pipeline synchronously and returns the created rows.
// The entitlement check gates the submission up front.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	ent, err := s.entitlement.Check(ctx, req.UserID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("entitlement check: %w", err)
	}
	if !ent.CanSubmit {
		return SubmitResult{}, fmt.Errorf("%w: %s", domain.ErrQuotaExceeded, ent.Message)
	}

	submissionID := uuid.NewString()
	s.hub.Open(submissionID)

	result, err := s.run(ctx, submissionID, req)
	if err != nil {
		s.hub.Close(submissionID, domain.Progress{
			SubmissionID: submissionID,
			Status:       domain.StepFailed,
			Message:      err.Error(),
		})
		return SubmitResult{}, err
	}

	if err := s.entitlement.Consume(ctx, req.UserID); err != nil {
		// The quiz exists; a failed counter bump is not worth failing the
		// submission over.
		log.Printf("submission %s: consume entitlement: %v", submissionID, err)
	}

	s.hub.Close(submissionID, domain.Progress{
		SubmissionID: submissionID,
		Step:         domain.StepTutorial,
		Status:       domain.StepDone,
		ResourceID:   result.Resource.ID,
		QuizID:       result.QuizID,
	})
	return result, nil
}

func (s *SubmissionService) run(ctx context.Context, submissionID string, req SubmitRequest) (SubmitResult, error) {
	content, err := s.stepExtract(ctx, submissionID, req)
	if err != nil {
		return SubmitResult{}, err
	}

	resource, err := s.stepResource(ctx, submissionID, req.UserID, req.URL, content)
	if err != nil {
		return SubmitResult{}, err
	}

	quizID, err := s.stepQuiz(ctx, submissionID, resource)
	if err != nil {
		s.compensate(ctx, submissionID, resource, domain.StepQuiz)
		return SubmitResult{}, err
	}

	if err := s.stepTutorial(ctx, submissionID, &resource); err != nil {
		s.compensate(ctx, submissionID, resource, domain.StepTutorial)
		return SubmitResult{}, err
	}

	return SubmitResult{SubmissionID: submissionID, Resource: resource, QuizID: quizID}, nil
}

func (s *SubmissionService) stepExtract(ctx context.Context, submissionID string, req SubmitRequest) (extract.Result, error) {
	s.announce(ctx, submissionID, domain.StepExtract, domain.StepRunning, "")

	var (
		content extract.Result
		err     error
	)
	switch {
	case req.URL != "":
		content, err = s.extractor.ExtractURL(ctx, req.URL)
	case len(req.FileData) > 0:
		content, err = extract.ExtractFile(req.FileName, req.FileData)
	case strings.TrimSpace(req.Text) != "":
		content = pastedResult(req.Text)
	default:
		err = fmt.Errorf("empty submission")
	}
	if err != nil {
		s.fail(ctx, submissionID, domain.StepExtract, err)
		return extract.Result{}, fmt.Errorf("extract: %w", err)
	}

	s.announce(ctx, submissionID, domain.StepExtract, domain.StepDone, content.Title)
	return content, nil
}

func (s *SubmissionService) stepResource(ctx context.Context, submissionID, userID, url string, content extract.Result) (domain.Resource, error) {
	s.announce(ctx, submissionID, domain.StepResource, domain.StepRunning, "")

	resource := domain.Resource{
		ID:       uuid.NewString(),
		UserID:   userID,
		URL:      url,
		Type:     content.Type,
		Title:    content.Title,
		Content:  content.Content,
		ImageURL: content.ImageURL,
	}
	if err := s.resources.Insert(ctx, &resource); err != nil {
		s.fail(ctx, submissionID, domain.StepResource, err)
		return domain.Resource{}, fmt.Errorf("insert resource: %w", err)
	}

	s.announce(ctx, submissionID, domain.StepResource, domain.StepDone, "")
	return resource, nil
}

func (s *SubmissionService) stepQuiz(ctx context.Context, submissionID string, resource domain.Resource) (string, error) {
	s.announce(ctx, submissionID, domain.StepMCQs, domain.StepRunning, "")

	generated, err := s.generator.GenerateMCQs(ctx, resource.Content)
	if err != nil {
		s.fail(ctx, submissionID, domain.StepMCQs, err)
		return "", fmt.Errorf("generate mcqs: %w", err)
	}
	s.announce(ctx, submissionID, domain.StepMCQs, domain.StepDone, fmt.Sprintf("%d questions", len(generated)))

	s.announce(ctx, submissionID, domain.StepQuiz, domain.StepRunning, "")
	quiz := domain.Quiz{
		ID:         uuid.NewString(),
		ResourceID: resource.ID,
		UserID:     resource.UserID,
	}
	questions, err := toMCQs(quiz.ID, generated)
	if err != nil {
		s.fail(ctx, submissionID, domain.StepQuiz, err)
		return "", err
	}
	if err := s.quizzes.InsertWithQuestions(ctx, &quiz, questions); err != nil {
		s.fail(ctx, submissionID, domain.StepQuiz, err)
		return "", fmt.Errorf("insert quiz: %w", err)
	}

	s.announce(ctx, submissionID, domain.StepQuiz, domain.StepDone, "")
	return quiz.ID, nil
}

func (s *SubmissionService) stepTutorial(ctx context.Context, submissionID string, resource *domain.Resource) error {
	s.announce(ctx, submissionID, domain.StepTutorial, domain.StepRunning, "")

	tutorial, err := s.generator.GenerateTutorial(ctx, resource.Content)
	if err != nil {
		s.fail(ctx, submissionID, domain.StepTutorial, err)
		return fmt.Errorf("generate tutorial: %w", err)
	}
	if err := s.resources.AttachTutorial(ctx, resource.ID, tutorial); err != nil {
		s.fail(ctx, submissionID, domain.StepTutorial, err)
		return fmt.Errorf("attach tutorial: %w", err)
	}
	resource.Tutorial = tutorial

	s.announce(ctx, submissionID, domain.StepTutorial, domain.StepDone, "")
	return nil
}

// compensate deletes the partially-built resource; FK cascades remove the
// quiz and questions with it.
func (s *SubmissionService) compensate(ctx context.Context, submissionID string, resource domain.Resource, failedStep string) {
	if err := s.resources.Delete(ctx, resource.ID, resource.UserID); err != nil {
		log.Printf("submission %s: compensation failed for resource %s: %v", submissionID, resource.ID, err)
		return
	}
	if err := s.steps.Record(ctx, submissionID, failedStep, domain.StepRolledBck, ""); err != nil {
		log.Printf("submission %s: record rollback: %v", submissionID, err)
	}
}

func (s *SubmissionService) announce(ctx context.Context, submissionID, step, status, message string) {
	if err := s.steps.Record(ctx, submissionID, step, status, ""); err != nil {
		log.Printf("submission %s: record step %s/%s: %v", submissionID, step, status, err)
	}
	s.hub.Publish(domain.Progress{
		SubmissionID: submissionID,
		Step:         step,
		Status:       status,
		Message:      message,
	})
}

func (s *SubmissionService) fail(ctx context.Context, submissionID, step string, cause error) {
	if err := s.steps.Record(ctx, submissionID, step, domain.StepFailed, cause.Error()); err != nil {
		log.Printf("submission %s: record failure %s: %v", submissionID, step, err)
	}
	s.hub.Publish(domain.Progress{
		SubmissionID: submissionID,
		Step:         step,
		Status:       domain.StepFailed,
		Message:      cause.Error(),
	})
}

// pastedResult wraps pasted text in an extraction result, deriving a title
// from the first few words.
func pastedResult(text string) extract.Result {
	text = strings.TrimSpace(text)
	words := strings.Fields(text)
	title := text
	if len(words) > 8 {
		title = strings.Join(words[:8], " ") + "…"
	}
	return extract.Result{
		Type:    domain.ResourceDocument,
		Title:   title,
		Content: text,
	}
}

func toMCQs(quizID string, generated []domain.GeneratedMCQ) ([]domain.MCQ, error) {
	questions := make([]domain.MCQ, 0, len(generated))
	for _, g := range generated {
		if len(g.Options) != 4 {
			return nil, fmt.Errorf("question %q has %d options", g.Question, len(g.Options))
		}
		correct, err := genai.CorrectIndex(g)
		if err != nil {
			return nil, err
		}
		questions = append(questions, domain.MCQ{
			ID:            uuid.NewString(),
			QuizID:        quizID,
			Question:      g.Question,
			OptionA:       g.Options[0],
			OptionB:       g.Options[1],
			OptionC:       g.Options[2],
			OptionD:       g.Options[3],
			CorrectOption: correct,
		})
	}
	return questions, nil
}
