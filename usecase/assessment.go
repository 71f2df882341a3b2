package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strategix/alexvoice/domain"
	"github.com/strategix/alexvoice/domain/entities"
	"github.com/strategix/alexvoice/domain/repositories"
	"github.com/strategix/alexvoice/internal/pipeline"
)

// SaveStatus is the presentation-facing persistence indicator.
type SaveStatus string

const (
	SaveIdle   SaveStatus = "idle"
	SaveSaving SaveStatus = "saving"
	SaveSaved  SaveStatus = "saved"
)

// defaultSavedWindow is how long the saved indicator stays up before
// reverting to idle.
const defaultSavedWindow = 2 * time.Second

// AssessmentController drives one user's progression through the fixed
// question sequence: answer persistence, follow-up requests and navigation.
// While a save is in flight the saveStatus acts as a navigation lock, so a
// failed save can never silently advance the question index.
type AssessmentController struct {
	repo     repositories.AssessmentRepository
	store    repositories.AudioStore
	llm      repositories.LargeLanguageModel
	reporter *pipeline.ReportGenerator
	logger   *zap.Logger

	savedWindow time.Duration

	mu          sync.Mutex
	assessment  *entities.Assessment
	responses   map[string]*entities.Response
	saveStatus  SaveStatus
	analyzing   bool
	onStatus    func(SaveStatus)
	revertTimer *time.Timer
}

// NewAssessmentController creates a controller with no assessment loaded.
func NewAssessmentController(
	repo repositories.AssessmentRepository,
	store repositories.AudioStore,
	llm repositories.LargeLanguageModel,
	reporter *pipeline.ReportGenerator,
	logger *zap.Logger,
) *AssessmentController {
	return &AssessmentController{
		repo:        repo,
		store:       store,
		llm:         llm,
		reporter:    reporter,
		logger:      logger,
		savedWindow: defaultSavedWindow,
		responses:   make(map[string]*entities.Response),
		saveStatus:  SaveIdle,
	}
}

// SetStatusObserver registers a callback invoked on every saveStatus
// transition. Must be called before the controller is used.
func (c *AssessmentController) SetStatusObserver(fn func(SaveStatus)) {
	c.onStatus = fn
}

// LoadOrStart loads the identified assessment with its response set, or
// creates a fresh in-progress assessment at index 0 when id is empty.
func (c *AssessmentController) LoadOrStart(ctx context.Context, userID string, id string) (*entities.Assessment, error) {
	if id == "" {
		assessment := entities.NewAssessment(userID)
		if err := c.repo.CreateAssessment(ctx, assessment); err != nil {
			return nil, fmt.Errorf("creating assessment: %w", err)
		}
		c.mu.Lock()
		c.assessment = assessment
		c.responses = make(map[string]*entities.Response)
		c.mu.Unlock()
		c.logger.Info("assessment started",
			zap.String("assessmentID", assessment.ID.Hex()),
			zap.String("userID", userID))
		return assessment, nil
	}

	assessment, err := c.repo.GetAssessment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading assessment: %w", err)
	}
	if assessment == nil {
		return nil, fmt.Errorf("%w: assessment %s not found", domain.ErrPersistence, id)
	}

	responses, err := c.repo.ListResponses(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading responses: %w", err)
	}
	byQuestion := make(map[string]*entities.Response, len(responses))
	for _, response := range responses {
		// Ascending creation order, so the latest write per question wins.
		byQuestion[response.QuestionID] = response
	}

	c.mu.Lock()
	c.assessment = assessment
	c.responses = byQuestion
	c.mu.Unlock()
	c.logger.Info("assessment resumed",
		zap.String("assessmentID", id),
		zap.Int("questionIndex", assessment.CurrentQuestionIndex),
		zap.Int("responses", len(byQuestion)))
	return assessment, nil
}

// RecordAnswer persists a response for the given question, replacing any
// prior in-memory response for it. Kind is voice when audio is present. The
// question index never moves here.
func (c *AssessmentController) RecordAnswer(ctx context.Context, questionID string, text string, audio *entities.Recording) (*entities.Response, error) {
	if _, ok := entities.QuestionByID(questionID); !ok {
		return nil, fmt.Errorf("unknown question %q", questionID)
	}

	c.mu.Lock()
	if c.assessment == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("no assessment loaded")
	}
	if c.saveStatus == SaveSaving {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: a save is already in flight", domain.ErrPersistence)
	}
	assessmentID := c.assessment.ID.Hex()
	c.mu.Unlock()

	c.setSaveStatus(SaveSaving)

	response := &entities.Response{
		ID:           uuid.NewString(),
		AssessmentID: assessmentID,
		QuestionID:   questionID,
		Text:         text,
		Kind:         entities.ResponseKindText,
		CreatedAt:    time.Now(),
	}
	if audio != nil && !audio.Empty() {
		ref, err := c.store.Save(ctx, response.ID, audio.MimeType, audio.Data)
		if err != nil {
			c.setSaveStatus(SaveIdle)
			return nil, fmt.Errorf("storing response audio: %w", err)
		}
		response.Kind = entities.ResponseKindVoice
		response.AudioRef = ref
	}

	if err := c.repo.CreateResponse(ctx, response); err != nil {
		c.setSaveStatus(SaveIdle)
		return nil, fmt.Errorf("saving response: %w", err)
	}

	c.mu.Lock()
	c.responses[questionID] = response
	c.mu.Unlock()
	c.settle()

	c.logger.Info("answer recorded",
		zap.String("assessmentID", assessmentID),
		zap.String("questionID", questionID),
		zap.String("kind", string(response.Kind)))
	return response, nil
}

// RequestFollowUp asks the completion service for a conversational reaction
// to a just-saved answer. Failures are swallowed and return an empty string;
// a missing follow-up degrades the experience but never blocks navigation.
func (c *AssessmentController) RequestFollowUp(ctx context.Context, questionID string, text string) string {
	question, ok := entities.QuestionByID(questionID)
	if !ok {
		return ""
	}

	c.mu.Lock()
	c.analyzing = true
	history := c.historyLocked(questionID)
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.analyzing = false
		c.mu.Unlock()
	}()

	followUp, err := c.llm.AnalyzeResponse(ctx, repositories.AnalysisRequest{
		CurrentQuestion:     question.Text,
		UserResponse:        text,
		ConversationHistory: history,
	})
	if err != nil {
		c.logger.Warn("follow-up request failed",
			zap.String("questionID", questionID),
			zap.Error(err))
		return ""
	}
	return strings.TrimSpace(followUp)
}

// historyLocked formats the previously answered question/answer pairs in
// original question order, excluding the question currently being answered.
func (c *AssessmentController) historyLocked(currentQuestionID string) string {
	var b strings.Builder
	for _, question := range entities.Questions() {
		if question.ID == currentQuestionID {
			continue
		}
		response, ok := c.responses[question.ID]
		if !ok || response.Text == "" {
			continue
		}
		fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", question.Text, response.Text)
	}
	return strings.TrimSpace(b.String())
}

// IsAnalyzing reports whether a follow-up request is in flight.
func (c *AssessmentController) IsAnalyzing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analyzing
}

// Next advances to the following question and persists the new index. At
// the last question it completes the assessment instead.
func (c *AssessmentController) Next(ctx context.Context) error {
	c.mu.Lock()
	if err := c.navigableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.assessment.CanGoNext() {
		c.mu.Unlock()
		return c.Complete(ctx)
	}
	target := c.assessment.CurrentQuestionIndex + 1
	c.mu.Unlock()
	return c.moveTo(ctx, target)
}

// Previous steps back one question. A no-op at index 0.
func (c *AssessmentController) Previous(ctx context.Context) error {
	c.mu.Lock()
	if err := c.navigableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.assessment.CanGoPrevious() {
		c.mu.Unlock()
		return nil
	}
	target := c.assessment.CurrentQuestionIndex - 1
	c.mu.Unlock()
	return c.moveTo(ctx, target)
}

// Skip advances without requiring an answer for the current question.
func (c *AssessmentController) Skip(ctx context.Context) error {
	return c.Next(ctx)
}

// moveTo persists a new question index, reverting the in-memory index when
// the write fails so a failed save never advances navigation.
func (c *AssessmentController) moveTo(ctx context.Context, target int) error {
	c.setSaveStatus(SaveSaving)

	c.mu.Lock()
	previous := c.assessment.CurrentQuestionIndex
	if err := c.assessment.SetQuestionIndex(target); err != nil {
		c.mu.Unlock()
		c.setSaveStatus(SaveIdle)
		return err
	}
	assessment := c.assessment
	c.mu.Unlock()

	if err := c.repo.UpdateAssessment(ctx, assessment); err != nil {
		c.mu.Lock()
		c.assessment.CurrentQuestionIndex = previous
		c.mu.Unlock()
		c.setSaveStatus(SaveIdle)
		return fmt.Errorf("persisting question index: %w", err)
	}
	c.settle()
	return nil
}

// Complete marks the assessment completed and kicks off report generation.
// Terminal: navigation after a successful Complete is rejected. Report
// failures degrade; the assessment stays completed.
func (c *AssessmentController) Complete(ctx context.Context) error {
	c.mu.Lock()
	if c.assessment == nil {
		c.mu.Unlock()
		return fmt.Errorf("no assessment loaded")
	}
	if c.saveStatus == SaveSaving {
		c.mu.Unlock()
		return fmt.Errorf("%w: a save is in flight", domain.ErrPersistence)
	}
	if err := c.assessment.Complete(); err != nil {
		c.mu.Unlock()
		return err
	}
	assessment := c.assessment
	c.mu.Unlock()

	c.setSaveStatus(SaveSaving)
	if err := c.repo.UpdateAssessment(ctx, assessment); err != nil {
		c.mu.Lock()
		c.assessment.Status = entities.AssessmentStatusInProgress
		c.assessment.CompletedAt = nil
		c.mu.Unlock()
		c.setSaveStatus(SaveIdle)
		return fmt.Errorf("completing assessment: %w", err)
	}
	c.settle()

	c.logger.Info("assessment completed", zap.String("assessmentID", assessment.ID.Hex()))

	if c.reporter != nil {
		if err := c.reporter.Generate(ctx, assessment); err != nil {
			c.logger.Warn("report generation failed", zap.Error(err))
		}
	}
	return nil
}

// navigableLocked rejects navigation while a save is in flight or after the
// assessment completed.
func (c *AssessmentController) navigableLocked() error {
	if c.assessment == nil {
		return fmt.Errorf("no assessment loaded")
	}
	if c.saveStatus == SaveSaving {
		return fmt.Errorf("%w: navigation locked while saving", domain.ErrPersistence)
	}
	if c.assessment.IsCompleted() {
		return fmt.Errorf("assessment already completed")
	}
	return nil
}

// settle flips saving to saved and schedules the revert to idle after the
// display window.
func (c *AssessmentController) settle() {
	c.setSaveStatus(SaveSaved)
	c.mu.Lock()
	if c.revertTimer != nil {
		c.revertTimer.Stop()
	}
	c.revertTimer = time.AfterFunc(c.savedWindow, func() {
		c.mu.Lock()
		current := c.saveStatus
		c.mu.Unlock()
		if current == SaveSaved {
			c.setSaveStatus(SaveIdle)
		}
	})
	c.mu.Unlock()
}

func (c *AssessmentController) setSaveStatus(status SaveStatus) {
	c.mu.Lock()
	c.saveStatus = status
	fn := c.onStatus
	c.mu.Unlock()
	if fn != nil {
		fn(status)
	}
}

// SaveStatus returns the current persistence indicator.
func (c *AssessmentController) SaveStatus() SaveStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveStatus
}

// Assessment returns the loaded assessment, or nil.
func (c *AssessmentController) Assessment() *entities.Assessment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assessment
}

// CurrentQuestion returns the question at the current index.
func (c *AssessmentController) CurrentQuestion() (entities.Question, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.assessment == nil {
		return entities.Question{}, false
	}
	return c.assessment.CurrentQuestion(), true
}

// ResponseFor returns the in-memory response for a question, or nil.
func (c *AssessmentController) ResponseFor(questionID string) *entities.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responses[questionID]
}
