package entities

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssessmentStatus represents the lifecycle state of an assessment.
type AssessmentStatus string

const (
	AssessmentStatusInProgress AssessmentStatus = "in_progress"
	AssessmentStatusCompleted  AssessmentStatus = "completed"
	// AssessmentStatusAbandoned marks in-progress assessments untouched past
	// the retention window. The janitor applies it; users never do.
	AssessmentStatusAbandoned AssessmentStatus = "abandoned"
)

// ResponseKind distinguishes spoken answers from typed ones.
type ResponseKind string

const (
	ResponseKindVoice ResponseKind = "voice"
	ResponseKindText  ResponseKind = "text"
)

// Assessment is one user's run through the fixed question sequence. The status
// transition is monotonic: in_progress -> completed, never back.
type Assessment struct {
	ID                   primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID               string             `json:"user_id" bson:"user_id"`
	Status               AssessmentStatus   `json:"status" bson:"status"`
	CurrentQuestionIndex int                `json:"current_question_index" bson:"current_question_index"`
	Report               string             `json:"report,omitempty" bson:"report,omitempty"`
	CreatedAt            time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at" bson:"updated_at"`
	CompletedAt          *time.Time         `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// Response is one answer to one question. The persistence layer may retain
// history; the latest write for a question ID is authoritative.
type Response struct {
	ID           string       `json:"id" bson:"id"`
	AssessmentID string       `json:"assessment_id" bson:"assessment_id"`
	QuestionID   string       `json:"question_id" bson:"question_id"`
	Text         string       `json:"text,omitempty" bson:"text,omitempty"`
	AudioRef     string       `json:"audio_ref,omitempty" bson:"audio_ref,omitempty"`
	Kind         ResponseKind `json:"kind" bson:"kind"`
	CreatedAt    time.Time    `json:"created_at" bson:"created_at"`
}

// NewAssessment creates a new in-progress assessment at the first question.
func NewAssessment(userID string) *Assessment {
	now := time.Now()
	return &Assessment{
		ID:                   primitive.NewObjectID(),
		UserID:               userID,
		Status:               AssessmentStatusInProgress,
		CurrentQuestionIndex: 0,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// CurrentQuestion returns the question at the current index.
func (a *Assessment) CurrentQuestion() Question {
	return assessmentQuestions[a.CurrentQuestionIndex]
}

// CanGoNext reports whether there is a question after the current one.
func (a *Assessment) CanGoNext() bool {
	return a.CurrentQuestionIndex < QuestionCount()-1
}

// CanGoPrevious reports whether there is a question before the current one.
func (a *Assessment) CanGoPrevious() bool {
	return a.CurrentQuestionIndex > 0
}

// Progress returns completion progress in (0,1], counting the current
// question as reached.
func (a *Assessment) Progress() float64 {
	return float64(a.CurrentQuestionIndex+1) / float64(QuestionCount())
}

// SetQuestionIndex moves the current question pointer. The index must stay a
// valid index into the question sequence.
func (a *Assessment) SetQuestionIndex(index int) error {
	if index < 0 || index >= QuestionCount() {
		return errors.New("question index out of range")
	}
	a.CurrentQuestionIndex = index
	a.UpdatedAt = time.Now()
	return nil
}

// Complete marks the assessment completed and records the completion time.
// Completing twice is an error; the transition is one-way.
func (a *Assessment) Complete() error {
	if a.Status == AssessmentStatusCompleted {
		return errors.New("assessment already completed")
	}
	now := time.Now()
	a.Status = AssessmentStatusCompleted
	a.CompletedAt = &now
	a.UpdatedAt = now
	return nil
}

// IsCompleted reports whether the assessment reached its terminal state.
func (a *Assessment) IsCompleted() bool {
	return a.Status == AssessmentStatusCompleted
}

// Validate validates the assessment data.
func (a *Assessment) Validate() error {
	if a.UserID == "" {
		return errors.New("user_id is required")
	}
	switch a.Status {
	case AssessmentStatusInProgress, AssessmentStatusCompleted, AssessmentStatusAbandoned:
	default:
		return errors.New("invalid assessment status")
	}
	if a.CurrentQuestionIndex < 0 || a.CurrentQuestionIndex >= QuestionCount() {
		return errors.New("question index out of range")
	}
	return nil
}

// Validate validates the response data.
func (r *Response) Validate() error {
	if r.AssessmentID == "" {
		return errors.New("assessment_id is required")
	}
	if _, ok := QuestionByID(r.QuestionID); !ok {
		return errors.New("unknown question_id")
	}
	if r.Kind != ResponseKindVoice && r.Kind != ResponseKindText {
		return errors.New("invalid response kind")
	}
	if r.Text == "" && r.AudioRef == "" {
		return errors.New("response needs text or audio")
	}
	return nil
}
