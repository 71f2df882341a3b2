package entities

import (
	"testing"
	"time"
)

func TestAssessmentCreation(t *testing.T) {
	userID := "user-123"
	assessment := NewAssessment(userID)

	if assessment.UserID != userID {
		t.Errorf("Expected user ID %s, got %s", userID, assessment.UserID)
	}
	if assessment.Status != AssessmentStatusInProgress {
		t.Errorf("Expected status %s, got %s", AssessmentStatusInProgress, assessment.Status)
	}
	if assessment.CurrentQuestionIndex != 0 {
		t.Errorf("Expected question index 0, got %d", assessment.CurrentQuestionIndex)
	}
	if assessment.ID.IsZero() {
		t.Error("Expected a generated ID")
	}
	if err := assessment.Validate(); err != nil {
		t.Errorf("Expected a fresh assessment to validate, got %v", err)
	}
}

func TestAssessmentNavigationBounds(t *testing.T) {
	assessment := NewAssessment("user-123")

	if assessment.CanGoPrevious() {
		t.Error("Expected CanGoPrevious false at index 0")
	}
	if !assessment.CanGoNext() {
		t.Error("Expected CanGoNext true at index 0")
	}

	if err := assessment.SetQuestionIndex(QuestionCount() - 1); err != nil {
		t.Fatalf("SetQuestionIndex failed: %v", err)
	}
	if assessment.CanGoNext() {
		t.Error("Expected CanGoNext false at the last question")
	}
	if !assessment.CanGoPrevious() {
		t.Error("Expected CanGoPrevious true at the last question")
	}

	if err := assessment.SetQuestionIndex(QuestionCount()); err == nil {
		t.Error("Expected out-of-range index to be rejected")
	}
	if err := assessment.SetQuestionIndex(-1); err == nil {
		t.Error("Expected negative index to be rejected")
	}
}

func TestAssessmentProgress(t *testing.T) {
	assessment := NewAssessment("user-123")

	if got := assessment.Progress(); got != 1.0/float64(QuestionCount()) {
		t.Errorf("Expected progress 1/%d, got %f", QuestionCount(), got)
	}

	assessment.SetQuestionIndex(QuestionCount() - 1)
	if got := assessment.Progress(); got != 1.0 {
		t.Errorf("Expected progress 1.0 at the last question, got %f", got)
	}
}

func TestAssessmentCompleteIsOneWay(t *testing.T) {
	assessment := NewAssessment("user-123")

	if err := assessment.Complete(); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if !assessment.IsCompleted() {
		t.Error("Expected IsCompleted true after Complete")
	}
	if assessment.CompletedAt == nil {
		t.Error("Expected a completion timestamp")
	}
	if err := assessment.Complete(); err == nil {
		t.Error("Expected a second Complete to fail")
	}
}

func TestQuestionCatalog(t *testing.T) {
	questions := Questions()
	if len(questions) != QuestionCount() {
		t.Fatalf("Expected %d questions, got %d", QuestionCount(), len(questions))
	}

	seen := make(map[string]bool)
	for _, q := range questions {
		if q.ID == "" || q.Text == "" {
			t.Errorf("Question %+v missing ID or text", q)
		}
		if seen[q.ID] {
			t.Errorf("Duplicate question ID %s", q.ID)
		}
		seen[q.ID] = true

		found, ok := QuestionByID(q.ID)
		if !ok || found.ID != q.ID {
			t.Errorf("QuestionByID failed for %s", q.ID)
		}
	}

	if _, ok := QuestionByID("nonexistent"); ok {
		t.Error("Expected lookup of unknown ID to fail")
	}
}

func TestResponseValidate(t *testing.T) {
	response := &Response{
		ID:           "resp-1",
		AssessmentID: "assessment-1",
		QuestionID:   "business-context",
		Text:         "We sell software.",
		Kind:         ResponseKindText,
		CreatedAt:    time.Now(),
	}
	if err := response.Validate(); err != nil {
		t.Errorf("Expected a valid response, got %v", err)
	}

	missing := &Response{AssessmentID: "assessment-1", QuestionID: "business-context", Kind: ResponseKindText}
	if err := missing.Validate(); err == nil {
		t.Error("Expected a response with no text or audio to be rejected")
	}

	badQuestion := &Response{AssessmentID: "assessment-1", QuestionID: "made-up", Text: "x", Kind: ResponseKindText}
	if err := badQuestion.Validate(); err == nil {
		t.Error("Expected an unknown question ID to be rejected")
	}
}
