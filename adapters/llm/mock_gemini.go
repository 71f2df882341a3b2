package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/strategix/alexvoice/domain/repositories"
)

// MockLLM is a placeholder completion service for development and tests.
type MockLLM struct{}

// NewMockLLM creates a new mock completion service.
func NewMockLLM() repositories.LargeLanguageModel {
	return &MockLLM{}
}

var _ repositories.LargeLanguageModel = (*MockLLM)(nil)

// AnalyzeResponse implements repositories.LargeLanguageModel.
func (m *MockLLM) AnalyzeResponse(ctx context.Context, req repositories.AnalysisRequest) (string, error) {
	if strings.TrimSpace(req.UserResponse) == "" {
		return "Take your time. Whenever you're ready, tell me a bit more.", nil
	}
	return fmt.Sprintf("That's really helpful context. It sounds like %q is central to your business. Let's keep going.",
		firstWords(req.UserResponse, 6)), nil
}

// GenerateReport implements repositories.LargeLanguageModel.
func (m *MockLLM) GenerateReport(ctx context.Context, transcript string) (string, error) {
	return "Assessment report\n\nSummary: based on your answers, several operational tasks are strong automation candidates.\n" +
		"Next steps: start with one high-volume workflow and measure time saved per week.", nil
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
