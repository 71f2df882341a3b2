package repositories

import "context"

// AnalysisRequest carries one just-saved answer to the completion service.
// ConversationHistory is the previously answered question/answer pairs
// formatted in original question order.
type AnalysisRequest struct {
	CurrentQuestion     string `json:"current_question"`
	UserResponse        string `json:"user_response"`
	ConversationHistory string `json:"conversation_history,omitempty"`
}

// LargeLanguageModel abstracts the hosted completion service. It must
// tolerate and gracefully degrade on timeout or error; a missing follow-up
// degrades the experience but never blocks navigation.
type LargeLanguageModel interface {
	// AnalyzeResponse returns a conversational follow-up to a saved answer.
	AnalyzeResponse(ctx context.Context, req AnalysisRequest) (string, error)
	// GenerateReport produces the final assessment report from the full
	// question/answer transcript.
	GenerateReport(ctx context.Context, transcript string) (string, error)
}
