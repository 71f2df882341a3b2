package llm

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/strategix/alexvoice/domain"
	"github.com/strategix/alexvoice/domain/repositories"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.7
	defaultMaxTokens      = 512
	defaultReportTokens   = 2048
	defaultTimeoutSeconds = 20
)

const analysisSystemPrompt = `You are Alex, an AI business strategist conducting a spoken business assessment.
React conversationally to the user's latest answer in two or three sentences:
acknowledge what they said, surface one insight, and encourage them to keep going.
Do not ask the next assessment question; the application controls progression.`

const reportSystemPrompt = `You are Alex, an AI business strategist. Using the full assessment transcript,
write a personalized report with practical AI adoption recommendations and rough ROI estimates.
Structure it with short sections: summary, key challenges, recommendations, next steps.`

// GeminiConfig holds configuration for the Gemini adapter.
type GeminiConfig struct {
	APIKey         string
	Model          string
	Temperature    float32
	MaxTokens      int
	TimeoutSeconds int
}

// NewGeminiConfigFromEnv creates a GeminiConfig from environment variables.
func NewGeminiConfigFromEnv() GeminiConfig {
	config := GeminiConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  os.Getenv("GEMINI_MODEL"),
	}
	if v := os.Getenv("GEMINI_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.TimeoutSeconds = n
		}
	}
	return config
}

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini
// API.
type GeminiLLM struct {
	client         *genai.Client
	logger         *zap.Logger
	model          string
	temperature    float32
	maxTokens      int
	timeoutSeconds int
}

var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// NewGeminiLLM creates a new Gemini LLM instance.
func NewGeminiLLM(config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	return &GeminiLLM{
		client:         client,
		logger:         logger,
		model:          model,
		temperature:    temperature,
		maxTokens:      maxTokens,
		timeoutSeconds: timeoutSeconds,
	}, nil
}

// AnalyzeResponse returns a conversational follow-up to a just-saved answer.
func (g *GeminiLLM) AnalyzeResponse(ctx context.Context, req repositories.AnalysisRequest) (string, error) {
	var b strings.Builder
	if req.ConversationHistory != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(req.ConversationHistory)
		b.WriteString("\n\n")
	}
	b.WriteString("Current question: ")
	b.WriteString(req.CurrentQuestion)
	b.WriteString("\nUser's answer: ")
	b.WriteString(req.UserResponse)

	return g.generate(ctx, analysisSystemPrompt, b.String(), g.maxTokens)
}

// GenerateReport produces the final assessment report from the transcript.
func (g *GeminiLLM) GenerateReport(ctx context.Context, transcript string) (string, error) {
	return g.generate(ctx, reportSystemPrompt, transcript, defaultReportTokens)
}

func (g *GeminiLLM) generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(systemPrompt, genai.RoleUser),
		genai.NewContentFromText(userPrompt, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: int32(maxTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(g.timeoutSeconds)*time.Second)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if ctx.Err() != nil {
			break
		}
		if attempt < 2 {
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAnalysis, err)
	}

	text := response.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty completion", domain.ErrAnalysis)
	}
	return strings.TrimSpace(text), nil
}
