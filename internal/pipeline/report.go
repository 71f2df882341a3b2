package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/strategix/alexvoice/domain/entities"
	"github.com/strategix/alexvoice/domain/repositories"
)

const reportTimeout = 2 * time.Minute

// ReportState is the shared state threaded through the report pipeline.
type ReportState struct {
	Assessment *entities.Assessment
	Responses  []*entities.Response
	Transcript string
	Report     string
}

// ReportGenerator assembles the final assessment report once an assessment
// completes: collect the answers, generate the report text, persist it on
// the assessment. A failed step compensates completed steps in reverse; the
// assessment stays completed either way, only the report is best-effort.
type ReportGenerator struct {
	runner *Runner[ReportState]
	logger *zap.Logger
}

// NewReportGenerator wires the report pipeline over the given collaborators.
func NewReportGenerator(repo repositories.AssessmentRepository, llm repositories.LargeLanguageModel, logger *zap.Logger) *ReportGenerator {
	runner := NewRunner[ReportState]("assessment-report", reportTimeout, logger,
		&collectResponsesStep{repo: repo},
		&generateReportStep{llm: llm},
		&persistReportStep{repo: repo},
	)
	return &ReportGenerator{runner: runner, logger: logger}
}

// Generate runs the pipeline for a completed assessment.
func (g *ReportGenerator) Generate(ctx context.Context, assessment *entities.Assessment) error {
	state := &ReportState{Assessment: assessment}
	return g.runner.Execute(ctx, state)
}

type collectResponsesStep struct {
	repo repositories.AssessmentRepository
}

func (s *collectResponsesStep) Name() string { return "collect_responses" }

// Run loads the answers and flattens them into a question/answer transcript,
// latest response per question winning, in original question order.
func (s *collectResponsesStep) Run(ctx context.Context, state *ReportState) error {
	responses, err := s.repo.ListResponses(ctx, state.Assessment.ID.Hex())
	if err != nil {
		return fmt.Errorf("listing responses: %w", err)
	}
	if len(responses) == 0 {
		return fmt.Errorf("assessment %s has no responses", state.Assessment.ID.Hex())
	}
	state.Responses = responses

	latest := make(map[string]*entities.Response, len(responses))
	for _, response := range responses {
		latest[response.QuestionID] = response
	}

	var b strings.Builder
	for _, question := range entities.Questions() {
		response, ok := latest[question.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", question.Text, response.Text)
	}
	state.Transcript = strings.TrimSpace(b.String())
	return nil
}

func (s *collectResponsesStep) Compensate(ctx context.Context, state *ReportState) error {
	state.Responses = nil
	state.Transcript = ""
	return nil
}

type generateReportStep struct {
	llm repositories.LargeLanguageModel
}

func (s *generateReportStep) Name() string { return "generate_report" }

func (s *generateReportStep) Run(ctx context.Context, state *ReportState) error {
	report, err := s.llm.GenerateReport(ctx, state.Transcript)
	if err != nil {
		return fmt.Errorf("generating report: %w", err)
	}
	if strings.TrimSpace(report) == "" {
		return fmt.Errorf("completion service returned an empty report")
	}
	state.Report = report
	return nil
}

func (s *generateReportStep) Compensate(ctx context.Context, state *ReportState) error {
	state.Report = ""
	return nil
}

type persistReportStep struct {
	repo repositories.AssessmentRepository
}

func (s *persistReportStep) Name() string { return "persist_report" }

func (s *persistReportStep) Run(ctx context.Context, state *ReportState) error {
	state.Assessment.Report = state.Report
	state.Assessment.UpdatedAt = time.Now()
	if err := s.repo.UpdateAssessment(ctx, state.Assessment); err != nil {
		return fmt.Errorf("persisting report: %w", err)
	}
	return nil
}

// Compensate clears the report field in storage so a retried pipeline never
// sees a half-written report.
func (s *persistReportStep) Compensate(ctx context.Context, state *ReportState) error {
	state.Assessment.Report = ""
	return s.repo.UpdateAssessment(ctx, state.Assessment)
}
