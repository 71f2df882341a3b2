package repositories

import (
	"context"
	"time"

	"github.com/strategix/alexvoice/domain/entities"
)

// AssessmentRepository defines data access for assessments and their
// responses.
type AssessmentRepository interface {
	CreateAssessment(ctx context.Context, assessment *entities.Assessment) error
	GetAssessment(ctx context.Context, id string) (*entities.Assessment, error)
	UpdateAssessment(ctx context.Context, assessment *entities.Assessment) error
	// CreateResponse appends a response record. History may be retained;
	// the latest record per question ID is authoritative.
	CreateResponse(ctx context.Context, response *entities.Response) error
	// ListResponses returns all responses for an assessment ordered by
	// creation time ascending.
	ListResponses(ctx context.Context, assessmentID string) ([]*entities.Response, error)
	// ExpireStale abandons in-progress assessments untouched since the
	// cutoff, returning how many were expired.
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
}
