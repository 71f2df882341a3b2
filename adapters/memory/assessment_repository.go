package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/strategix/alexvoice/domain"
	"github.com/strategix/alexvoice/domain/entities"
	"github.com/strategix/alexvoice/domain/repositories"
)

// AssessmentRepository is an in-memory implementation for development and
// tests. Safe for concurrent use.
type AssessmentRepository struct {
	mu          sync.RWMutex
	assessments map[string]*entities.Assessment
	responses   map[string][]*entities.Response
}

// NewAssessmentRepository creates an empty in-memory repository.
func NewAssessmentRepository() *AssessmentRepository {
	return &AssessmentRepository{
		assessments: make(map[string]*entities.Assessment),
		responses:   make(map[string][]*entities.Response),
	}
}

var _ repositories.AssessmentRepository = (*AssessmentRepository)(nil)

func (r *AssessmentRepository) CreateAssessment(ctx context.Context, assessment *entities.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if assessment.ID.IsZero() {
		assessment.ID = primitive.NewObjectID()
	}
	stored := *assessment
	r.assessments[assessment.ID.Hex()] = &stored
	return nil
}

func (r *AssessmentRepository) GetAssessment(ctx context.Context, id string) (*entities.Assessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.assessments[id]
	if !ok {
		return nil, nil
	}
	copied := *stored
	return &copied, nil
}

func (r *AssessmentRepository) UpdateAssessment(ctx context.Context, assessment *entities.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assessments[assessment.ID.Hex()]; !ok {
		return fmt.Errorf("%w: assessment %s not found", domain.ErrPersistence, assessment.ID.Hex())
	}
	stored := *assessment
	r.assessments[assessment.ID.Hex()] = &stored
	return nil
}

func (r *AssessmentRepository) CreateResponse(ctx context.Context, response *entities.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *response
	r.responses[response.AssessmentID] = append(r.responses[response.AssessmentID], &stored)
	return nil
}

func (r *AssessmentRepository) ListResponses(ctx context.Context, assessmentID string) ([]*entities.Response, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.responses[assessmentID]
	out := make([]*entities.Response, len(stored))
	for i, response := range stored {
		copied := *response
		out[i] = &copied
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *AssessmentRepository) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired int64
	for _, assessment := range r.assessments {
		if assessment.Status == entities.AssessmentStatusInProgress && assessment.UpdatedAt.Before(cutoff) {
			assessment.Status = entities.AssessmentStatusAbandoned
			assessment.UpdatedAt = time.Now()
			expired++
		}
	}
	return expired, nil
}
