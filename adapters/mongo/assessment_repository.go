package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/strategix/alexvoice/domain"
	"github.com/strategix/alexvoice/domain/entities"
	"github.com/strategix/alexvoice/domain/repositories"
)

// AssessmentRepository persists assessments and responses in MongoDB.
// Responses are append-only; readers treat the latest record per question ID
// as authoritative.
type AssessmentRepository struct {
	assessments *mongo.Collection
	responses   *mongo.Collection
}

// NewAssessmentRepository creates a new MongoDB assessment repository.
func NewAssessmentRepository(db *mongo.Database) repositories.AssessmentRepository {
	return &AssessmentRepository{
		assessments: db.Collection("assessments"),
		responses:   db.Collection("assessment_responses"),
	}
}

var _ repositories.AssessmentRepository = (*AssessmentRepository)(nil)

// CreateAssessment implements repositories.AssessmentRepository.
func (r *AssessmentRepository) CreateAssessment(ctx context.Context, assessment *entities.Assessment) error {
	if assessment == nil {
		return errors.New("assessment cannot be nil")
	}
	if err := assessment.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	now := time.Now()
	if assessment.CreatedAt.IsZero() {
		assessment.CreatedAt = now
	}
	if assessment.UpdatedAt.IsZero() {
		assessment.UpdatedAt = now
	}

	result, err := r.assessments.InsertOne(ctx, assessment)
	if err != nil {
		return fmt.Errorf("%w: failed to create assessment: %v", domain.ErrPersistence, err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		assessment.ID = oid
	}
	return nil
}

// GetAssessment implements repositories.AssessmentRepository.
func (r *AssessmentRepository) GetAssessment(ctx context.Context, id string) (*entities.Assessment, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid assessment ID format: %w", err)
	}

	var assessment entities.Assessment
	err = r.assessments.FindOne(ctx, bson.M{"_id": objectID}).Decode(&assessment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // Not found, no error
		}
		return nil, fmt.Errorf("%w: failed to get assessment %s: %v", domain.ErrPersistence, id, err)
	}
	return &assessment, nil
}

// UpdateAssessment implements repositories.AssessmentRepository.
func (r *AssessmentRepository) UpdateAssessment(ctx context.Context, assessment *entities.Assessment) error {
	if assessment == nil {
		return errors.New("assessment cannot be nil")
	}
	if assessment.ID.IsZero() {
		return errors.New("assessment ID cannot be empty")
	}

	assessment.UpdatedAt = time.Now()

	update := bson.M{
		"$set": bson.M{
			"status":                 assessment.Status,
			"current_question_index": assessment.CurrentQuestionIndex,
			"report":                 assessment.Report,
			"updated_at":             assessment.UpdatedAt,
			"completed_at":           assessment.CompletedAt,
		},
	}

	result, err := r.assessments.UpdateOne(ctx, bson.M{"_id": assessment.ID}, update)
	if err != nil {
		return fmt.Errorf("%w: failed to update assessment: %v", domain.ErrPersistence, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: assessment %s not found", domain.ErrPersistence, assessment.ID.Hex())
	}
	return nil
}

// CreateResponse implements repositories.AssessmentRepository.
func (r *AssessmentRepository) CreateResponse(ctx context.Context, response *entities.Response) error {
	if response == nil {
		return errors.New("response cannot be nil")
	}
	if err := response.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	if response.CreatedAt.IsZero() {
		response.CreatedAt = time.Now()
	}

	if _, err := r.responses.InsertOne(ctx, response); err != nil {
		return fmt.Errorf("%w: failed to create response: %v", domain.ErrPersistence, err)
	}
	return nil
}

// ListResponses implements repositories.AssessmentRepository. Results come
// back ordered by creation time ascending.
func (r *AssessmentRepository) ListResponses(ctx context.Context, assessmentID string) ([]*entities.Response, error) {
	filter := bson.M{"assessment_id": assessmentID}
	opts := options.Find().SetSort(bson.M{"created_at": 1})

	cursor, err := r.responses.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list responses: %v", domain.ErrPersistence, err)
	}
	defer cursor.Close(ctx)

	var responses []*entities.Response
	if err := cursor.All(ctx, &responses); err != nil {
		return nil, fmt.Errorf("%w: failed to decode responses: %v", domain.ErrPersistence, err)
	}
	return responses, nil
}

// ExpireStale implements repositories.AssessmentRepository.
func (r *AssessmentRepository) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"status":     entities.AssessmentStatusInProgress,
		"updated_at": bson.M{"$lt": cutoff},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     entities.AssessmentStatusAbandoned,
			"updated_at": time.Now(),
		},
	}

	result, err := r.assessments.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to expire stale assessments: %v", domain.ErrPersistence, err)
	}
	return result.ModifiedCount, nil
}
