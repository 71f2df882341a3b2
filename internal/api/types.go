package api

import (
	"time"

	"github.com/strategix/alexvoice/domain/entities"
)

// GuestAuthResponse is the payload returned when a guest identity is issued.
type GuestAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

// AssessmentResponse wraps an assessment with its question context.
type AssessmentResponse struct {
	Assessment *entities.Assessment `json:"assessment"`
	Question   entities.Question    `json:"question"`
	Progress   float64              `json:"progress"`
}

// ResponsesResponse lists the stored answers for an assessment.
type ResponsesResponse struct {
	Responses []*entities.Response `json:"responses"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
