package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/strategix/alexvoice/domain/entities"
	"github.com/strategix/alexvoice/domain/repositories"
	"github.com/strategix/alexvoice/internal/auth"
	"github.com/strategix/alexvoice/internal/websocket"
)

// InitRoutes initializes all API routes.
func InitRoutes(e *echo.Echo, hub *websocket.Hub, repo repositories.AssessmentRepository, store repositories.AudioStore, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "alexvoice-server",
		})
	})

	v1 := e.Group("/api/v1")

	// The app runs without signup: a guest identity is minted on first
	// visit and carried in the access token from then on.
	v1.POST("/auth/guest", func(c echo.Context) error {
		return guestAuth(c, logger)
	})

	v1.POST("/assessments", func(c echo.Context) error {
		return createAssessment(c, repo, logger)
	})
	v1.GET("/assessments/:id", func(c echo.Context) error {
		return getAssessment(c, repo, logger)
	})
	v1.GET("/assessments/:id/responses", func(c echo.Context) error {
		return listResponses(c, repo, logger)
	})
	v1.GET("/audio/:name", func(c echo.Context) error {
		return getAudio(c, store, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, logger)
	})
}

func guestAuth(c echo.Context, logger *zap.Logger) error {
	userID := "guest-" + uuid.NewString()
	token, err := auth.GenerateUserToken(userID)
	if err != nil {
		logger.Error("failed to generate guest token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate access token",
		})
	}

	return c.JSON(http.StatusOK, GuestAuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
		UserID:    userID,
	})
}

// authenticate resolves the requesting user from the Authorization header.
func authenticate(c echo.Context) (*auth.Claims, error) {
	header := c.Request().Header.Get("Authorization")
	var token string
	if len(header) > 7 && header[:7] == "Bearer " {
		token = header[7:]
	}
	if token == "" {
		// Browsers cannot set headers on WebSocket upgrades, so the token
		// may arrive as a query parameter instead.
		token = c.QueryParam("token")
	}
	if token == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "access token required")
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired access token")
	}
	return claims, nil
}

func createAssessment(c echo.Context, repo repositories.AssessmentRepository, logger *zap.Logger) error {
	claims, err := authenticate(c)
	if err != nil {
		return err
	}

	assessment := entities.NewAssessment(claims.UserID)
	if err := repo.CreateAssessment(c.Request().Context(), assessment); err != nil {
		logger.Error("failed to create assessment", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to create assessment",
		})
	}

	return c.JSON(http.StatusCreated, AssessmentResponse{
		Assessment: assessment,
		Question:   assessment.CurrentQuestion(),
		Progress:   assessment.Progress(),
	})
}

func getAssessment(c echo.Context, repo repositories.AssessmentRepository, logger *zap.Logger) error {
	claims, err := authenticate(c)
	if err != nil {
		return err
	}

	assessment, err := repo.GetAssessment(c.Request().Context(), c.Param("id"))
	if err != nil {
		logger.Error("failed to load assessment", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "load_failed",
			Message: "Failed to load assessment",
		})
	}
	if assessment == nil || assessment.UserID != claims.UserID {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Assessment not found",
		})
	}

	return c.JSON(http.StatusOK, AssessmentResponse{
		Assessment: assessment,
		Question:   assessment.CurrentQuestion(),
		Progress:   assessment.Progress(),
	})
}

func listResponses(c echo.Context, repo repositories.AssessmentRepository, logger *zap.Logger) error {
	claims, err := authenticate(c)
	if err != nil {
		return err
	}

	assessment, err := repo.GetAssessment(c.Request().Context(), c.Param("id"))
	if err != nil {
		logger.Error("failed to load assessment", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "load_failed",
			Message: "Failed to load assessment",
		})
	}
	if assessment == nil || assessment.UserID != claims.UserID {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Assessment not found",
		})
	}

	responses, err := repo.ListResponses(c.Request().Context(), c.Param("id"))
	if err != nil {
		logger.Error("failed to list responses", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list responses",
		})
	}

	return c.JSON(http.StatusOK, ResponsesResponse{Responses: responses})
}

func getAudio(c echo.Context, store repositories.AudioStore, logger *zap.Logger) error {
	if _, err := authenticate(c); err != nil {
		return err
	}

	audio, err := store.Get(c.Request().Context(), c.Param("name"))
	if err != nil {
		logger.Warn("audio blob not found", zap.String("name", c.Param("name")), zap.Error(err))
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Audio not found",
		})
	}

	return c.Blob(http.StatusOK, audio.MimeType, audio.Data)
}

// websocketWithAuth handles WebSocket connections with JWT authentication.
func websocketWithAuth(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	claims, err := authenticate(c)
	if err != nil {
		logger.Warn("websocket connection rejected", zap.Error(err))
		return err
	}

	logger.Info("websocket connection authenticated", zap.String("userID", claims.UserID))
	return websocket.HandleWebSocket(hub, c, claims.UserID, logger)
}
