package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/strategix/alexvoice/adapters/llm"
	"github.com/strategix/alexvoice/adapters/memory"
	"github.com/strategix/alexvoice/adapters/mongo"
	"github.com/strategix/alexvoice/adapters/storage"
	"github.com/strategix/alexvoice/adapters/stt"
	"github.com/strategix/alexvoice/adapters/tts"
	"github.com/strategix/alexvoice/domain/repositories"
	"github.com/strategix/alexvoice/internal/api"
	"github.com/strategix/alexvoice/internal/voice"
	"github.com/strategix/alexvoice/internal/websocket"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on process environment")
	}

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Persistence: MongoDB when reachable, in-memory otherwise so the app
	// still runs for local development.
	var repo repositories.AssessmentRepository
	var store repositories.AudioStore
	mongoClient, err := mongo.NewClient(mongo.NewConfigFromEnv(), logger)
	if err != nil {
		logger.Warn("MongoDB unavailable, using in-memory persistence", zap.Error(err))
		repo = memory.NewAssessmentRepository()
		store = memory.NewAudioStore()
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongoClient.Close(ctx)
		}()
		repo = mongo.NewAssessmentRepository(mongoClient.Database)
		gridStore, err := storage.NewGridFSAudioStore(mongoClient.Database, "/api/v1/audio", logger)
		if err != nil {
			logger.Fatal("failed to initialize audio storage", zap.Error(err))
		}
		store = gridStore
	}

	// Completion service
	var model repositories.LargeLanguageModel
	geminiLLM, err := llm.NewGeminiLLM(llm.NewGeminiConfigFromEnv(), logger)
	if err != nil {
		logger.Warn("Gemini unavailable, using canned analysis", zap.Error(err))
		model = llm.NewMockLLM()
	} else {
		model = geminiLLM
	}

	// Speech recognition
	var recognizer repositories.SpeechRecognizer
	google := stt.NewGoogleSpeechRecognizer(logger)
	if google.Supported() {
		recognizer = google
	} else {
		logger.Warn("Google Speech credentials missing, using mock recognizer")
		recognizer = stt.NewMockSpeechRecognizer(logger)
	}

	// Speech synthesis; the voice engine adds the local fallback per client.
	var synth repositories.SpeechSynthesizer
	synthMime := "audio/wav"
	elevenlabs, err := tts.NewElevenLabsSynthesizer(tts.NewElevenLabsConfigFromEnv(), logger)
	if err != nil {
		logger.Warn("ElevenLabs unavailable, using local synthesis only", zap.Error(err))
		synth = voice.NewLocalSynthesizer()
	} else {
		synth = elevenlabs
		synthMime = elevenlabs.MimeType()
	}

	// Initialize WebSocket hub
	hub := websocket.NewHub(repo, store, model, recognizer, synth, synthMime, logger)
	go hub.Run()

	// Background janitor for abandoned assessments
	janitor := websocket.NewJanitor(repo, logger)
	janitor.Start()
	defer janitor.Stop()

	// Initialize API routes
	api.InitRoutes(e, hub, repo, store, logger)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
