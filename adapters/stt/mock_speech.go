package stt

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/strategix/alexvoice/domain"
	"github.com/strategix/alexvoice/domain/repositories"
)

// MockSpeechRecognizer is a placeholder recognizer for development without
// hosted credentials. It derives a canned transcript from cumulative audio
// size, emitting an interim event per fed chunk and a final event on Stop.
type MockSpeechRecognizer struct {
	logger *zap.Logger
}

// NewMockSpeechRecognizer creates a new mock recognizer.
func NewMockSpeechRecognizer(logger *zap.Logger) repositories.SpeechRecognizer {
	return &MockSpeechRecognizer{logger: logger}
}

var _ repositories.SpeechRecognizer = (*MockSpeechRecognizer)(nil)

func (m *MockSpeechRecognizer) Supported() bool {
	return true
}

// StartStream creates a new mock recognition stream.
func (m *MockSpeechRecognizer) StartStream(ctx context.Context, config repositories.AudioConfig) (repositories.RecognitionStream, error) {
	m.logger.Info("starting mock recognition stream",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &mockRecognitionStream{
		logger: m.logger,
		events: make(chan repositories.TranscriptEvent, 16),
	}, nil
}

type mockRecognitionStream struct {
	logger *zap.Logger
	events chan repositories.TranscriptEvent

	mu       sync.Mutex
	received int
	done     bool
}

func (m *mockRecognitionStream) Feed(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done || len(data) == 0 {
		return nil
	}
	m.received += len(data)

	// Interim text grows with the audio, mimicking a revisable in-progress
	// utterance.
	interim := m.transcriptLocked()
	select {
	case m.events <- repositories.TranscriptEvent{Text: interim, IsFinal: false}:
	default:
	}
	return nil
}

func (m *mockRecognitionStream) Events() <-chan repositories.TranscriptEvent {
	return m.events
}

func (m *mockRecognitionStream) Stop() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return "", nil
	}
	m.done = true

	if m.received == 0 {
		close(m.events)
		return "", domain.ErrNoSpeechDetected
	}

	final := m.transcriptLocked()
	m.events <- repositories.TranscriptEvent{Text: final, IsFinal: true}
	close(m.events)
	return final, nil
}

func (m *mockRecognitionStream) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return
	}
	m.done = true
	close(m.events)
}

func (m *mockRecognitionStream) transcriptLocked() string {
	words := []string{
		"We", "run", "a", "small", "online", "retail", "business",
		"selling", "handmade", "goods", "to", "customers", "worldwide",
	}
	n := m.received/1000 + 1
	if n > len(words) {
		n = len(words)
	}
	return strings.Join(words[:n], " ")
}
