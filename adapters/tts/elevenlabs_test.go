package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestNewElevenLabsSynthesizer(t *testing.T) {
	logger := zaptest.NewLogger(t)

	// Test without API key
	os.Unsetenv("ELEVEN_LABS_API_KEY")
	config := NewElevenLabsConfigFromEnv()
	_, err := NewElevenLabsSynthesizer(config, logger)
	if err == nil {
		t.Error("Expected error when API key is not set")
	}

	// Test with API key
	os.Setenv("ELEVEN_LABS_API_KEY", "test-api-key")
	defer os.Unsetenv("ELEVEN_LABS_API_KEY")

	config = NewElevenLabsConfigFromEnv()
	synth, err := NewElevenLabsSynthesizer(config, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsSynthesizer: %v", err)
	}

	if synth.apiKey != "test-api-key" {
		t.Errorf("Expected API key 'test-api-key', got '%s'", synth.apiKey)
	}

	if synth.modelID != defaultModelID {
		t.Errorf("Expected default model ID '%s', got '%s'", defaultModelID, synth.modelID)
	}

	if synth.MimeType() != "audio/mpeg" {
		t.Errorf("Expected mime type audio/mpeg, got %s", synth.MimeType())
	}
}

func TestValidateElevenLabsConfig(t *testing.T) {
	err := ValidateElevenLabsConfig(ElevenLabsConfig{APIKey: "k", Stability: 1.5})
	if err == nil {
		t.Error("Expected error for out-of-range stability")
	}

	err = ValidateElevenLabsConfig(ElevenLabsConfig{APIKey: "k", Clarity: -0.2})
	if err == nil {
		t.Error("Expected error for out-of-range clarity")
	}

	err = ValidateElevenLabsConfig(ElevenLabsConfig{APIKey: "k", Stability: 0.4, Clarity: 0.8})
	if err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestElevenLabsSynthesizer_Synthesize_EmptyText(t *testing.T) {
	logger := zaptest.NewLogger(t)

	synth, err := NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "test-api-key"}, logger)
	if err != nil {
		t.Fatalf("Failed to create synthesizer: %v", err)
	}

	_, err = synth.Synthesize(context.Background(), "   ", "voice-a", 1.0)
	if err == nil {
		t.Error("Expected error for empty text")
	}
}

func TestElevenLabsSynthesizer_Synthesize(t *testing.T) {
	logger := zaptest.NewLogger(t)

	var gotVoice string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "test-api-key" {
			t.Errorf("Expected api key header, got %q", r.Header.Get("xi-api-key"))
		}
		gotVoice = r.URL.Path
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	synth, err := NewElevenLabsSynthesizer(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
	}, logger)
	if err != nil {
		t.Fatalf("Failed to create synthesizer: %v", err)
	}

	audio, err := synth.Synthesize(context.Background(), "Hello there", "voice-a", 0.95)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Errorf("Expected payload 'mp3-bytes', got %q", string(audio))
	}
	if gotVoice != "/text-to-speech/voice-a" {
		t.Errorf("Expected voice in path, got %q", gotVoice)
	}
}
