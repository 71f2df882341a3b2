package repositories

import "context"

// SpeechSynthesizer abstracts a hosted text-to-speech service. Errors must
// trigger the caller's local-synthesis fallback, never an unhandled failure.
type SpeechSynthesizer interface {
	// Synthesize renders text as a raw audio payload for the given voice
	// identity and speaking speed.
	Synthesize(ctx context.Context, text string, voiceID string, speed float64) ([]byte, error)
}
