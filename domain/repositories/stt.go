package repositories

import "context"

// TranscriptEvent is one recognizer emission. Interim events (IsFinal=false)
// replace the previously displayed interim text for the in-progress
// utterance; final events are the caller's signal to commit text into the
// accumulated response. Per utterance: zero or more interim events, then zero
// or one final event.
type TranscriptEvent struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// AudioConfig represents audio configuration for speech recognition.
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// SpeechRecognizer abstracts a best-effort continuous speech recognition
// capability. Absence or failure of recognition must never prevent raw audio
// capture from succeeding; callers treat it as an optional enhancement.
type SpeechRecognizer interface {
	// Supported reports whether continuous recognition is available at all.
	// False routes the caller to a text-only fallback path.
	Supported() bool
	// StartStream opens a continuous recognition stream.
	StartStream(ctx context.Context, config AudioConfig) (RecognitionStream, error)
}

// RecognitionStream is one live recognition session.
type RecognitionStream interface {
	// Feed pushes a captured audio chunk into the recognizer.
	Feed(data []byte) error
	// Events delivers interim and final transcript events in time order.
	// The channel is closed when the stream ends.
	Events() <-chan TranscriptEvent
	// Stop ends listening, allowing an utterance already in progress to
	// finalize first. It returns the accumulated final transcript.
	Stop() (string, error)
	// Abort ends listening immediately, discarding any in-flight partial
	// result.
	Abort()
}
