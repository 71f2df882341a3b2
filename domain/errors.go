package domain

import (
	"errors"
	"fmt"
)

// Failure taxonomy shared across the voice pipeline. Callers classify with
// errors.Is and decide locally whether a failure aborts the attempt
// (capture/device), degrades silently (transcription, analysis, synthesis) or
// is surfaced for retry (persistence).
var (
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	ErrNotSupported      = errors.New("audio capture not supported")
	ErrNoSpeechDetected  = errors.New("no speech detected")
	ErrAudioCapture      = errors.New("audio capture failed")
	ErrNetwork           = errors.New("network error")
	ErrPersistence       = errors.New("persistence failure")
	ErrSynthesis         = errors.New("speech synthesis failure")
	ErrAnalysis          = errors.New("analysis failure")
)

// RecognitionError wraps a recognizer failure with the provider's raw code so
// unknown codes stay inspectable.
type RecognitionError struct {
	Code string
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("speech recognition failed (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("speech recognition failed (%s)", e.Code)
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}

// NewRecognitionError maps a provider error code onto the shared taxonomy.
// Codes outside the taxonomy are kept as-is under the Unknown category.
func NewRecognitionError(code string, cause error) *RecognitionError {
	var err error
	switch code {
	case "no-speech":
		err = ErrNoSpeechDetected
	case "audio-capture":
		err = ErrAudioCapture
	case "not-allowed", "permission-denied":
		err = ErrPermissionDenied
	case "network":
		err = ErrNetwork
	case "not-supported":
		err = ErrNotSupported
	default:
		err = cause
	}
	return &RecognitionError{Code: code, Err: err}
}

// ErrorCode maps a taxonomy error onto its stable wire identifier, or
// returns "" for errors outside the taxonomy.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, ErrNotSupported):
		return "not_supported"
	case errors.Is(err, ErrNoSpeechDetected):
		return "no_speech"
	case errors.Is(err, ErrAudioCapture):
		return "audio_capture"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrSynthesis):
		return "synthesis"
	case errors.Is(err, ErrAnalysis):
		return "analysis"
	default:
		return ""
	}
}

// Retryable reports whether the user can meaningfully retry after this
// failure. Device and permission problems are retryable once fixed;
// unsupported platforms are not.
func Retryable(err error) bool {
	return !errors.Is(err, ErrNotSupported)
}
