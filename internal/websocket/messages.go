package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType defines the type of WebSocket control message. Audio travels
// as binary frames and never appears here.
type MessageType string

// Client-to-server message types.
const (
	MessageTypeHello          MessageType = "hello"
	MessageTypeRecordingStart MessageType = "recording_start"
	MessageTypeRecordingStop  MessageType = "recording_stop"
	MessageTypeAnswerText     MessageType = "answer_text"
	MessageTypeNavigate       MessageType = "navigate"
	MessageTypeFollowUp       MessageType = "follow_up"
	MessageTypeSpeak          MessageType = "speak"
	MessageTypeSpeakStop      MessageType = "speak_stop"
	MessageTypePing           MessageType = "ping"
)

// Server-to-client message types.
const (
	MessageTypeReady          MessageType = "ready"
	MessageTypeRecordingState MessageType = "recording_state"
	MessageTypeLevel          MessageType = "level"
	MessageTypeTranscript     MessageType = "transcript"
	MessageTypeRecordingError MessageType = "recording_error"
	MessageTypeAnswerSaved    MessageType = "answer_saved"
	MessageTypeSaveStatus     MessageType = "save_status"
	MessageTypeQuestion       MessageType = "question"
	MessageTypeFollowUpText   MessageType = "follow_up_text"
	MessageTypeSpeakStart     MessageType = "speak_start"
	MessageTypeSpeakEnd       MessageType = "speak_end"
	MessageTypeError          MessageType = "error"
	MessageTypePong           MessageType = "pong"
)

// BaseMessage is the common envelope for all control messages.
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// HelloMessage announces the client's capture capabilities. Sent once after
// connect, before any recording message.
type HelloMessage struct {
	BaseMessage
	AssessmentID       string   `json:"assessment_id,omitempty"`
	CaptureSupported   bool     `json:"capture_supported"`
	SupportedMimeTypes []string `json:"supported_mime_types,omitempty"`
	SampleRate         int      `json:"sample_rate,omitempty"`
	Encoding           string   `json:"encoding,omitempty"`
	Language           string   `json:"language,omitempty"`
}

// RecordingStartMessage begins a recording attempt for a question.
type RecordingStartMessage struct {
	BaseMessage
	QuestionID string `json:"question_id"`
}

// RecordingStopMessage finalizes the in-flight recording attempt.
type RecordingStopMessage struct {
	BaseMessage
}

// AnswerTextMessage saves a typed (or edited) answer for a question.
type AnswerTextMessage struct {
	BaseMessage
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
}

// Navigation directions.
const (
	NavigateNext     = "next"
	NavigatePrevious = "previous"
	NavigateSkip     = "skip"
	NavigateComplete = "complete"
)

// NavigateMessage moves through the question sequence.
type NavigateMessage struct {
	BaseMessage
	Direction string `json:"direction"`
}

// FollowUpMessage requests a conversational follow-up to a saved answer.
type FollowUpMessage struct {
	BaseMessage
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
}

// SpeakMessage asks the assistant voice to speak a phrase.
type SpeakMessage struct {
	BaseMessage
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

// TranscriptMessage carries an interim or final recognition result.
type TranscriptMessage struct {
	BaseMessage
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// LevelMessage carries one normalized microphone amplitude sample.
type LevelMessage struct {
	BaseMessage
	Value float64 `json:"value"`
}

// RecordingStateMessage reports a session lifecycle transition.
type RecordingStateMessage struct {
	BaseMessage
	State   string `json:"state"`
	Elapsed int    `json:"elapsed_seconds,omitempty"`
}

// ErrorMessage is a generic error response.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// ParseMessage decodes and validates an incoming control message, returning
// one of the concrete message structs.
func ParseMessage(raw []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON frame: %w", err)
	}

	switch base.Type {
	case MessageTypeHello:
		var msg HelloMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("invalid hello message: %w", err)
		}
		return &msg, nil

	case MessageTypeRecordingStart:
		var msg RecordingStartMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("invalid recording_start message: %w", err)
		}
		if msg.QuestionID == "" {
			return nil, fmt.Errorf("recording_start requires question_id")
		}
		return &msg, nil

	case MessageTypeRecordingStop:
		var msg RecordingStopMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("invalid recording_stop message: %w", err)
		}
		return &msg, nil

	case MessageTypeAnswerText:
		var msg AnswerTextMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("invalid answer_text message: %w", err)
		}
		if msg.QuestionID == "" {
			return nil, fmt.Errorf("answer_text requires question_id")
		}
		return &msg, nil

	case MessageTypeNavigate:
		var msg NavigateMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("invalid navigate message: %w", err)
		}
		switch msg.Direction {
		case NavigateNext, NavigatePrevious, NavigateSkip, NavigateComplete:
		default:
			return nil, fmt.Errorf("navigate direction must be one of: next, previous, skip, complete")
		}
		return &msg, nil

	case MessageTypeFollowUp:
		var msg FollowUpMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("invalid follow_up message: %w", err)
		}
		if msg.QuestionID == "" {
			return nil, fmt.Errorf("follow_up requires question_id")
		}
		return &msg, nil

	case MessageTypeSpeak:
		var msg SpeakMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("invalid speak message: %w", err)
		}
		if msg.Text == "" {
			return nil, fmt.Errorf("speak requires text")
		}
		return &msg, nil

	case MessageTypeSpeakStop:
		var msg BaseMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("invalid speak_stop message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg BaseMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// Envelope builds a server-to-client message with the current timestamp.
func Envelope(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().Format(time.RFC3339)}
}

// NewErrorMessage creates a standardized error message.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: Envelope(MessageTypeError),
		Code:        code,
		Message:     message,
	}
}
