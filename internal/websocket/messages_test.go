package websocket

import (
	"encoding/json"
	"testing"
)

func TestParseMessageHello(t *testing.T) {
	raw := []byte(`{"type":"hello","capture_supported":true,"supported_mime_types":["audio/webm;codecs=opus"],"sample_rate":16000,"language":"en-US"}`)

	parsed, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	msg, ok := parsed.(*HelloMessage)
	if !ok {
		t.Fatalf("expected *HelloMessage, got %T", parsed)
	}
	if !msg.CaptureSupported {
		t.Error("expected capture_supported true")
	}
	if msg.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", msg.SampleRate)
	}
	if len(msg.SupportedMimeTypes) != 1 {
		t.Errorf("expected 1 mime type, got %d", len(msg.SupportedMimeTypes))
	}
}

func TestParseMessageRequiredFields(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"recording_start without question", `{"type":"recording_start"}`},
		{"answer_text without question", `{"type":"answer_text","text":"hi"}`},
		{"follow_up without question", `{"type":"follow_up","text":"hi"}`},
		{"speak without text", `{"type":"speak"}`},
		{"navigate with bad direction", `{"type":"navigate","direction":"sideways"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseMessage([]byte(tc.raw)); err == nil {
				t.Errorf("expected %s to be rejected", tc.raw)
			}
		})
	}
}

func TestParseMessageNavigateDirections(t *testing.T) {
	for _, direction := range []string{NavigateNext, NavigatePrevious, NavigateSkip, NavigateComplete} {
		raw := []byte(`{"type":"navigate","direction":"` + direction + `"}`)
		parsed, err := ParseMessage(raw)
		if err != nil {
			t.Fatalf("parse %s failed: %v", direction, err)
		}
		msg, ok := parsed.(*NavigateMessage)
		if !ok {
			t.Fatalf("expected *NavigateMessage, got %T", parsed)
		}
		if msg.Direction != direction {
			t.Errorf("expected direction %s, got %s", direction, msg.Direction)
		}
	}
}

func TestParseMessageUnknownType(t *testing.T) {
	if _, err := ParseMessage([]byte(`{"type":"telemetry"}`)); err == nil {
		t.Error("expected unknown type to be rejected")
	}
	if _, err := ParseMessage([]byte(`not json`)); err == nil {
		t.Error("expected malformed JSON to be rejected")
	}
}

func TestNewErrorMessageRoundTrip(t *testing.T) {
	msg := NewErrorMessage("save_failed", "could not save")

	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded ErrorMessage
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Type != MessageTypeError {
		t.Errorf("expected type error, got %s", decoded.Type)
	}
	if decoded.Code != "save_failed" {
		t.Errorf("expected code save_failed, got %s", decoded.Code)
	}
	if decoded.Timestamp == "" {
		t.Error("expected a timestamp")
	}
}
