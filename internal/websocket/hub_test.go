package websocket

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/strategix/alexvoice/adapters/llm"
	"github.com/strategix/alexvoice/adapters/memory"
	"github.com/strategix/alexvoice/adapters/stt"
	"github.com/strategix/alexvoice/domain/entities"
	"github.com/strategix/alexvoice/internal/recording"
	"github.com/strategix/alexvoice/internal/voice"
)

func setupTestServer(t *testing.T) (*httptest.Server, *memory.AssessmentRepository, *Hub) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	repo := memory.NewAssessmentRepository()
	store := memory.NewAudioStore()

	hub := NewHub(repo, store, llm.NewMockLLM(), stt.NewMockSpeechRecognizer(logger), voice.NewLocalSynthesizer(), "audio/wav", logger)
	go hub.Run()

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocket(hub, c, "user-1", logger)
	})

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return server, repo, hub
}

func (h *Hub) testClient(userID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[userID]
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendMessage(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

// readUntil skips frames until a control message of the wanted type arrives.
// The decoded JSON object is returned as a generic map.
func readUntil(t *testing.T, conn *websocket.Conn, want MessageType) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	conn.SetReadDeadline(deadline)
	for {
		frameType, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed waiting for %s: %v", want, err)
		}
		if frameType != websocket.TextMessage {
			continue
		}
		var decoded map[string]interface{}
		if err := json.Unmarshal(payload, &decoded); err != nil {
			t.Fatalf("invalid frame %q: %v", payload, err)
		}
		if decoded["type"] == string(want) {
			return decoded
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func sayHello(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	sendMessage(t, conn, HelloMessage{
		BaseMessage:        BaseMessage{Type: MessageTypeHello},
		CaptureSupported:   true,
		SupportedMimeTypes: []string{"audio/webm;codecs=opus"},
		SampleRate:         16000,
		Encoding:           "LINEAR16",
		Language:           "en-US",
	})
	return readUntil(t, conn, MessageTypeReady)
}

func TestHubHelloStartsAssessment(t *testing.T) {
	server, _, _ := setupTestServer(t)
	conn := dial(t, server)

	ready := sayHello(t, conn)
	assessment, ok := ready["assessment"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected an assessment in the ready frame, got %v", ready)
	}
	if assessment["status"] != "in_progress" {
		t.Errorf("expected in_progress status, got %v", assessment["status"])
	}
	if ready["mime_type"] != "audio/webm;codecs=opus" {
		t.Errorf("expected the negotiated mime type, got %v", ready["mime_type"])
	}
}

func TestHubAnswerTextAndNavigate(t *testing.T) {
	server, repo, _ := setupTestServer(t)
	conn := dial(t, server)

	ready := sayHello(t, conn)
	assessmentID := ready["assessment"].(map[string]interface{})["id"].(string)

	sendMessage(t, conn, AnswerTextMessage{
		BaseMessage: BaseMessage{Type: MessageTypeAnswerText},
		QuestionID:  "business-context",
		Text:        "We run a bakery chain.",
	})
	saved := readUntil(t, conn, MessageTypeAnswerSaved)
	response := saved["response"].(map[string]interface{})
	if response["kind"] != "text" {
		t.Errorf("expected a text response, got %v", response["kind"])
	}

	sendMessage(t, conn, NavigateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeNavigate},
		Direction:   NavigateNext,
	})
	question := readUntil(t, conn, MessageTypeQuestion)
	if question["index"].(float64) != 1 {
		t.Errorf("expected question index 1, got %v", question["index"])
	}

	responses, err := repo.ListResponses(context.Background(), assessmentID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(responses) != 1 {
		t.Fatalf("expected 1 stored response, got %d", len(responses))
	}
}

func TestHubRecordingFlowSavesVoiceAnswer(t *testing.T) {
	server, _, _ := setupTestServer(t)
	conn := dial(t, server)
	sayHello(t, conn)

	sendMessage(t, conn, RecordingStartMessage{
		BaseMessage: BaseMessage{Type: MessageTypeRecordingStart},
		QuestionID:  "business-context",
	})
	waitForRecordingState(t, conn, string(recording.StateActive))

	chunk := make([]byte, 3200)
	for i := 0; i < len(chunk); i += 2 {
		binary.LittleEndian.PutUint16(chunk[i:], 4000)
	}
	for i := 0; i < 3; i++ {
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			t.Fatalf("binary write failed: %v", err)
		}
	}
	time.Sleep(100 * time.Millisecond)

	sendMessage(t, conn, RecordingStopMessage{BaseMessage: BaseMessage{Type: MessageTypeRecordingStop}})

	saved := readUntil(t, conn, MessageTypeAnswerSaved)
	response := saved["response"].(map[string]interface{})
	if response["kind"] != "voice" {
		t.Errorf("expected a voice response, got %v", response["kind"])
	}
	if response["audio_ref"] == nil || response["audio_ref"] == "" {
		t.Error("expected an audio reference on the voice response")
	}
	if response["text"] == nil || response["text"] == "" {
		t.Error("expected the transcript text on the voice response")
	}
}

func TestHubRejectsSecondRecording(t *testing.T) {
	server, _, _ := setupTestServer(t)
	conn := dial(t, server)
	sayHello(t, conn)

	sendMessage(t, conn, RecordingStartMessage{
		BaseMessage: BaseMessage{Type: MessageTypeRecordingStart},
		QuestionID:  "business-context",
	})
	waitForRecordingState(t, conn, string(recording.StateActive))

	sendMessage(t, conn, RecordingStartMessage{
		BaseMessage: BaseMessage{Type: MessageTypeRecordingStart},
		QuestionID:  "business-context",
	})
	failure := readUntil(t, conn, MessageTypeError)
	if failure["error_code"] != "recording_busy" {
		t.Errorf("expected recording_busy, got %v", failure["error_code"])
	}
}

func TestHubSpeakStreamsAudio(t *testing.T) {
	server, _, _ := setupTestServer(t)
	conn := dial(t, server)
	sayHello(t, conn)

	sendMessage(t, conn, SpeakMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSpeak},
		Text:        "Hello there",
	})
	readUntil(t, conn, MessageTypeSpeakStart)

	sawAudio := false
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		frameType, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if frameType == websocket.BinaryMessage {
			sawAudio = true
			continue
		}
		var decoded map[string]interface{}
		if err := json.Unmarshal(payload, &decoded); err != nil {
			continue
		}
		if decoded["type"] == string(MessageTypeSpeakEnd) {
			break
		}
	}
	if !sawAudio {
		t.Error("expected at least one binary audio frame before speak_end")
	}
}

func TestHubHelloPreloadsQuestionPrompts(t *testing.T) {
	server, _, hub := setupTestServer(t)
	conn := dial(t, server)
	sayHello(t, conn)

	client := hub.testClient("user-1")
	if client == nil {
		t.Fatal("expected a registered client after hello")
	}

	want := len(entities.Questions())
	deadline := time.Now().Add(5 * time.Second)
	for client.voice.CacheSize() < want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d cached prompts after hello, got %d", want, client.voice.CacheSize())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubDisconnectMidRecordingFinalizesAnswer(t *testing.T) {
	server, repo, _ := setupTestServer(t)
	conn := dial(t, server)

	ready := sayHello(t, conn)
	assessmentID := ready["assessment"].(map[string]interface{})["id"].(string)

	sendMessage(t, conn, RecordingStartMessage{
		BaseMessage: BaseMessage{Type: MessageTypeRecordingStart},
		QuestionID:  "business-context",
	})
	waitForRecordingState(t, conn, string(recording.StateActive))

	chunk := make([]byte, 3200)
	for i := 0; i < len(chunk); i += 2 {
		binary.LittleEndian.PutUint16(chunk[i:], 4000)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		t.Fatalf("binary write failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	// Drop the connection without a close handshake while the recording is
	// still active. The buffered audio must be finalized and persisted, not
	// take the hub down with it.
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		responses, err := repo.ListResponses(context.Background(), assessmentID)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(responses) == 1 {
			if responses[0].Kind != entities.ResponseKindVoice {
				t.Fatalf("expected a voice response, got %v", responses[0].Kind)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the disconnected recording to be saved")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The hub must still accept the user's next connection.
	conn2 := dial(t, server)
	sayHello(t, conn2)
}

func waitForRecordingState(t *testing.T, conn *websocket.Conn, state string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		msg := readUntil(t, conn, MessageTypeRecordingState)
		if msg["state"] == state {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for recording state %s", state)
		}
	}
}
