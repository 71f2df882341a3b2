package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/strategix/alexvoice/domain"
	"github.com/strategix/alexvoice/domain/entities"
	"github.com/strategix/alexvoice/domain/repositories"
	"github.com/strategix/alexvoice/internal/capture"
	"github.com/strategix/alexvoice/internal/pipeline"
	"github.com/strategix/alexvoice/internal/recording"
	"github.com/strategix/alexvoice/internal/voice"
	"github.com/strategix/alexvoice/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Per-attempt recording ceiling.
	maxRecordingDuration = 300 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the app origin once it is finalized
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active clients. One client per user: a newer
// connection for the same user evicts the older one, so the microphone
// device is held by at most one recording session per user process-wide.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	repo       repositories.AssessmentRepository
	store      repositories.AudioStore
	llm        repositories.LargeLanguageModel
	recognizer repositories.SpeechRecognizer
	synth      repositories.SpeechSynthesizer
	synthMime  string
	reporter   *pipeline.ReportGenerator

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(
	repo repositories.AssessmentRepository,
	store repositories.AudioStore,
	llm repositories.LargeLanguageModel,
	recognizer repositories.SpeechRecognizer,
	synth repositories.SpeechSynthesizer,
	synthMime string,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		repo:       repo,
		store:      store,
		llm:        llm,
		recognizer: recognizer,
		synth:      synth,
		synthMime:  synthMime,
		reporter:   pipeline.NewReportGenerator(repo, llm, logger),
		logger:     logger,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if previous, ok := h.clients[client.userID]; ok {
				previous.conn.Close()
			}
			h.clients[client.userID] = client
			h.mu.Unlock()
			h.logger.Info("client registered", zap.String("userID", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.userID]; ok && current == client {
				delete(h.clients, client.userID)
			}
			h.mu.Unlock()
			// Finalizing an in-flight recording talks to the recognizer
			// and the repository; keep the hub loop free. The send channel
			// closes only after teardown, and trySend guards any callback
			// that fires later.
			go func() {
				client.teardown()
				client.closeSend()
			}()
			h.logger.Info("client unregistered", zap.String("userID", client.userID))
		}
	}
}

// WriteData is one outbound websocket frame.
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// Client is a middleman between one websocket connection and the assessment
// services. Each client owns its own progression controller and voice
// engine; the recording session exists only while an attempt is in flight.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan WriteData
	userID string
	logger *zap.Logger

	controller *usecase.AssessmentController
	voice      *voice.Engine

	// sendMu orders writes to send against its close; once closed is set
	// no frame is ever queued again.
	sendMu sync.Mutex
	closed bool

	mu         sync.Mutex
	greeted    bool
	audio      repositories.AudioConfig
	mimeType   string
	supported  bool
	source     *capture.PushSource
	session    *recording.Session
	questionID string
	transcript string
}

// HandleWebSocket upgrades an authenticated request and starts the client
// pumps. userID comes from the verified JWT.
func HandleWebSocket(hub *Hub, c echo.Context, userID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("websocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan WriteData, 256),
		userID: userID,
		logger: logger.With(zap.String("userID", userID)),
	}
	client.controller = usecase.NewAssessmentController(hub.repo, hub.store, hub.llm, hub.reporter, client.logger)
	client.controller.SetStatusObserver(func(status usecase.SaveStatus) {
		client.sendJSON(struct {
			BaseMessage
			Status string `json:"status"`
		}{Envelope(MessageTypeSaveStatus), string(status)})
	})
	client.voice = voice.NewEngine(hub.synth, voice.NewLocalSynthesizer(), &wsPlayer{client: client}, hub.synthMime, client.logger)

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection into the handlers.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processAudioChunk(message)
		default:
			c.logger.Warn("received unknown frame type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps outbound frames to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("failed to write frame", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// teardown releases per-client resources when the connection goes away. An
// in-flight recording attempt finalizes so buffered audio is not lost.
func (c *Client) teardown() {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != nil {
		session.Stop()
	}
	c.voice.Stop()
}

// trySend queues one outbound frame. It reports false when the connection
// is already torn down or the buffer is full; callers treat either as a
// dropped frame, never an error.
func (c *Client) trySend(frame WriteData) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound channel exactly once. Callbacks from a
// finalizing session may still fire afterwards; trySend drops their frames.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to marshal outbound message", zap.Error(err))
		return
	}
	if !c.trySend(WriteData{Type: websocket.TextMessage, Payload: payload}) {
		c.logger.Debug("dropped outbound message")
	}
}

func (c *Client) sendError(code, message string) {
	c.sendJSON(NewErrorMessage(code, message))
}

// processMessage routes one parsed control message.
func (c *Client) processMessage(raw []byte) {
	parsed, err := ParseMessage(raw)
	if err != nil {
		c.logger.Warn("rejected control message", zap.Error(err))
		c.sendError("bad_message", err.Error())
		return
	}

	switch msg := parsed.(type) {
	case *HelloMessage:
		c.handleHello(msg)
	case *RecordingStartMessage:
		c.handleRecordingStart(msg)
	case *RecordingStopMessage:
		c.handleRecordingStop()
	case *AnswerTextMessage:
		c.handleAnswerText(msg)
	case *NavigateMessage:
		c.handleNavigate(msg)
	case *FollowUpMessage:
		c.handleFollowUp(msg)
	case *SpeakMessage:
		c.handleSpeak(msg)
	case *BaseMessage:
		switch msg.Type {
		case MessageTypeSpeakStop:
			c.voice.Stop()
		case MessageTypePing:
			c.sendJSON(Envelope(MessageTypePong))
		}
	}
}

// processAudioChunk feeds one binary frame into the active capture source.
func (c *Client) processAudioChunk(data []byte) {
	c.mu.Lock()
	source := c.source
	c.mu.Unlock()
	if source == nil {
		c.logger.Warn("audio frame with no active recording", zap.Int("size", len(data)))
		return
	}
	// The source copies nothing; the websocket buffer is reused, so copy.
	chunk := make([]byte, len(data))
	copy(chunk, data)
	source.Push(chunk)
}

// handleHello negotiates capture capabilities and loads or starts the
// user's assessment.
func (c *Client) handleHello(msg *HelloMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	audio := repositories.AudioConfig{SampleRate: 16000, Encoding: "WEBM_OPUS", Language: "en-US"}
	if msg.SampleRate > 0 {
		audio.SampleRate = msg.SampleRate
	}
	if msg.Encoding != "" {
		audio.Encoding = msg.Encoding
	}
	if msg.Language != "" {
		audio.Language = msg.Language
	}

	c.mu.Lock()
	firstHello := !c.greeted
	c.greeted = true
	c.audio = audio
	c.supported = msg.CaptureSupported
	c.mimeType = capture.NegotiateMimeType(msg.SupportedMimeTypes)
	c.mu.Unlock()

	if firstHello {
		// Warm the synthesis cache with the question prompts so the first
		// spoken question plays without a hosted round-trip.
		go func() {
			preloadCtx, cancelPreload := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancelPreload()
			questions := entities.Questions()
			phrases := make([]string, 0, len(questions))
			for _, question := range questions {
				phrases = append(phrases, question.Text)
			}
			c.voice.PreloadPhrases(preloadCtx, phrases)
		}()
	}

	assessment, err := c.controller.LoadOrStart(ctx, c.userID, msg.AssessmentID)
	if err != nil {
		c.logger.Error("failed to load assessment", zap.Error(err))
		c.sendError("load_failed", "could not load the assessment")
		return
	}

	c.sendJSON(struct {
		BaseMessage
		Assessment *entities.Assessment `json:"assessment"`
		Question   entities.Question    `json:"question"`
		Progress   float64              `json:"progress"`
		MimeType   string               `json:"mime_type"`
	}{Envelope(MessageTypeReady), assessment, assessment.CurrentQuestion(), assessment.Progress(), c.mimeType})
}

// handleRecordingStart spins up a capture engine and recording session for
// one question. A second start while one is active is rejected, never
// queued into a second device handle.
func (c *Client) handleRecordingStart(msg *RecordingStartMessage) {
	c.mu.Lock()
	if !c.greeted {
		c.mu.Unlock()
		c.sendError("not_ready", "hello required before recording")
		return
	}
	if c.session != nil {
		c.mu.Unlock()
		c.sendError("recording_busy", "a recording is already active")
		return
	}

	source := capture.NewPushSource()
	engine := capture.NewEngine(source, c.mimeType, c.logger)
	session := recording.NewSession(engine, c.hub.recognizer, recording.Config{
		CaptureSupported: c.supported,
		MaxDuration:      maxRecordingDuration,
		Audio:            c.audio,
	}, recording.Callbacks{
		OnState: func(state recording.State) {
			c.sendJSON(RecordingStateMessage{BaseMessage: Envelope(MessageTypeRecordingState), State: string(state)})
			if state == recording.StateIdle {
				c.clearSession()
			}
		},
		OnLevel: func(level float64) {
			c.sendJSON(LevelMessage{BaseMessage: Envelope(MessageTypeLevel), Value: level})
		},
		OnElapsed: func(seconds int) {
			c.sendJSON(RecordingStateMessage{BaseMessage: Envelope(MessageTypeRecordingState), State: string(recording.StateActive), Elapsed: seconds})
		},
		OnTranscript: func(ev repositories.TranscriptEvent) {
			c.mu.Lock()
			c.transcript = ev.Text
			c.mu.Unlock()
			c.sendJSON(TranscriptMessage{BaseMessage: Envelope(MessageTypeTranscript), Text: ev.Text, IsFinal: ev.IsFinal})
		},
		OnResult: func(result recording.Result) {
			c.handleRecordingResult(msg.QuestionID, result)
		},
		OnError: func(err error) {
			c.sendJSON(struct {
				BaseMessage
				Code    string `json:"error_code"`
				Message string `json:"message"`
			}{Envelope(MessageTypeRecordingError), errorCode(err), err.Error()})
		},
	}, c.logger)

	c.source = source
	c.session = session
	c.questionID = msg.QuestionID
	c.transcript = ""
	c.mu.Unlock()

	if err := session.Start(context.Background()); err != nil {
		c.clearSession()
	}
}

func (c *Client) handleRecordingStop() {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		c.sendError("no_recording", "no recording in flight")
		return
	}
	// Finalization talks to the recognizer; keep the read pump responsive.
	go session.Stop()
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.session = nil
	c.source = nil
	c.mu.Unlock()
}

// handleRecordingResult persists the finalized attempt as a voice answer.
// The transcript text accompanying the audio is whatever the recognizer
// last produced; the client may overwrite it afterwards with answer_text.
func (c *Client) handleRecordingResult(questionID string, result recording.Result) {
	defer c.clearSession()

	if result.Recording == nil || result.Recording.Empty() {
		c.logger.Info("discarding empty recording", zap.String("questionID", questionID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	response, err := c.controller.RecordAnswer(ctx, questionID, result.Transcript, result.Recording)
	if err != nil {
		c.logger.Error("failed to save voice answer", zap.Error(err))
		c.sendError("save_failed", "could not save the answer, please retry")
		return
	}
	c.sendJSON(struct {
		BaseMessage
		Response *entities.Response `json:"response"`
	}{Envelope(MessageTypeAnswerSaved), response})
}

func (c *Client) handleAnswerText(msg *AnswerTextMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	response, err := c.controller.RecordAnswer(ctx, msg.QuestionID, msg.Text, nil)
	if err != nil {
		c.logger.Error("failed to save text answer", zap.Error(err))
		c.sendError("save_failed", "could not save the answer, please retry")
		return
	}
	c.sendJSON(struct {
		BaseMessage
		Response *entities.Response `json:"response"`
	}{Envelope(MessageTypeAnswerSaved), response})
}

func (c *Client) handleNavigate(msg *NavigateMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var err error
	switch msg.Direction {
	case NavigateNext:
		err = c.controller.Next(ctx)
	case NavigatePrevious:
		err = c.controller.Previous(ctx)
	case NavigateSkip:
		err = c.controller.Skip(ctx)
	case NavigateComplete:
		err = c.controller.Complete(ctx)
	}
	if err != nil {
		c.logger.Warn("navigation rejected", zap.String("direction", msg.Direction), zap.Error(err))
		c.sendError("navigation_failed", err.Error())
		return
	}

	assessment := c.controller.Assessment()
	c.sendJSON(struct {
		BaseMessage
		Index     int               `json:"index"`
		Question  entities.Question `json:"question"`
		Progress  float64           `json:"progress"`
		Completed bool              `json:"completed"`
	}{Envelope(MessageTypeQuestion), assessment.CurrentQuestionIndex, assessment.CurrentQuestion(), assessment.Progress(), assessment.IsCompleted()})
}

// handleFollowUp requests the conversational reaction off the read pump;
// the result may be empty and the client treats that as "no follow-up".
func (c *Client) handleFollowUp(msg *FollowUpMessage) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		text := c.controller.RequestFollowUp(ctx, msg.QuestionID, msg.Text)
		c.sendJSON(struct {
			BaseMessage
			QuestionID string `json:"question_id"`
			Text       string `json:"text"`
		}{Envelope(MessageTypeFollowUpText), msg.QuestionID, text})

		if text != "" {
			speakCtx, cancelSpeak := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancelSpeak()
			if err := c.voice.Speak(speakCtx, text, voice.SpeakOptions{}); err != nil {
				c.logger.Warn("failed to speak follow-up", zap.Error(err))
			}
		}
	}()
}

func (c *Client) handleSpeak(msg *SpeakMessage) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := c.voice.Speak(ctx, msg.Text, voice.SpeakOptions{Voice: msg.Voice, Speed: msg.Speed})
		if err != nil {
			c.logger.Warn("speak failed", zap.Error(err))
		}
	}()
}

func errorCode(err error) string {
	code := domain.ErrorCode(err)
	if code == "" {
		return "recording_failed"
	}
	return code
}
