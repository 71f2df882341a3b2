package recording

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/strategix/alexvoice/domain"
	"github.com/strategix/alexvoice/domain/entities"
	"github.com/strategix/alexvoice/domain/repositories"
	"github.com/strategix/alexvoice/internal/capture"
)

// State is the recording session lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateActive     State = "active"
	StateFinalizing State = "finalizing"
	StateErrored    State = "errored"
)

const defaultMaxDuration = 300 * time.Second

// Result is delivered once per session when finalization completes: the
// finalized audio plus the accumulated final transcript, which is empty when
// recognition was unavailable or failed.
type Result struct {
	Recording  *entities.Recording
	Transcript string
}

// Callbacks are the session's event surface. Level values arrive
// continuously until stop; transcript events arrive as zero or more interim
// then zero or one final per utterance. Level and transcript events may
// interleave arbitrarily but each stream is time-ordered within itself.
type Callbacks struct {
	OnState      func(State)
	OnLevel      func(float64)
	OnTranscript func(repositories.TranscriptEvent)
	OnElapsed    func(seconds int)
	OnResult     func(Result)
	OnError      func(error)
}

// Config configures one recording attempt.
type Config struct {
	// CaptureSupported is the platform capability answer gathered at
	// negotiation time. False fails the attempt fast with ErrNotSupported.
	CaptureSupported bool
	MaxDuration      time.Duration
	Audio            repositories.AudioConfig
}

// Session coordinates the capture engine and the recognizer as one logical
// listen operation with a shared lifecycle and a maximum duration guard.
// A Session is one-shot: created per recording attempt and discarded after
// stop, finalize or error. At most one Session may be Active per assessment
// view; the transport layer enforces that.
type Session struct {
	engine     *capture.Engine
	recognizer repositories.SpeechRecognizer
	config     Config
	callbacks  Callbacks
	logger     *zap.Logger

	mu      sync.Mutex
	state   State
	elapsed int
	stream  repositories.RecognitionStream
	cancel  context.CancelFunc
}

// NewSession creates an idle session over the given capture engine.
// recognizer may be nil; transcription is an optional enhancement.
func NewSession(engine *capture.Engine, recognizer repositories.SpeechRecognizer, config Config, callbacks Callbacks, logger *zap.Logger) *Session {
	if config.MaxDuration <= 0 {
		config.MaxDuration = defaultMaxDuration
	}
	return &Session{
		engine:     engine,
		recognizer: recognizer,
		config:     config,
		callbacks:  callbacks,
		logger:     logger,
		state:      StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	if s.callbacks.OnState != nil {
		s.callbacks.OnState(state)
	}
}

// Start runs Idle -> Requesting -> Active. Any permission or device failure
// aborts the attempt, resets per-session state and surfaces the reason.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return errors.New("recording session already used")
	}
	s.state = StateRequesting
	s.mu.Unlock()
	if s.callbacks.OnState != nil {
		s.callbacks.OnState(StateRequesting)
	}

	if !s.config.CaptureSupported {
		return s.fail(domain.ErrNotSupported)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	// Recognition starts first so the capture observer can tee chunks into
	// it; its failure is logged and never blocks entry to Active.
	if s.recognizer != nil && s.recognizer.Supported() {
		stream, err := s.recognizer.StartStream(ctx, s.config.Audio)
		if err != nil {
			s.logger.Warn("transcription unavailable for this attempt", zap.Error(err))
		} else {
			s.mu.Lock()
			s.stream = stream
			s.mu.Unlock()
			s.engine.SetObserver(func(chunk []byte) {
				if err := stream.Feed(chunk); err != nil {
					s.logger.Warn("recognizer feed failed", zap.Error(err))
				}
			})
			go s.pumpTranscripts(stream)
		}
	}

	if err := s.engine.Start(ctx); err != nil {
		s.abortStream()
		return s.fail(err)
	}

	s.setState(StateActive)
	go s.pumpLevels()
	go s.tick(ctx)
	return nil
}

// Stop runs Active -> Finalizing -> Idle. Manual stop and the max-duration
// guard take the identical path. Idempotent; a no-op unless Active.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.state = StateFinalizing
	stream := s.stream
	s.stream = nil
	cancel := s.cancel
	s.mu.Unlock()
	if s.callbacks.OnState != nil {
		s.callbacks.OnState(StateFinalizing)
	}

	recording, err := s.engine.Stop()
	if err != nil {
		s.logger.Warn("capture finalize reported error", zap.Error(err))
	}

	var transcript string
	if stream != nil {
		transcript, err = stream.Stop()
		if err != nil && !errors.Is(err, domain.ErrNoSpeechDetected) {
			// Degraded, not fatal: the raw audio still stands.
			s.logger.Warn("transcription finalize failed", zap.Error(err))
		}
	}
	cancel()

	s.mu.Lock()
	s.elapsed = 0
	s.mu.Unlock()
	if s.callbacks.OnLevel != nil {
		s.callbacks.OnLevel(0)
	}
	if s.callbacks.OnElapsed != nil {
		s.callbacks.OnElapsed(0)
	}

	if s.callbacks.OnResult != nil {
		s.callbacks.OnResult(Result{Recording: recording, Transcript: transcript})
	}
	s.setState(StateIdle)
}

// fail runs Requesting/Active -> Errored -> Idle.
func (s *Session) fail(err error) error {
	s.abortStream()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.elapsed = 0
	s.mu.Unlock()

	s.setState(StateErrored)
	s.logger.Error("recording attempt failed", zap.Error(err))
	if s.callbacks.OnError != nil {
		s.callbacks.OnError(err)
	}
	s.setState(StateIdle)
	return err
}

func (s *Session) abortStream() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()
	if stream != nil {
		stream.Abort()
	}
}

// Elapsed returns whole seconds since the session became Active.
func (s *Session) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

func (s *Session) pumpLevels() {
	for level := range s.engine.Levels() {
		if s.callbacks.OnLevel != nil {
			s.callbacks.OnLevel(level)
		}
	}
}

func (s *Session) pumpTranscripts(stream repositories.RecognitionStream) {
	for ev := range stream.Events() {
		if s.callbacks.OnTranscript != nil {
			s.callbacks.OnTranscript(ev)
		}
	}
}

// tick increments the duration counter every second. Reaching MaxDuration
// triggers an automatic stop identical to a manual one.
func (s *Session) tick(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	maxSeconds := int(s.config.MaxDuration / time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.state != StateActive {
				s.mu.Unlock()
				return
			}
			s.elapsed++
			elapsed := s.elapsed
			s.mu.Unlock()

			if s.callbacks.OnElapsed != nil {
				s.callbacks.OnElapsed(elapsed)
			}
			if elapsed >= maxSeconds {
				s.Stop()
				return
			}
		}
	}
}
