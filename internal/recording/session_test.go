package recording

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/strategix/alexvoice/adapters/stt"
	"github.com/strategix/alexvoice/domain"
	"github.com/strategix/alexvoice/domain/repositories"
	"github.com/strategix/alexvoice/internal/capture"
)

func pcmChunk(samples int, amplitude int16) []byte {
	chunk := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(chunk[i*2:], uint16(amplitude))
	}
	return chunk
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.states))
	copy(out, r.states)
	return out
}

func TestSessionUnsupportedFailsFast(t *testing.T) {
	logger := zaptest.NewLogger(t)
	source := capture.NewPushSource()
	engine := capture.NewEngine(source, "audio/webm", logger)

	var states stateRecorder
	var gotErr error
	session := NewSession(engine, nil, Config{CaptureSupported: false}, Callbacks{
		OnState: states.record,
		OnError: func(err error) { gotErr = err },
	}, logger)

	err := session.Start(context.Background())
	if !errors.Is(err, domain.ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
	if !errors.Is(gotErr, domain.ErrNotSupported) {
		t.Fatalf("expected error callback with ErrNotSupported, got %v", gotErr)
	}
	if session.State() != StateIdle {
		t.Fatalf("expected session back at idle, got %s", session.State())
	}

	seq := states.snapshot()
	want := []State{StateRequesting, StateErrored, StateIdle}
	if len(seq) != len(want) {
		t.Fatalf("expected state sequence %v, got %v", want, seq)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("expected state sequence %v, got %v", want, seq)
		}
	}
}

func TestSessionLifecycleDeliversRecordingAndTranscript(t *testing.T) {
	logger := zaptest.NewLogger(t)
	source := capture.NewPushSource()
	engine := capture.NewEngine(source, "audio/webm", logger)
	recognizer := stt.NewMockSpeechRecognizer(logger)

	var states stateRecorder
	var transcripts []repositories.TranscriptEvent
	var transcriptMu sync.Mutex
	results := make(chan Result, 1)

	session := NewSession(engine, recognizer, Config{
		CaptureSupported: true,
		Audio:            repositories.AudioConfig{SampleRate: 16000, Encoding: "LINEAR16", Language: "en-US"},
	}, Callbacks{
		OnState: states.record,
		OnTranscript: func(ev repositories.TranscriptEvent) {
			transcriptMu.Lock()
			transcripts = append(transcripts, ev)
			transcriptMu.Unlock()
		},
		OnResult: func(r Result) { results <- r },
	}, logger)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if session.State() != StateActive {
		t.Fatalf("expected active session, got %s", session.State())
	}

	for i := 0; i < 4; i++ {
		source.Push(pcmChunk(800, 6000))
	}
	// Let the engine drain the pushed chunks before finalizing.
	time.Sleep(50 * time.Millisecond)

	session.Stop()

	var result Result
	select {
	case result = <-results:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the session result")
	}

	if result.Recording == nil || result.Recording.Empty() {
		t.Fatal("expected a non-empty recording")
	}
	if result.Recording.Size() != 4*800*2 {
		t.Fatalf("expected 6400 bytes of audio, got %d", result.Recording.Size())
	}
	if result.Transcript == "" {
		t.Fatal("expected a final transcript")
	}
	if session.State() != StateIdle {
		t.Fatalf("expected session back at idle, got %s", session.State())
	}

	transcriptMu.Lock()
	gotInterim := len(transcripts) > 0
	transcriptMu.Unlock()
	if !gotInterim {
		t.Fatal("expected at least one transcript event")
	}

	seq := states.snapshot()
	if seq[len(seq)-1] != StateIdle || seq[len(seq)-2] != StateFinalizing {
		t.Fatalf("expected ... -> finalizing -> idle, got %v", seq)
	}
}

func TestSessionMaxDurationAutoFinalizes(t *testing.T) {
	logger := zaptest.NewLogger(t)
	source := capture.NewPushSource()
	engine := capture.NewEngine(source, "audio/webm", logger)

	results := make(chan Result, 1)
	session := NewSession(engine, nil, Config{
		CaptureSupported: true,
		MaxDuration:      time.Second,
	}, Callbacks{
		OnResult: func(r Result) { results <- r },
	}, logger)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	source.Push(pcmChunk(400, 2000))

	select {
	case <-results:
	case <-time.After(3 * time.Second):
		t.Fatal("expected the duration guard to finalize the session")
	}
	if session.State() != StateIdle {
		t.Fatalf("expected session back at idle, got %s", session.State())
	}
}

func TestSessionStopIsIdempotent(t *testing.T) {
	logger := zaptest.NewLogger(t)
	source := capture.NewPushSource()
	engine := capture.NewEngine(source, "audio/webm", logger)

	var resultCount int
	var mu sync.Mutex
	session := NewSession(engine, nil, Config{CaptureSupported: true}, Callbacks{
		OnResult: func(Result) {
			mu.Lock()
			resultCount++
			mu.Unlock()
		},
	}, logger)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	session.Stop()
	session.Stop()

	mu.Lock()
	defer mu.Unlock()
	if resultCount != 1 {
		t.Fatalf("expected exactly one result, got %d", resultCount)
	}
}
