package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// countingSynth records synthesis calls and can be set to fail.
type countingSynth struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (s *countingSynth) Synthesize(ctx context.Context, text string, voiceID string, speed float64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return nil, errors.New("synthesis backend down")
	}
	return []byte(text), nil
}

func (s *countingSynth) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakePlayer records playbacks and exposes the most recent one.
type fakePlayer struct {
	mu        sync.Mutex
	playbacks []*fakePlayback
}

func (p *fakePlayer) Play(audio Audio) (Playback, error) {
	playback := &fakePlayback{audio: audio, done: make(chan struct{})}
	p.mu.Lock()
	p.playbacks = append(p.playbacks, playback)
	p.mu.Unlock()
	return playback, nil
}

func (p *fakePlayer) last() *fakePlayback {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.playbacks) == 0 {
		return nil
	}
	return p.playbacks[len(p.playbacks)-1]
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.playbacks)
}

type fakePlayback struct {
	audio Audio

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
	once    sync.Once
}

func (p *fakePlayback) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.finish()
}

func (p *fakePlayback) finish()               { p.once.Do(func() { close(p.done) }) }
func (p *fakePlayback) Done() <-chan struct{} { return p.done }
func (p *fakePlayback) Err() error            { return nil }

func (p *fakePlayback) wasStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func newTestEngine(t *testing.T, synth *countingSynth, player *fakePlayer) *Engine {
	t.Helper()
	return NewEngine(synth, NewLocalSynthesizer(), player, "audio/mpeg", zaptest.NewLogger(t))
}

func TestSpeakCachesByTextVoiceSpeed(t *testing.T) {
	synth := &countingSynth{}
	player := &fakePlayer{}
	engine := newTestEngine(t, synth, player)

	opts := SpeakOptions{Voice: "a", Speed: 1.0}
	if err := engine.Speak(context.Background(), "Hello", opts); err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	if err := engine.Speak(context.Background(), "Hello", opts); err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	if got := synth.callCount(); got != 1 {
		t.Fatalf("expected exactly one synthesis call, got %d", got)
	}
	if engine.CacheSize() != 1 {
		t.Fatalf("expected one cached utterance, got %d", engine.CacheSize())
	}
	if player.count() != 2 {
		t.Fatalf("expected two playbacks, got %d", player.count())
	}

	// A different speed is a different cache entry.
	if err := engine.Speak(context.Background(), "Hello", SpeakOptions{Voice: "a", Speed: 1.5}); err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	if got := synth.callCount(); got != 2 {
		t.Fatalf("expected a second synthesis for the new speed, got %d calls", got)
	}
}

func TestSpeakPreemptsPriorPlayback(t *testing.T) {
	synth := &countingSynth{}
	player := &fakePlayer{}
	engine := newTestEngine(t, synth, player)

	if err := engine.Speak(context.Background(), "First", SpeakOptions{}); err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	first := player.last()

	if err := engine.Speak(context.Background(), "Second", SpeakOptions{}); err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	if !first.wasStopped() {
		t.Fatal("expected the first playback to be stopped before the second started")
	}
}

func TestSpeakFallsBackOnSynthesisFailure(t *testing.T) {
	synth := &countingSynth{fail: true}
	player := &fakePlayer{}
	engine := newTestEngine(t, synth, player)

	var gotErr error
	err := engine.Speak(context.Background(), "Hello", SpeakOptions{
		OnError: func(err error) { gotErr = err },
	})
	if err != nil {
		t.Fatalf("expected the fallback path to succeed, got %v", err)
	}
	if gotErr == nil {
		t.Fatal("expected the error callback to fire before the fallback")
	}

	playback := player.last()
	if playback == nil {
		t.Fatal("expected a fallback playback")
	}
	if playback.audio.MimeType != localMimeType {
		t.Fatalf("expected local fallback audio, got %s", playback.audio.MimeType)
	}
	// Fallback results are never cached; recovery retries the hosted path.
	if engine.CacheSize() != 0 {
		t.Fatalf("expected nothing cached from the fallback, got %d", engine.CacheSize())
	}
}

func TestSpeakLifecycleCallbacks(t *testing.T) {
	synth := &countingSynth{}
	player := &fakePlayer{}
	engine := newTestEngine(t, synth, player)

	started := make(chan struct{}, 1)
	ended := make(chan struct{}, 1)
	err := engine.Speak(context.Background(), "Hello", SpeakOptions{
		OnStart: func() { started <- struct{}{} },
		OnEnd:   func() { ended <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	select {
	case <-started:
	default:
		t.Fatal("expected OnStart before Speak returned")
	}

	player.last().finish()
	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("expected OnEnd after playback completed")
	}
}

func TestPreloadPhrasesWarmsCacheQuietly(t *testing.T) {
	synth := &countingSynth{}
	player := &fakePlayer{}
	engine := newTestEngine(t, synth, player)

	phrases := []string{"Welcome", "Let's begin", "Thank you"}
	engine.PreloadPhrases(context.Background(), phrases)

	if engine.CacheSize() != len(phrases) {
		t.Fatalf("expected %d cached phrases, got %d", len(phrases), engine.CacheSize())
	}
	if got := synth.callCount(); got != len(phrases) {
		t.Fatalf("expected one synthesis per phrase, got %d", got)
	}
	if player.count() != 0 {
		t.Fatalf("expected nothing played during preload, got %d playbacks", player.count())
	}

	// A preloaded phrase spoken with default options is a cache hit, and a
	// repeated preload does not re-synthesize.
	engine.PreloadPhrases(context.Background(), phrases)
	if err := engine.Speak(context.Background(), "Welcome", SpeakOptions{}); err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	if got := synth.callCount(); got != len(phrases) {
		t.Fatalf("expected no further synthesis calls, got %d", got)
	}
	if player.count() != 1 {
		t.Fatalf("expected exactly one playback, got %d", player.count())
	}
}

func TestLocalSynthesizerProducesWav(t *testing.T) {
	synth := NewLocalSynthesizer()
	data, err := synth.Synthesize(context.Background(), "hello world", "any", 1.0)
	if err != nil {
		t.Fatalf("local synthesis failed: %v", err)
	}
	if len(data) < 44 {
		t.Fatalf("expected at least a WAV header, got %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatal("expected a RIFF/WAVE container")
	}
}
