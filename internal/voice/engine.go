package voice

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/strategix/alexvoice/domain/repositories"
)

const (
	// DefaultVoice is the assistant's voice identity.
	DefaultVoice = "onyx"
	// DefaultSpeed is the assistant's speaking speed.
	DefaultSpeed = 0.95
)

// Audio is a playable synthesized utterance.
type Audio struct {
	Data     []byte
	MimeType string
}

// Playback is one in-flight utterance on the output channel.
type Playback interface {
	// Stop halts playback immediately. Safe to call after completion.
	Stop()
	// Done is closed when playback finishes or is stopped.
	Done() <-chan struct{}
	// Err reports a playback failure after Done is closed, nil otherwise.
	Err() error
}

// Player abstracts the audio output channel. The channel is exclusive:
// starting a new utterance always preempts the previous one, which the
// engine enforces before calling Play.
type Player interface {
	Play(audio Audio) (Playback, error)
}

// SpeakOptions carries per-utterance voice identity, speed and lifecycle
// callbacks.
type SpeakOptions struct {
	Voice   string
	Speed   float64
	OnStart func()
	OnEnd   func()
	OnError func(error)
}

// Engine turns assistant text into spoken audio. Synthesized utterances are
// cached by (text, voice, speed) for the process lifetime; the key set is a
// small fixed set of prompts plus spoken-back analysis, so the cache is
// unbounded. Playback is single-flight. When the hosted synthesizer fails,
// the engine falls back to the local synthesis path so the assistant is
// never silent.
//
// One Engine instance is created at app start and passed by reference; it is
// not a package global.
type Engine struct {
	synth    repositories.SpeechSynthesizer
	fallback repositories.SpeechSynthesizer
	player   Player
	mimeType string
	logger   *zap.Logger

	mu      sync.Mutex
	cache   map[string]Audio
	current Playback
}

// NewEngine creates a voice engine. mimeType is the media type of payloads
// produced by the hosted synthesizer. fallback may be nil to disable local
// synthesis.
func NewEngine(synth repositories.SpeechSynthesizer, fallback repositories.SpeechSynthesizer, player Player, mimeType string, logger *zap.Logger) *Engine {
	return &Engine{
		synth:    synth,
		fallback: fallback,
		player:   player,
		mimeType: mimeType,
		logger:   logger,
		cache:    make(map[string]Audio),
	}
}

func cacheKey(text, voice string, speed float64) string {
	return fmt.Sprintf("%s|%s|%.2f", text, voice, speed)
}

// Speak renders the text and plays it, preempting any utterance still
// audible from a prior call.
func (e *Engine) Speak(ctx context.Context, text string, opts SpeakOptions) error {
	if opts.Voice == "" {
		opts.Voice = DefaultVoice
	}
	if opts.Speed == 0 {
		opts.Speed = DefaultSpeed
	}

	// Single-flight: silence the prior utterance before anything else.
	e.Stop()

	key := cacheKey(text, opts.Voice, opts.Speed)

	e.mu.Lock()
	audio, hit := e.cache[key]
	e.mu.Unlock()

	if !hit {
		data, err := e.synth.Synthesize(ctx, text, opts.Voice, opts.Speed)
		if err != nil {
			e.logger.Warn("hosted synthesis failed, using local fallback", zap.Error(err))
			if opts.OnError != nil {
				opts.OnError(err)
			}
			return e.speakFallback(ctx, text, opts)
		}
		audio = Audio{Data: data, MimeType: e.mimeType}
		e.mu.Lock()
		e.cache[key] = audio
		e.mu.Unlock()
	} else {
		e.logger.Debug("voice cache hit", zap.String("voice", opts.Voice))
	}

	if err := e.play(audio, opts); err != nil {
		if opts.OnError != nil {
			opts.OnError(err)
		}
		return e.speakFallback(ctx, text, opts)
	}
	return nil
}

// speakFallback renders the text on the local, lower-fidelity synthesis path.
// Fallback results are deliberately not cached; the next attempt should try
// the hosted synthesizer again.
func (e *Engine) speakFallback(ctx context.Context, text string, opts SpeakOptions) error {
	if e.fallback == nil {
		return fmt.Errorf("no fallback synthesizer configured")
	}
	data, err := e.fallback.Synthesize(ctx, text, opts.Voice, opts.Speed)
	if err != nil {
		if opts.OnError != nil {
			opts.OnError(err)
		}
		return err
	}
	if err := e.play(Audio{Data: data, MimeType: localMimeType}, opts); err != nil {
		if opts.OnError != nil {
			opts.OnError(err)
		}
		return err
	}
	return nil
}

func (e *Engine) play(audio Audio, opts SpeakOptions) error {
	if opts.OnStart != nil {
		opts.OnStart()
	}

	playback, err := e.player.Play(audio)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.current = playback
	e.mu.Unlock()

	go func() {
		<-playback.Done()
		e.mu.Lock()
		if e.current == playback {
			e.current = nil
		}
		e.mu.Unlock()

		if err := playback.Err(); err != nil && opts.OnError != nil {
			opts.OnError(err)
			return
		}
		if opts.OnEnd != nil {
			opts.OnEnd()
		}
	}()
	return nil
}

// Stop halts any current playback immediately. Safe when nothing is playing.
func (e *Engine) Stop() {
	e.mu.Lock()
	current := e.current
	e.current = nil
	e.mu.Unlock()
	if current != nil {
		current.Stop()
	}
}

// PreloadPhrases warms the cache with a fixed set of phrases at session
// start, one hosted synthesis request at a time. Nothing is played and the
// current playback is left alone; a later Speak of a preloaded phrase with
// default options is a cache hit. Failed phrases are logged and skipped so
// the hosted path is retried on first real use.
func (e *Engine) PreloadPhrases(ctx context.Context, phrases []string) {
	for _, phrase := range phrases {
		key := cacheKey(phrase, DefaultVoice, DefaultSpeed)
		e.mu.Lock()
		_, hit := e.cache[key]
		e.mu.Unlock()
		if hit {
			continue
		}

		data, err := e.synth.Synthesize(ctx, phrase, DefaultVoice, DefaultSpeed)
		if err != nil {
			e.logger.Warn("phrase preload failed", zap.Error(err))
			continue
		}
		e.mu.Lock()
		e.cache[key] = Audio{Data: data, MimeType: e.mimeType}
		e.mu.Unlock()
	}
}

// CacheSize returns the number of cached utterances.
func (e *Engine) CacheSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}
