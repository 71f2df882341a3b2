package capture

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strategix/alexvoice/domain/entities"
)

const defaultMeterInterval = 50 * time.Millisecond

// ChunkSource is the platform capture primitive: an exclusive handle on the
// physical microphone that delivers audio as variable-size chunks in
// chronological order. Open must fail with domain.ErrPermissionDenied or
// domain.ErrDeviceUnavailable when the platform refuses access.
type ChunkSource interface {
	// Open acquires the device and returns the chunk stream. The channel
	// is closed when the source is closed or the context is canceled.
	Open(ctx context.Context) (<-chan []byte, error)
	// Close releases the device. Safe to call more than once.
	Close() error
}

// Engine owns one microphone session: it buffers chunks as they arrive,
// publishes a normalized amplitude level at a steady cadence for waveform
// animation, and finalizes everything into a single Recording on Stop.
// At most one Engine may be active per process; the caller enforces that.
type Engine struct {
	source   ChunkSource
	logger   *zap.Logger
	mimeType string
	interval time.Duration

	// observer sees every chunk as it arrives, before buffering. Used to
	// tee captured audio into the recognizer.
	observer func([]byte)

	mu        sync.Mutex
	active    bool
	chunks    [][]byte
	total     int
	level     float64
	startedAt time.Time
	cancel    context.CancelFunc

	levels   chan float64
	readDone chan struct{}
}

// NewEngine creates a capture engine over the given source. mimeType is the
// negotiated container type for the finalized recording.
func NewEngine(source ChunkSource, mimeType string, logger *zap.Logger) *Engine {
	return &Engine{
		source:   source,
		logger:   logger,
		mimeType: mimeType,
		interval: defaultMeterInterval,
	}
}

// SetObserver registers a per-chunk callback invoked on the capture
// goroutine. Must be called before Start.
func (e *Engine) SetObserver(fn func([]byte)) {
	e.observer = fn
}

// Start acquires the device and begins buffering and level metering.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	stream, err := e.source.Open(ctx)
	if err != nil {
		cancel()
		return err
	}

	e.active = true
	e.chunks = nil
	e.total = 0
	e.level = 0
	e.startedAt = time.Now()
	e.cancel = cancel
	e.levels = make(chan float64, 8)
	e.readDone = make(chan struct{})

	go e.read(stream)
	go e.meter(ctx)

	e.logger.Info("audio capture started", zap.String("mimeType", e.mimeType))
	return nil
}

// read drains the chunk stream until it closes. Chunks are concatenated in
// arrival order, which is chronological since capture is single-stream.
func (e *Engine) read(stream <-chan []byte) {
	defer close(e.readDone)
	for chunk := range stream {
		if len(chunk) == 0 {
			continue
		}
		if e.observer != nil {
			e.observer(chunk)
		}
		level := chunkLevel(chunk)

		e.mu.Lock()
		e.chunks = append(e.chunks, chunk)
		e.total += len(chunk)
		e.level = level
		e.mu.Unlock()
	}
}

// meter publishes the most recent level at a steady cadence until the
// session ends. A stalled consumer loses intermediate readings only.
func (e *Engine) meter(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	defer close(e.levels)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.mu.Lock()
			level := e.level
			e.mu.Unlock()
			select {
			case e.levels <- level:
			default:
			}
		}
	}
}

// Levels returns the amplitude stream for the current session. Values are in
// [0,1] and are emitted continuously until Stop. Never persisted.
func (e *Engine) Levels() <-chan float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.levels
}

// Stop finalizes buffered audio into a single Recording and releases the
// device, the meter loop and the chunk reader. Idempotent; a no-op returning
// nil when not recording.
func (e *Engine) Stop() (*entities.Recording, error) {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return nil, nil
	}
	e.active = false
	cancel := e.cancel
	startedAt := e.startedAt
	e.mu.Unlock()

	// Release the device first so the chunk stream closes, then wait for
	// the reader to drain what was already buffered.
	err := e.source.Close()
	cancel()
	<-e.readDone

	e.mu.Lock()
	data := make([]byte, 0, e.total)
	for _, chunk := range e.chunks {
		data = append(data, chunk...)
	}
	e.chunks = nil
	e.level = 0
	e.mu.Unlock()

	recording := &entities.Recording{
		ID:       uuid.NewString(),
		MimeType: e.mimeType,
		Data:     data,
		Duration: time.Since(startedAt),
	}

	e.logger.Info("audio capture finalized",
		zap.String("recordingID", recording.ID),
		zap.Int("bytes", recording.Size()),
		zap.Duration("duration", recording.Duration))

	if err != nil {
		return recording, err
	}
	return recording, nil
}

// Active reports whether a capture session is in progress.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// chunkLevel derives a normalized [0,1] amplitude from a PCM chunk: mean
// absolute value of the 16-bit little-endian samples scaled by full range.
func chunkLevel(chunk []byte) float64 {
	n := len(chunk) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(uint16(chunk[2*i]) | uint16(chunk[2*i+1])<<8)
		if s < 0 {
			sum -= float64(s)
		} else {
			sum += float64(s)
		}
	}
	level := sum / float64(n) / 32768
	if level > 1 {
		level = 1
	}
	return level
}
