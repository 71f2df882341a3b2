package capture

import (
	"context"
	"sync"

	"github.com/strategix/alexvoice/domain"
)

// mimeTypePreference is the ordered container preference consulted once at
// capability-negotiation time. First supported entry wins.
var mimeTypePreference = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/ogg;codecs=opus",
	"audio/mp4",
}

// NegotiateMimeType picks the preferred container from the types the client
// reports as supported. Falls back to audio/webm when nothing matches.
func NegotiateMimeType(supported []string) string {
	for _, preferred := range mimeTypePreference {
		for _, s := range supported {
			if s == preferred {
				return preferred
			}
		}
	}
	return "audio/webm"
}

// PushSource is a ChunkSource fed externally, one Push per captured chunk.
// The WebSocket transport pushes client binary frames into it; tests push
// synthetic chunks. It is exclusive: a second Open while open fails with
// domain.ErrDeviceUnavailable.
type PushSource struct {
	mu     sync.Mutex
	open   bool
	closed bool
	stream chan []byte
}

// NewPushSource creates an unopened push source.
func NewPushSource() *PushSource {
	return &PushSource{}
}

var _ ChunkSource = (*PushSource)(nil)

// Open implements ChunkSource.
func (p *PushSource) Open(ctx context.Context) (<-chan []byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		return nil, domain.ErrDeviceUnavailable
	}
	if p.closed {
		return nil, domain.ErrDeviceUnavailable
	}
	p.open = true
	p.stream = make(chan []byte, 64)

	// Close the stream when the session context ends so readers unblock.
	stream := p.stream
	go func() {
		<-ctx.Done()
		p.Close()
	}()
	return stream, nil
}

// Push delivers one captured chunk. Chunks pushed after Close are dropped.
func (p *PushSource) Push(chunk []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open || p.closed {
		return
	}
	select {
	case p.stream <- chunk:
	default:
		// Capture must not block the transport; drop on overflow.
	}
}

// Close implements ChunkSource.
func (p *PushSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.open {
		p.closed = true
		return nil
	}
	p.closed = true
	close(p.stream)
	return nil
}
