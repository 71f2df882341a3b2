package websocket

import (
	"sync"

	gorilla "github.com/gorilla/websocket"

	"github.com/strategix/alexvoice/internal/voice"
)

// playbackChunkSize keeps outbound audio frames comfortably under the read
// limit of browser clients.
const playbackChunkSize = 32 * 1024

// wsPlayer plays synthesized utterances by streaming them to the client:
// a speak_start control frame, the audio payload in binary frames, then
// speak_end. Stop truncates the remaining frames mid-utterance, which the
// engine uses to preempt a still-audible utterance.
type wsPlayer struct {
	client *Client
}

var _ voice.Player = (*wsPlayer)(nil)

func (p *wsPlayer) Play(audio voice.Audio) (voice.Playback, error) {
	playback := &wsPlayback{done: make(chan struct{})}

	p.client.sendJSON(struct {
		BaseMessage
		MimeType string `json:"mime_type"`
		Size     int    `json:"size"`
	}{Envelope(MessageTypeSpeakStart), audio.MimeType, len(audio.Data)})

	go func() {
		defer close(playback.done)
		for offset := 0; offset < len(audio.Data); offset += playbackChunkSize {
			if playback.stopped() {
				break
			}
			end := offset + playbackChunkSize
			if end > len(audio.Data) {
				end = len(audio.Data)
			}
			if !p.client.trySend(WriteData{Type: gorilla.BinaryMessage, Payload: audio.Data[offset:end]}) {
				// A full buffer means the connection is wedged, a refused
				// send means it is gone; abandon the utterance either way
				// rather than block the engine.
				playback.Stop()
			}
		}
		p.client.sendJSON(Envelope(MessageTypeSpeakEnd))
	}()

	return playback, nil
}

type wsPlayback struct {
	mu   sync.Mutex
	stop bool
	done chan struct{}
}

func (p *wsPlayback) Stop() {
	p.mu.Lock()
	p.stop = true
	p.mu.Unlock()
}

func (p *wsPlayback) stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop
}

func (p *wsPlayback) Done() <-chan struct{} {
	return p.done
}

func (p *wsPlayback) Err() error {
	return nil
}
