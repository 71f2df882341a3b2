package entities

import "time"

// Recording is a finalized audio capture: all chunks from one microphone
// session concatenated in arrival order. Never persisted directly; the audio
// store keeps the bytes and responses carry a reference URL.
type Recording struct {
	ID       string
	MimeType string
	Data     []byte
	Duration time.Duration
}

// Size returns the recording payload size in bytes.
func (r *Recording) Size() int {
	return len(r.Data)
}

// Empty reports whether any audio was captured at all.
func (r *Recording) Empty() bool {
	return len(r.Data) == 0
}
