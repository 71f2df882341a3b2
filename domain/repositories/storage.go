package repositories

import "context"

// StoredAudio is an audio payload retrieved from the blob store.
type StoredAudio struct {
	Data     []byte
	MimeType string
}

// AudioStore keeps recorded answer audio out-of-band. Responses carry only
// the reference URL returned by Save.
type AudioStore interface {
	// Save stores an audio payload and returns a reference URL for it.
	Save(ctx context.Context, name string, mimeType string, data []byte) (string, error)
	// Get fetches a stored payload by the name used at Save time.
	Get(ctx context.Context, name string) (*StoredAudio, error)
}
