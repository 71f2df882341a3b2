package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/strategix/alexvoice/domain"
	"github.com/strategix/alexvoice/domain/repositories"
)

// AudioStore keeps response audio blobs in process memory. Development and
// test use only.
type AudioStore struct {
	mu    sync.RWMutex
	blobs map[string]repositories.StoredAudio
}

// NewAudioStore creates an empty in-memory audio store.
func NewAudioStore() *AudioStore {
	return &AudioStore{blobs: make(map[string]repositories.StoredAudio)}
}

var _ repositories.AudioStore = (*AudioStore)(nil)

func (s *AudioStore) Save(ctx context.Context, name string, mimeType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := repositories.StoredAudio{Data: append([]byte(nil), data...), MimeType: mimeType}
	s.blobs[name] = stored
	return "/audio/" + name, nil
}

func (s *AudioStore) Get(ctx context.Context, name string) (*repositories.StoredAudio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.blobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: audio %s not found", domain.ErrPersistence, name)
	}
	copied := repositories.StoredAudio{Data: append([]byte(nil), stored.Data...), MimeType: stored.MimeType}
	return &copied, nil
}
