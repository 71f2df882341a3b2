package storage

import (
	"bytes"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/strategix/alexvoice/domain"
	"github.com/strategix/alexvoice/domain/repositories"
)

// GridFSAudioStore keeps recorded answer audio in a GridFS bucket. Responses
// reference the audio by the URL returned from Save; the bytes never live in
// the response documents themselves.
type GridFSAudioStore struct {
	bucket  *gridfs.Bucket
	baseURL string
	logger  *zap.Logger
}

// NewGridFSAudioStore creates an audio store backed by the given database.
// baseURL is prefixed onto stored object names to form reference URLs, e.g.
// "/audio".
func NewGridFSAudioStore(db *mongo.Database, baseURL string, logger *zap.Logger) (*GridFSAudioStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName("audio_responses"))
	if err != nil {
		return nil, fmt.Errorf("failed to create gridfs bucket: %w", err)
	}
	return &GridFSAudioStore{bucket: bucket, baseURL: baseURL, logger: logger}, nil
}

var _ repositories.AudioStore = (*GridFSAudioStore)(nil)

// Save implements repositories.AudioStore.
func (s *GridFSAudioStore) Save(ctx context.Context, name string, mimeType string, data []byte) (string, error) {
	opts := options.GridFSUpload().SetMetadata(bson.M{"mime_type": mimeType})
	if _, err := s.bucket.UploadFromStream(name, bytes.NewReader(data), opts); err != nil {
		return "", fmt.Errorf("%w: failed to store audio %s: %v", domain.ErrPersistence, name, err)
	}

	s.logger.Info("Stored answer audio",
		zap.String("name", name),
		zap.String("mimeType", mimeType),
		zap.Int("bytes", len(data)))

	return s.baseURL + "/" + name, nil
}

// Get implements repositories.AudioStore.
func (s *GridFSAudioStore) Get(ctx context.Context, name string) (*repositories.StoredAudio, error) {
	stream, err := s.bucket.OpenDownloadStreamByName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open audio %s: %v", domain.ErrPersistence, name, err)
	}
	defer stream.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(stream); err != nil {
		return nil, fmt.Errorf("%w: failed to read audio %s: %v", domain.ErrPersistence, name, err)
	}

	mimeType := "application/octet-stream"
	if file := stream.GetFile(); file != nil && file.Metadata != nil {
		var meta struct {
			MimeType string `bson:"mime_type"`
		}
		if err := bson.Unmarshal(file.Metadata, &meta); err == nil && meta.MimeType != "" {
			mimeType = meta.MimeType
		}
	}

	return &repositories.StoredAudio{Data: buf.Bytes(), MimeType: mimeType}, nil
}
