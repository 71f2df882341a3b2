package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/strategix/alexvoice/domain"
	"github.com/strategix/alexvoice/domain/repositories"
)

// GoogleSpeechRecognizer implements SpeechRecognizer on Google Cloud
// Speech-to-Text streaming recognition.
type GoogleSpeechRecognizer struct {
	logger *zap.Logger
}

// NewGoogleSpeechRecognizer creates a new Google Cloud recognizer.
func NewGoogleSpeechRecognizer(logger *zap.Logger) *GoogleSpeechRecognizer {
	return &GoogleSpeechRecognizer{logger: logger}
}

var _ repositories.SpeechRecognizer = (*GoogleSpeechRecognizer)(nil)

// Supported reports whether credentials for the hosted recognizer are
// configured. False routes callers to the text-only fallback path.
func (g *GoogleSpeechRecognizer) Supported() bool {
	return os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != ""
}

// StartStream opens a continuous recognition stream emitting interim and
// final transcript events.
func (g *GoogleSpeechRecognizer) StartStream(ctx context.Context, config repositories.AudioConfig) (repositories.RecognitionStream, error) {
	if !g.Supported() {
		return nil, domain.ErrNotSupported
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("unsupported audio encoding: %s", config.Encoding)
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:        encoding,
		SampleRateHertz: int32(config.SampleRate),
		LanguageCode:    config.Language,
	}

	// Interim results on: the UI shows provisional text while the user
	// speaks, replaced on each event until the segment finalizes.
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:         recognitionConfig,
				InterimResults: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	s := &googleRecognitionStream{
		client: client,
		stream: stream,
		logger: g.logger,
		events: make(chan repositories.TranscriptEvent, 16),
		final:  make(chan streamResult, 1),
	}
	go s.receive()
	return s, nil
}

type streamResult struct {
	text string
	err  error
}

type googleRecognitionStream struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	logger *zap.Logger

	events chan repositories.TranscriptEvent
	final  chan streamResult

	mu      sync.Mutex
	fed     bool
	stopped bool
	aborted bool
}

var _ repositories.RecognitionStream = (*googleRecognitionStream)(nil)

// Feed pushes one captured audio chunk to the recognizer.
func (s *googleRecognitionStream) Feed(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.stopped || s.aborted {
		s.mu.Unlock()
		return nil
	}
	s.fed = true
	s.mu.Unlock()

	if err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return mapGoogleError(err)
	}
	return nil
}

// Events delivers interim and final transcript events in time order.
func (s *googleRecognitionStream) Events() <-chan repositories.TranscriptEvent {
	return s.events
}

// Stop closes the send side so the utterance in progress can finalize, then
// waits for the accumulated final transcript.
func (s *googleRecognitionStream) Stop() (string, error) {
	s.mu.Lock()
	if s.stopped || s.aborted {
		s.mu.Unlock()
		return "", nil
	}
	s.stopped = true
	fed := s.fed
	s.mu.Unlock()

	defer s.client.Close()

	if !fed {
		s.stream.CloseSend()
		return "", domain.ErrNoSpeechDetected
	}
	if err := s.stream.CloseSend(); err != nil {
		return "", fmt.Errorf("failed to close send stream: %w", err)
	}

	result := <-s.final
	if result.err != nil {
		return "", result.err
	}
	if result.text == "" {
		return "", domain.ErrNoSpeechDetected
	}
	return result.text, nil
}

// Abort ends recognition immediately, discarding in-flight partial results.
func (s *googleRecognitionStream) Abort() {
	s.mu.Lock()
	if s.stopped || s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	s.mu.Unlock()

	s.stream.CloseSend()
	s.client.Close()
}

// receive pumps recognizer responses into the event channel and accumulates
// final segments until the stream ends.
func (s *googleRecognitionStream) receive() {
	defer close(s.events)
	defer close(s.final)

	var accumulated string

	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			s.final <- streamResult{text: accumulated}
			return
		}
		if err != nil {
			s.mu.Lock()
			aborted := s.aborted
			s.mu.Unlock()
			if aborted {
				s.final <- streamResult{}
				return
			}
			s.logger.Warn("recognition stream receive failed", zap.Error(err))
			s.final <- streamResult{err: mapGoogleError(err)}
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			text := result.Alternatives[0].Transcript
			if result.IsFinal {
				if accumulated != "" {
					accumulated += " "
				}
				accumulated += text
			}
			s.emit(repositories.TranscriptEvent{Text: text, IsFinal: result.IsFinal})
		}
	}
}

func (s *googleRecognitionStream) emit(ev repositories.TranscriptEvent) {
	select {
	case s.events <- ev:
	default:
		// A stalled consumer only loses interim updates; the final
		// transcript is still returned from Stop.
		s.logger.Warn("transcript event dropped", zap.Bool("isFinal", ev.IsFinal))
	}
}

// mapGoogleError classifies a gRPC failure onto the shared taxonomy.
func mapGoogleError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return domain.NewRecognitionError("unknown", err)
	}
	switch st.Code() {
	case codes.PermissionDenied, codes.Unauthenticated:
		return domain.NewRecognitionError("not-allowed", err)
	case codes.Unavailable, codes.DeadlineExceeded:
		return domain.NewRecognitionError("network", err)
	case codes.Unimplemented:
		return domain.NewRecognitionError("not-supported", err)
	default:
		return domain.NewRecognitionError(st.Code().String(), err)
	}
}

var errUnknownEncoding = errors.New("unknown encoding")

// getAudioEncoding converts string encoding to Google Speech API enum.
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("%w: %s", errUnknownEncoding, encoding)
	}
}
