package voice

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/strategix/alexvoice/domain/repositories"
)

const (
	localMimeType   = "audio/wav"
	localSampleRate = 16000
)

// LocalSynthesizer is the on-device fallback path: a crude fixed-formant
// renderer that produces an audible WAV approximation of the text's rhythm.
// Lower fidelity than the hosted service, but it cannot fail, which keeps
// the assistant from ever going silent.
type LocalSynthesizer struct{}

// NewLocalSynthesizer creates the local fallback synthesizer.
func NewLocalSynthesizer() *LocalSynthesizer {
	return &LocalSynthesizer{}
}

var _ repositories.SpeechSynthesizer = (*LocalSynthesizer)(nil)

// Synthesize renders one tone burst per word, paced by the speaking speed.
func (l *LocalSynthesizer) Synthesize(ctx context.Context, text string, voiceID string, speed float64) ([]byte, error) {
	if speed <= 0 {
		speed = 1.0
	}

	wordMs := int(180 / speed)
	gapMs := int(70 / speed)

	words := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	if words == 0 {
		words = 1
	}

	wordSamples := localSampleRate * wordMs / 1000
	gapSamples := localSampleRate * gapMs / 1000
	total := words*(wordSamples+gapSamples) - gapSamples

	pcm := make([]int16, total)
	pos := 0
	for w := 0; w < words; w++ {
		freq := 160.0 + float64(w%3)*40.0
		for i := 0; i < wordSamples; i++ {
			// Hann-windowed tone so word bursts do not click.
			window := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(wordSamples)))
			sample := math.Sin(2*math.Pi*freq*float64(i)/localSampleRate) * window * 0.3
			pcm[pos] = int16(sample * math.MaxInt16)
			pos++
		}
		if w < words-1 {
			pos += gapSamples
		}
	}

	return wavEncode(pcm, localSampleRate), nil
}

// wavEncode wraps mono 16-bit PCM in a minimal RIFF header.
func wavEncode(pcm []int16, sampleRate int) []byte {
	dataLen := len(pcm) * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[44+2*i:], uint16(s))
	}
	return buf
}
