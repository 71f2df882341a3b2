package stt_test

import (
	"github.com/strategix/alexvoice/adapters/stt"
	"github.com/strategix/alexvoice/domain/repositories"
)

var _ repositories.SpeechRecognizer = &stt.GoogleSpeechRecognizer{}
