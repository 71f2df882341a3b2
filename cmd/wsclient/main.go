// Command wsclient is a development client for exercising the voice
// assessment WebSocket protocol against a running server: it mints a guest
// identity, opens the socket, optionally streams an audio file as one
// recording attempt and prints every control frame it receives.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type guestAuthResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

func main() {
	host := flag.String("host", "localhost:8080", "server host:port")
	audioPath := flag.String("audio", "", "audio file to stream as a recording attempt")
	question := flag.String("question", "business-context", "question ID to answer")
	flag.Parse()

	token, userID, err := authenticateGuest(*host)
	if err != nil {
		log.Fatal("failed to mint a guest identity: ", err)
	}
	log.Printf("authenticated as %s", userID)

	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws", RawQuery: "token=" + url.QueryEscape(token)}
	log.Printf("connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial failed: ", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			frameType, payload, err := conn.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}
			if frameType == websocket.BinaryMessage {
				log.Printf("<- %d bytes of audio", len(payload))
				continue
			}
			log.Printf("<- %s", payload)
		}
	}()

	hello := map[string]interface{}{
		"type":                 "hello",
		"capture_supported":    *audioPath != "",
		"supported_mime_types": []string{"audio/webm;codecs=opus"},
		"sample_rate":          16000,
		"encoding":             "LINEAR16",
		"language":             "en-US",
	}
	if err := conn.WriteJSON(hello); err != nil {
		log.Fatal("hello failed: ", err)
	}
	time.Sleep(500 * time.Millisecond)

	if *audioPath != "" {
		if err := streamRecording(conn, *audioPath, *question); err != nil {
			log.Fatal("recording failed: ", err)
		}
	} else {
		answer := map[string]interface{}{
			"type":        "answer_text",
			"question_id": *question,
			"text":        "We run a small online retail business.",
		}
		if err := conn.WriteJSON(answer); err != nil {
			log.Fatal("answer failed: ", err)
		}
	}

	time.Sleep(2 * time.Second)
	if err := conn.WriteJSON(map[string]string{"type": "navigate", "direction": "next"}); err != nil {
		log.Fatal("navigate failed: ", err)
	}

	time.Sleep(2 * time.Second)
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func authenticateGuest(host string) (token, userID string, err error) {
	resp, err := http.Post(fmt.Sprintf("http://%s/api/v1/auth/guest", host), "application/json", bytes.NewReader(nil))
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("guest auth returned %d", resp.StatusCode)
	}

	var auth guestAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", "", err
	}
	return auth.Token, auth.UserID, nil
}

// streamRecording replays an audio file through one recording attempt at
// roughly real-time chunk pacing.
func streamRecording(conn *websocket.Conn, path, question string) error {
	audio, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	start := map[string]string{"type": "recording_start", "question_id": question}
	if err := conn.WriteJSON(start); err != nil {
		return err
	}
	time.Sleep(300 * time.Millisecond)

	const chunkSize = 3200
	for offset := 0; offset < len(audio); offset += chunkSize {
		end := offset + chunkSize
		if end > len(audio) {
			end = len(audio)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, audio[offset:end]); err != nil {
			return err
		}
		time.Sleep(100 * time.Millisecond)
	}

	return conn.WriteJSON(map[string]string{"type": "recording_stop"})
}
