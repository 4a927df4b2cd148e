package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Speaker produces an audible announcement. Implementations are best
// effort: a failed announcement is logged and forgotten.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

const ttsBaseURL = "https://api.elevenlabs.io/v1"

// TTSClient synthesizes announcements through the ElevenLabs
// text-to-speech API and hands the audio to a player callback.
type TTSClient struct {
	apiKey  string
	voiceID string
	modelID string
	baseURL string
	http    *http.Client
	play    func(audio []byte) error
	log     zerolog.Logger
}

func NewTTSClient(apiKey, voiceID, modelID string, play func([]byte) error, log zerolog.Logger) *TTSClient {
	return &TTSClient{
		apiKey:  apiKey,
		voiceID: voiceID,
		modelID: modelID,
		baseURL: ttsBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		play:    play,
		log:     log,
	}
}

func (t *TTSClient) Speak(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{
		"text":     text,
		"model_id": t.modelID,
	})
	if err != nil {
		return fmt.Errorf("encode tts request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", t.baseURL, t.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", t.apiKey)

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("call tts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("tts status %d: %s", resp.StatusCode, body)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read tts audio: %w", err)
	}
	if t.play == nil {
		return nil
	}
	return t.play(audio)
}
