package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// systemPrompt fixes the JSON schema the classifier must answer with.
// Box coordinates are [y_min, x_min, y_max, x_max] on a 0-1000 grid.
const systemPrompt = `You are a smart city traffic analysis AI. Analyze the image and return JSON:
{
  "vehicles": [{"type": "car|truck|bus", "box_2d": [y_min, x_min, y_max, x_max]}],
  "emergency_vehicles": [{"type": "ambulance|police", "box_2d": [y_min, x_min, y_max, x_max]}],
  "pedestrians": [{"box_2d": [y_min, x_min, y_max, x_max], "crossing": true}],
  "traffic_density": "low|medium|high",
  "recommended_action": "description",
  "emergency_priority": true|false
}
All box_2d coordinates must be normalized to the range 0-1000.`

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client calls the Gemini generateContent REST endpoint with an inline
// JPEG frame and returns the raw JSON text of the response. Quota and
// rate-limit failures surface as errors carrying the response body, so
// the analysis layer can classify them from the text.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(apiKey, model string, log zerolog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     log,
	}
}

type generateRequest struct {
	SystemInstruction content   `json:"system_instruction"`
	Contents          []content `json:"contents"`
	GenerationConfig  genConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type genConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// AnalyzeFrame submits one JPEG frame for analysis.
func (c *Client) AnalyzeFrame(ctx context.Context, jpeg []byte) ([]byte, error) {
	reqBody := generateRequest{
		SystemInstruction: content{Parts: []part{{Text: systemPrompt}}},
		Contents: []content{{Parts: []part{
			{InlineData: &inlineData{
				MimeType: "image/jpeg",
				Data:     base64.StdEncoding.EncodeToString(jpeg),
			}},
			{Text: "Analyze this traffic camera feed."},
		}}},
		GenerationConfig: genConfig{
			Temperature:      0.3,
			ResponseMimeType: "application/json",
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call classifier: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// The body text carries the quota details (RESOURCE_EXHAUSTED,
		// PerDay metric, retryDelay hint) that classification keys on.
		return nil, fmt.Errorf("classifier status %d: %s", resp.StatusCode, body)
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("classifier returned no candidates")
	}

	return []byte(decoded.Candidates[0].Content.Parts[0].Text), nil
}
