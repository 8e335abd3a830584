package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Transcriber converts raw audio into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader, mimeType string) (string, error)
}

// Synthesizer renders text into an audio byte stream (mp3).
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Client talks to OpenAI-compatible /audio endpoints and implements both
// Transcriber and Synthesizer.
type Client struct {
	BaseURL         string
	APIKey          string
	TranscribeModel string
	TTSModel        string
	Voice           string
	HTTPClient      *http.Client
}

func NewClient(baseURL, apiKey, transcribeModel, ttsModel, voice string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if transcribeModel == "" {
		transcribeModel = "whisper-1"
	}
	if ttsModel == "" {
		ttsModel = "tts-1"
	}
	if voice == "" {
		voice = "onyx"
	}
	return &Client{
		BaseURL:         baseURL,
		APIKey:          apiKey,
		TranscribeModel: transcribeModel,
		TTSModel:        ttsModel,
		Voice:           voice,
		HTTPClient:      &http.Client{Timeout: 120 * time.Second},
	}
}

type transcriptionResp struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader, mimeType string) (string, error) {
	if c.HTTPClient == nil {
		return "", errors.New("speech: http client is nil")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return "", errors.New("speech: api key is required")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("model", c.TranscribeModel); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	_ = mimeType // format detection is the transcription service's job

	url := fmt.Sprintf("%s/audio/transcriptions", strings.TrimRight(c.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(b))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("speech: transcription: %s", msg)
	}

	var decoded transcriptionResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	return decoded.Text, nil
}

type synthesizeReq struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.HTTPClient == nil {
		return nil, errors.New("speech: http client is nil")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("speech: api key is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("speech: text is required")
	}

	b, err := json.Marshal(synthesizeReq{
		Model:          c.TTSModel,
		Voice:          c.Voice,
		Input:          text,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/audio/speech", strings.TrimRight(c.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("speech: synthesis: %s", msg)
	}

	return io.ReadAll(resp.Body)
}
