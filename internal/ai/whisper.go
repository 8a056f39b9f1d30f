package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultTranscriptionURL = "https://api.openai.com/v1/audio/transcriptions"

// WhisperClient transcribes audio through the OpenAI Whisper API.
type WhisperClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewWhisperClient(apiKey, model string, timeout time.Duration, log *slog.Logger) *WhisperClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &WhisperClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultTranscriptionURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

func (c *WhisperClient) Name() string {
	return "openai-whisper"
}

func (c *WhisperClient) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured: %w", ErrInvalidInput)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}

	writer.WriteField("model", c.model)
	writer.WriteField("response_format", "text")
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log.Debug("sending transcription request", "engine", c.Name(), "model", c.model)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", requestFailed("transcription API", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", requestFailed("transcription API", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus("transcription API", resp.StatusCode, body)
	}

	return strings.TrimSpace(string(body)), nil
}
