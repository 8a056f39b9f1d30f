package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultChatURL = "https://api.openai.com/v1/chat/completions"

// ChatClient generates summaries through the OpenAI Chat Completions API.
type ChatClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewChatClient(apiKey, model string, timeout time.Duration, log *slog.Logger) *ChatClient {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &ChatClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultChatURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

func (c *ChatClient) Name() string {
	return "openai-chat"
}

func (c *ChatClient) Summarize(ctx context.Context, transcript string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured: %w", ErrInvalidInput)
	}
	if transcript == "" {
		return "", fmt.Errorf("empty transcript: %w", ErrInvalidInput)
	}

	reqBody := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": summarySystemPrompt},
			{"role": "user", "content": "Here is the meeting transcript to summarize:\n\n" + transcript},
		},
		"temperature": 0.3,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log.Debug("sending summarization request", "engine", c.Name(), "model", c.model)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", requestFailed("summarization API", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", requestFailed("summarization API", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus("summarization API", resp.StatusCode, body)
	}

	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty summarization response: %w", ErrTransient)
	}

	return chatResp.Choices[0].Message.Content, nil
}
