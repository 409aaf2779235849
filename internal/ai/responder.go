package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Responder отвечает на сообщения пользователя в assistant-комнатах через
// chat-completions API (OpenRouter-совместимый).
type Responder struct {
	url    string
	apiKey string
	model  string
	httpc  *http.Client
}

type Config struct {
	URL    string
	APIKey string
	Model  string
}

func New(cfg Config) *Responder {
	url := cfg.URL
	if url == "" {
		url = "https://openrouter.ai/api/v1/chat/completions"
	}
	return &Responder{
		url:    url,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		httpc:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Reply просит модель ответить на prompt на языке language.
// Ошибка означает, что ответ бота не состоялся; ретраев здесь нет.
func (r *Responder) Reply(ctx context.Context, prompt, language string) (string, error) {
	reqBody := map[string]any{
		"model": r.model,
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt(language)},
			{"role": "user", "content": prompt},
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm status %d", resp.StatusCode)
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	if len(apiResp.Choices) == 0 || apiResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("llm returned no answer")
	}
	return apiResp.Choices[0].Message.Content, nil
}

func systemPrompt(language string) string {
	return "You are a helpful chat assistant. Answer concisely and reply in the language with code '" + language + "'."
}
