package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const pivotLang = "en"

type Config struct {
	GeneralURL  string // универсальный MT-бекенд
	CustomURL   string // модель low-resource языка
	DetectURL   string
	LowResource string // код языка, который ходит через кастомную модель
	Timeout     time.Duration
}

// Client ходит в HTTP-бекенды переводов. Stateless, можно дёргать конкурентно.
type Client struct {
	httpc       *http.Client
	generalURL  string
	customURL   string
	detectURL   string
	lowResource string
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	customURL := cfg.CustomURL
	if customURL == "" {
		customURL = cfg.GeneralURL
	}
	detectURL := cfg.DetectURL
	if detectURL == "" {
		detectURL = cfg.GeneralURL
	}
	return &Client{
		httpc:       &http.Client{Timeout: timeout},
		generalURL:  cfg.GeneralURL,
		customURL:   customURL,
		detectURL:   detectURL,
		lowResource: NormalizeLang(cfg.LowResource),
	}
}

// Translate выбирает маршрут: low-resource пара идёт через кастомную модель,
// low-resource <-> X (X != en) — через английский pivot двумя вызовами.
// Ошибка не фатальна: возвращается исходный текст.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	src := NormalizeLang(sourceLang)
	dst := NormalizeLang(targetLang)
	if src == dst || text == "" {
		return text, nil
	}

	switch {
	case src == c.lowResource && dst == pivotLang:
		out, err := c.call(ctx, c.customURL, text, src, dst)
		if err != nil {
			return text, err
		}
		return out, nil

	case dst == c.lowResource && src == pivotLang:
		out, err := c.call(ctx, c.customURL, text, src, dst)
		if err != nil {
			return text, err
		}
		return out, nil

	case src == c.lowResource:
		// low-resource -> en -> dst
		mid, err := c.call(ctx, c.customURL, text, src, pivotLang)
		if err != nil {
			return text, err
		}
		out, err := c.call(ctx, c.generalURL, mid, pivotLang, dst)
		if err != nil {
			return text, err
		}
		return out, nil

	case dst == c.lowResource:
		// src -> en -> low-resource
		mid, err := c.call(ctx, c.generalURL, text, src, pivotLang)
		if err != nil {
			return text, err
		}
		out, err := c.call(ctx, c.customURL, mid, pivotLang, dst)
		if err != nil {
			return text, err
		}
		return out, nil

	default:
		out, err := c.call(ctx, c.generalURL, text, src, dst)
		if err != nil {
			return text, err
		}
		return out, nil
	}
}

func (c *Client) DetectLanguage(ctx context.Context, text string) (string, error) {
	reqBody := map[string]any{"q": text}
	data, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.detectURL+"/detect", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("detect request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("detect: status %d", resp.StatusCode)
	}

	var out []struct {
		Language   string  `json:"language"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("detect decode: %w", err)
	}
	if len(out) == 0 || out[0].Language == "" {
		return "", fmt.Errorf("detect: empty response")
	}
	return NormalizeLang(out[0].Language), nil
}

func (c *Client) call(ctx context.Context, baseURL, text, src, dst string) (string, error) {
	reqBody := map[string]any{
		"q":      text,
		"source": src,
		"target": dst,
	}
	data, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/translate", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate %s->%s: %w", src, dst, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("translate %s->%s: status %d", src, dst, resp.StatusCode)
	}

	var out struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("translate %s->%s: decode: %w", src, dst, err)
	}
	if out.TranslatedText == "" {
		slog.Debug("translate empty result", "src", src, "dst", dst)
		return "", fmt.Errorf("translate %s->%s: empty result", src, dst)
	}
	return out.TranslatedText, nil
}
