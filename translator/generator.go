package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ============================================================================
// GENERATOR — the language-model boundary
// ============================================================================
// This is the only file that calls an external model API. The contract is
// text in, text out: no structured-output guarantee exists, so callers strip
// markdown fences and parse defensively (see parser.go).
// ============================================================================

// Generator produces model text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey   string
	Model    string // empty = default
	Endpoint string // empty = default
}

// Gemini implements Generator against the Gemini REST API.
type Gemini struct {
	config GeminiConfig
	client *http.Client
}

// NewGemini creates a Gemini generator with sane defaults.
func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash-lite"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://generativelanguage.googleapis.com/v1beta/models"
	}
	return &Gemini{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Generate sends one prompt and returns the first candidate's text.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/%s:generateContent?key=%s",
		g.config.Endpoint, g.config.Model, g.config.APIKey)

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model API returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse model response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("model error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("model returned an empty response")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
