package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/pd-triglav/contentd/config"
	"github.com/pd-triglav/contentd/internal/helpers"
)

// ChatAdapter talks to an OpenAI-compatible chat completions endpoint.
// Moonshot and DeepSeek both expose this surface, so one client covers
// both backends.
type ChatAdapter struct {
	name   string
	cfg    config.ProviderConfig
	client *http.Client
}

// NewMoonshot returns the adapter for Moonshot's Kimi models.
func NewMoonshot(cfg config.ProviderConfig) *ChatAdapter {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("MOONSHOT_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.moonshot.ai/v1"
	}
	return newChatAdapter("moonshot", cfg)
}

// NewDeepSeek returns the adapter for DeepSeek chat models.
func NewDeepSeek(cfg config.ProviderConfig) *ChatAdapter {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepseek.com/v1"
	}
	return newChatAdapter("deepseek", cfg)
}

func newChatAdapter(name string, cfg config.ProviderConfig) *ChatAdapter {
	return &ChatAdapter{
		name:   name,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (a *ChatAdapter) Name() string { return a.name }

// Generate runs one chat completion and extracts the JSON document from it.
func (a *ChatAdapter) Generate(ctx context.Context, prompt Prompt) (Result, error) {
	if a.cfg.APIKey == "" {
		return Result{}, &Error{Provider: a.name, Kind: KindAuthFailure, Err: errors.New("api key not configured")}
	}

	type chatMsg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type chatReq struct {
		Model       string    `json:"model"`
		Messages    []chatMsg `json:"messages"`
		Temperature float64   `json:"temperature,omitempty"`
		MaxTokens   int       `json:"max_tokens,omitempty"`
	}

	temperature := prompt.Temperature
	if temperature == 0 {
		temperature = a.cfg.Temperature
	}
	maxTokens := prompt.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.cfg.MaxTokens
	}

	var messages []chatMsg
	if prompt.System != "" {
		messages = append(messages, chatMsg{Role: "system", Content: prompt.System})
	}
	messages = append(messages, chatMsg{Role: "user", Content: prompt.User})

	body, err := json.Marshal(chatReq{
		Model:       a.cfg.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return Result{}, &Error{Provider: a.name, Kind: KindInvalidResponse, Err: fmt.Errorf("marshal: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.cfg.BaseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return Result{}, &Error{Provider: a.name, Kind: KindInvalidResponse, Err: fmt.Errorf("request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return Result{}, &Error{Provider: a.name, Kind: a.classifyTransport(err), Err: err}
	}
	payload, err := helpers.ReadAllAndClose(resp.Body)
	if err != nil {
		return Result{}, &Error{Provider: a.name, Kind: a.classifyTransport(err), Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{}, &Error{Provider: a.name, Kind: KindRateLimited, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{}, &Error{Provider: a.name, Kind: KindAuthFailure, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusGatewayTimeout:
		return Result{}, &Error{Provider: a.name, Kind: KindTimeout, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return Result{}, &Error{Provider: a.name, Kind: KindInvalidResponse, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var out struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return Result{}, &Error{Provider: a.name, Kind: KindInvalidResponse, Err: fmt.Errorf("decode: %w", err)}
	}
	if len(out.Choices) == 0 {
		return Result{}, &Error{Provider: a.name, Kind: KindInvalidResponse, Err: errors.New("no choices")}
	}

	raw := out.Choices[0].Message.Content
	doc, err := ExtractJSON(raw)
	if err != nil {
		return Result{}, &Error{Provider: a.name, Kind: KindInvalidResponse, Err: err}
	}
	if !json.Valid([]byte(doc)) {
		return Result{}, &Error{Provider: a.name, Kind: KindInvalidResponse, Err: errors.New("extracted document is not valid JSON")}
	}

	model := out.Model
	if model == "" {
		model = a.cfg.Model
	}
	return Result{
		Data:     json.RawMessage(doc),
		Raw:      raw,
		Provider: a.name,
		Model:    model,
	}, nil
}

func (a *ChatAdapter) classifyTransport(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return KindTimeout
	}
	return KindInvalidResponse
}
