// Package openai implements poll generation through the OpenAI chat
// completions API. It decorates another adapter: meeting interaction still
// goes through the wrapped driver, only GeneratePoll is replaced.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Srinivas26k/ZoomPollMaster/internal/automation"
	"github.com/Srinivas26k/ZoomPollMaster/internal/config"
	"github.com/Srinivas26k/ZoomPollMaster/internal/session"
	"github.com/Srinivas26k/ZoomPollMaster/pkg/logx"
)

// APIKeyEnv is the only place the key is read from. It is never written to
// config files or logs.
const APIKeyEnv = "OPENAI_API_KEY"

var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

type Client struct {
	automation.Adapter

	baseURL string
	model   string
	prompt  string
	apiKey  string
	http    *http.Client
	log     logx.Logger
}

// New wraps inner with API-backed poll generation. Fails fast when the key
// is absent so a misconfigured daemon exits at startup, not mid-meeting.
func New(inner automation.Adapter, cfg *config.Config, log logx.Logger) (*Client, error) {
	key := strings.TrimSpace(os.Getenv(APIKeyEnv))
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	timeout, err := config.ParseDurationOrDefault("openai.request_timeout", cfg.OpenAI.RequestTimeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{
		Adapter: inner,
		baseURL: strings.TrimRight(cfg.OpenAI.BaseURL, "/"),
		model:   cfg.OpenAI.Model,
		prompt:  cfg.Prompt(),
		apiKey:  key,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// pollPayload is the JSON shape the prompt asks the model for.
type pollPayload struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

func (c *Client) GeneratePoll(ctx context.Context, transcript string) (*session.Poll, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: strings.ReplaceAll(c.prompt, "{transcript}", transcript)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &automation.TransportError{Op: "generate_poll", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &automation.TransportError{Op: "generate_poll", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &automation.TransportError{Op: "generate_poll",
			Err: fmt.Errorf("chat completions returned %s", resp.Status)}
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, &automation.MalformedResponseError{Op: "generate_poll", Detail: err.Error()}
	}
	if cr.Error != nil {
		return nil, &automation.TransportError{Op: "generate_poll", Err: errors.New(cr.Error.Message)}
	}
	if len(cr.Choices) == 0 {
		return nil, &automation.MalformedResponseError{Op: "generate_poll", Detail: "no choices in reply"}
	}

	var payload pollPayload
	content := stripFences(cr.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, &automation.MalformedResponseError{Op: "generate_poll",
			Detail: fmt.Sprintf("reply is not the requested JSON: %v", err)}
	}

	p, err := session.NewPoll(payload.Question, payload.Options, nil)
	if err != nil {
		return nil, &automation.MalformedResponseError{Op: "generate_poll", Detail: err.Error()}
	}
	c.log.Debug("poll generated via api", logx.String("model", c.model))
	return p, nil
}

// stripFences unwraps ```json blocks some models insist on.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
