// Package llm provides the gateway to the OpenAI-compatible chat endpoint
// that drives NPC cognition: goal review, plan decisions, relation choices,
// backstories, nicknames, and story narration.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/xiaocai218/cultivation-world-simulator/internal/config"
)

// TaskClass splits calls between the fast and the normal model when the
// gateway runs in fast_slow mode.
type TaskClass int

const (
	// ClassNormal is for the heavyweight calls: plan decisions, goal
	// review, relation resolution.
	ClassNormal TaskClass = iota
	// ClassFast is for flavor text: backstories, nicknames, stories.
	ClassFast
)

// unhealthyAfter is the number of consecutive transport failures that flips
// the gateway unhealthy; the engine pauses until a call succeeds again.
const unhealthyAfter = 3

// Gateway bounds and routes every model call. A nil Gateway (no key
// configured) reports Enabled() == false and fails calls cleanly, letting
// the simulation run on fallback behavior.
type Gateway struct {
	cfg        config.LLM
	httpClient *http.Client
	sem        *semaphore.Weighted

	failures  atomic.Int32
	unhealthy atomic.Bool
}

// NewGateway builds the gateway. Returns nil when no key is configured.
func NewGateway(cfg config.LLM, maxConcurrent int) *Gateway {
	if cfg.Key == "" || cfg.BaseURL == "" {
		return nil
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Gateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Enabled reports whether the gateway can make calls at all.
func (g *Gateway) Enabled() bool {
	return g != nil
}

// Healthy reports whether recent calls have been getting through. The tick
// loop pauses LLM phases while the gateway is unhealthy.
func (g *Gateway) Healthy() bool {
	return g != nil && !g.unhealthy.Load()
}

func (g *Gateway) model(class TaskClass) string {
	if g.cfg.Mode == config.ModeFastSlow && class == ClassFast && g.cfg.FastModelName != "" {
		return g.cfg.FastModelName
	}
	return g.cfg.ModelName
}

// chat wire types, OpenAI-compatible.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends one prompt and returns the raw completion text. The
// semaphore bounds concurrent in-flight calls across all goroutines.
func (g *Gateway) Complete(ctx context.Context, class TaskClass, system, user string, maxTokens int) (string, error) {
	if !g.Enabled() {
		return "", fmt.Errorf("llm gateway not configured")
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire llm slot: %w", err)
	}
	defer g.sem.Release(1)

	msgs := make([]chatMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: user})

	body, err := json.Marshal(chatRequest{
		Model:       g.model(class),
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	url := strings.TrimRight(g.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.Key)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.recordFailure(err)
		return "", fmt.Errorf("llm call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		g.recordFailure(err)
		return "", fmt.Errorf("read llm response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("llm error %d: %s", resp.StatusCode, truncate(string(respBody), 200))
		g.recordFailure(err)
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal llm response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}

	g.recordSuccess()
	slog.Debug("llm call",
		"model", g.model(class),
		"prompt_tokens", parsed.Usage.PromptTokens,
		"completion_tokens", parsed.Usage.CompletionTokens,
	)
	return parsed.Choices[0].Message.Content, nil
}

func (g *Gateway) recordFailure(err error) {
	n := g.failures.Add(1)
	if n >= unhealthyAfter && !g.unhealthy.Swap(true) {
		slog.Error("llm gateway marked unhealthy", "consecutive_failures", n, "err", err)
	}
}

func (g *Gateway) recordSuccess() {
	g.failures.Store(0)
	if g.unhealthy.Swap(false) {
		slog.Info("llm gateway healthy again")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
