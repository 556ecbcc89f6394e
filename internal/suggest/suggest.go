// Package suggest asks the text generation service for free-text proposal
// suggestions.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Simplici0/studio-quotes/internal/assessment"
	"github.com/Simplici0/studio-quotes/internal/logger"
)

var (
	ErrSuggestionFailed = errors.New("suggestion generation failed")
	ErrTimeout          = errors.New("suggestion generation timed out")
)

// Config configures the client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	MaxTokens   int
	Temperature float64
}

// Client calls POST {BaseURL}/api/ai/generate.
type Client struct {
	config Config
	client *http.Client
	logger logger.Logger
}

// NewClient returns a client for the suggestion service at cfg.BaseURL.
// Zero config values take defaults.
func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.4
	}
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log,
	}
}

// Suggest returns free text for the proposal's special notes. The text is
// never parsed; an empty reply yields an empty suggestion.
func (c *Client) Suggest(ctx context.Context, a assessment.Answers) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := json.Marshal(map[string]interface{}{
		"prompt":      BuildPrompt(a),
		"max_tokens":  c.config.MaxTokens,
		"temperature": c.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSuggestionFailed, err)
	}

	var (
		resp    *http.Response
		lastErr error
	)
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ErrTimeout
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/ai/generate", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrSuggestionFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, lastErr = c.client.Do(req)
		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}

		if ctx.Err() != nil {
			return "", ErrTimeout
		}
		c.logger.WithError(lastErr).Warn("suggestion request failed", map[string]interface{}{"attempt": attempt + 1})
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrSuggestionFailed, lastErr)
	}
	defer resp.Body.Close()

	var reply struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("%w: decode error: %v", ErrSuggestionFailed, err)
	}
	return strings.TrimSpace(reply.Text), nil
}

// BuildPrompt describes the project for the text generation service.
func BuildPrompt(a assessment.Answers) string {
	var b strings.Builder
	b.WriteString("Write two short paragraphs of practical advice for a client proposal.\n")
	fmt.Fprintf(&b, "Project: %s (%s)\n", a.ProjectName, a.ProjectType)
	if a.ProjectDescription != "" {
		fmt.Fprintf(&b, "Description: %s\n", a.ProjectDescription)
	}
	if a.TargetAudience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", a.TargetAudience)
	}
	if len(a.MainGoals) > 0 {
		fmt.Fprintf(&b, "Goals: %s\n", strings.Join(a.MainGoals, "; "))
	}
	if len(a.MustHaveFeatures) > 0 {
		fmt.Fprintf(&b, "Features: %s\n", strings.Join(a.MustHaveFeatures, ", "))
	}
	if a.PreferredTimeline != "" {
		fmt.Fprintf(&b, "Timeline: %s\n", a.PreferredTimeline)
	}
	return b.String()
}
