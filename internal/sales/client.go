// Package sales talks to an OpenAI-compatible chat completions endpoint to
// produce the persuasive replies of the sales stage.
package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"loan-assistant/internal/common/config"
	commonhttp "loan-assistant/internal/common/http"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/models"
)

// HandoffToken is the marker the model emits once the customer agrees to apply.
const HandoffToken = "MOVE_TO_VERIFICATION"

const systemPrompt = `You are a polite personal loan officer.
Persuade the user to apply for a personal loan.
If the user agrees or says 'yes', reply ONLY with: '` + HandoffToken + `'.
Do not ask for the phone number yourself, just output the token.`

var (
	ErrSalesTimeout = errors.New("SALES_TIMEOUT")
	ErrSalesFailed  = errors.New("SALES_FAILED")
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Client generates sales replies. It is safe for concurrent use.
type Client struct {
	cfg    config.SalesConfig
	http   *commonhttp.Client
	logger logger.Logger
}

func NewClient(cfg config.SalesConfig, log logger.Logger) *Client {
	return &Client{
		cfg: cfg,
		// the per-call context carries the deadline
		http:   commonhttp.NewClient(0),
		logger: logger.ForComponent(log, "sales"),
	}
}

// Reply sends the system instruction plus the transcript and returns the
// model's text.
func (c *Client) Reply(ctx context.Context, history []models.Message) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.cfg.Timeout)*time.Millisecond)
		defer cancel()
	}

	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    buildMessages(history),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ErrSalesTimeout
			}
		}

		resp, lastErr = c.http.PostJSON(ctx, url, headers, body)
		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			retryable := resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
			resp = nil
			if !retryable {
				break
			}
		}

		if ctx.Err() != nil {
			return "", ErrSalesTimeout
		}
	}

	if lastErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrSalesTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrSalesFailed, lastErr)
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode error: %v", ErrSalesFailed, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrSalesFailed)
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	c.logger.Debug("sales reply generated", map[string]interface{}{
		"historyLength": len(history),
		"handoff":       strings.Contains(text, HandoffToken),
	})
	return text, nil
}

func buildMessages(history []models.Message) []chatMessage {
	msgs := make([]chatMessage, 0, len(history)+1)
	msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	for _, m := range history {
		switch m.Speaker {
		case models.SpeakerUser:
			msgs = append(msgs, chatMessage{Role: "user", Content: m.Text})
		case models.SpeakerAssistant:
			msgs = append(msgs, chatMessage{Role: "assistant", Content: m.Text})
		}
	}
	return msgs
}
