// Package summarize forwards a task digest to Anthropic's Messages API and
// returns the model's summary.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
)

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
)

var errAPIKeyRequired = errors.New("API key required")

type Options struct {
	APIKey    string
	Model     string
	MaxTokens int

	// extra request options, e.g. a test base URL
	RequestOptions []option.RequestOption
}

type Client struct {
	client         anthropic.Client
	model          anthropic.Model
	maxTokens      int64
	prompt         *template.Template
	maxRetries     uint64
	initialBackoff time.Duration
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or summary.api_key", errAPIKeyRequired)
	}
	tmpl, err := template.New("summary").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}
	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		// retries are handled here, with backoff
		option.WithMaxRetries(0),
	}, opts.RequestOptions...)
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Client{
		client:         anthropic.NewClient(reqOpts...),
		model:          anthropic.Model(opts.Model),
		maxTokens:      int64(maxTokens),
		prompt:         tmpl,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}, nil
}

// Summarize asks the model to condense digest into a short briefing.
func (c *Client) Summarize(ctx context.Context, digest string) (string, error) {
	if strings.TrimSpace(digest) == "" {
		return "", errors.New("nothing to summarize")
	}
	prompt, err := c.renderPrompt(digest)
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var out string
	op := func() error {
		message, err := c.client.Messages.New(ctx, params)
		if err != nil {
			if ctx.Err() != nil || !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		for _, block := range message.Content {
			if block.Type == "text" {
				out = strings.TrimSpace(block.Text)
				return nil
			}
		}
		return backoff.Permanent(errors.New("unexpected response format: no text block"))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)); err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return out, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

func (c *Client) renderPrompt(digest string) (string, error) {
	var b strings.Builder
	if err := c.prompt.Execute(&b, struct{ Digest string }{digest}); err != nil {
		return "", err
	}
	return b.String(), nil
}

const promptTemplate = `Below are my current tasks. Each starts with a "# name" header followed by its notes.

{{.Digest}}
Write a short briefing of what is on my plate: group related tasks, point out anything that looks urgent or blocked, and suggest what to do first. Keep it under 200 words and do not invent tasks.`
