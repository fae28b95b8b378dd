// Package dryrun is a vendor that never leaves the process. It answers
// with a transcript of what would have been sent, which makes local runs
// and demos work without an API key.
package dryrun

import (
	"context"
	"fmt"
	"strings"

	"github.com/havenhealth/haven/internal/chat"
	"github.com/havenhealth/haven/internal/domain"
	"github.com/havenhealth/haven/internal/plugins"
	"github.com/havenhealth/haven/internal/plugins/ai"
)

const DryRunResponse = "Dry run: fake response sent by DryRun plugin"

var _ ai.Vendor = (*Client)(nil)

type Client struct {
	*plugins.PluginBase
}

func NewClient() *Client {
	return &Client{PluginBase: plugins.NewVendorPluginBase("DryRun", nil)}
}

func (c *Client) ListModels(context.Context) ([]string, error) {
	return []string{"dry-run-model"}, nil
}

func (c *Client) Send(_ context.Context, msgs []*chat.ChatCompletionMessage, opts *domain.ChatOptions) (string, error) {
	var b strings.Builder
	b.WriteString(c.formatOptions(opts))
	b.WriteString(chat.Transcript(msgs))
	b.WriteString("\n")
	b.WriteString(DryRunResponse)
	return b.String(), nil
}

func (c *Client) SendStream(ctx context.Context, msgs []*chat.ChatCompletionMessage, opts *domain.ChatOptions, channel chan string) error {
	defer close(channel)
	out, _ := c.Send(ctx, msgs, opts)
	for _, line := range strings.SplitAfter(out, "\n") {
		if line == "" {
			continue
		}
		select {
		case channel <- line:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *Client) formatOptions(opts *domain.ChatOptions) string {
	if opts == nil {
		return ""
	}
	return fmt.Sprintf("Model: %s\nTemperature: %.2f\nTopP: %.2f\nMaxTokens: %d\n\n",
		opts.Model, opts.Temperature, opts.TopP, opts.MaxTokens)
}
