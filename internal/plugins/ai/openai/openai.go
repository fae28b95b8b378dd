// Package openai is the OpenAI chat-completions vendor. The translation
// and therapy-chat functions both go through it.
package openai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/havenhealth/haven/internal/chat"
	"github.com/havenhealth/haven/internal/domain"
	debuglog "github.com/havenhealth/haven/internal/log"
	"github.com/havenhealth/haven/internal/plugins"
	"github.com/havenhealth/haven/internal/plugins/ai"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const providerName = "OpenAI"

var _ ai.Vendor = (*Client)(nil)

type Client struct {
	*plugins.PluginBase
	ApiKey     *plugins.SetupQuestion
	ApiBaseURL *plugins.SetupQuestion
	ApiClient  *openai.Client

	mu         sync.Mutex
	extraOpts  []option.RequestOption
	configured bool
}

// NewClient creates a client that reads OPENAI_API_KEY and
// OPENAI_API_BASE_URL on first use.
func NewClient(extra ...option.RequestOption) *Client {
	c := &Client{extraOpts: extra}
	c.PluginBase = plugins.NewVendorPluginBase(providerName, c.configure)
	c.ApiKey = c.AddSetupQuestion("API_KEY", true)
	c.ApiBaseURL = c.AddSetupQuestion("API_BASE_URL", false)
	return c
}

func (c *Client) configure() error {
	opts := []option.RequestOption{option.WithAPIKey(c.ApiKey.Value)}
	if c.ApiBaseURL.Value != "" {
		opts = append(opts, option.WithBaseURL(c.ApiBaseURL.Value))
	}
	opts = append(opts, c.extraOpts...)
	client := openai.NewClient(opts...)
	c.ApiClient = &client
	c.configured = true
	return nil
}

func (c *Client) ensureConfigured() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configured {
		return nil
	}
	return c.Configure()
}

func (c *Client) ListModels(ctx context.Context) (ret []string, err error) {
	if err = c.ensureConfigured(); err != nil {
		return
	}
	iter := c.ApiClient.Models.ListAutoPaging(ctx)
	for iter.Next() {
		ret = append(ret, iter.Current().ID)
	}
	if err = iter.Err(); err != nil {
		return nil, fmt.Errorf("openai: list models: %w", err)
	}
	return
}

func (c *Client) Send(ctx context.Context, msgs []*chat.ChatCompletionMessage, opts *domain.ChatOptions) (string, error) {
	if err := c.ensureConfigured(); err != nil {
		return "", err
	}
	params := c.buildChatCompletionParams(msgs, opts)
	debuglog.Debug(debuglog.Detailed, "openai: sending %d messages to %s\n", len(msgs), opts.Model)

	resp, err := c.ApiClient.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}
	debuglog.Debug(debuglog.Trace, "openai: finish reason %s\n", resp.Choices[0].FinishReason)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) SendStream(ctx context.Context, msgs []*chat.ChatCompletionMessage, opts *domain.ChatOptions, channel chan string) error {
	defer close(channel)
	if err := c.ensureConfigured(); err != nil {
		return err
	}

	stream := c.ApiClient.Chat.Completions.NewStreaming(ctx, c.buildChatCompletionParams(msgs, opts))
	defer stream.Close()
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			channel <- chunk.Choices[0].Delta.Content
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai: stream failed: %w", err)
	}
	return nil
}

func (c *Client) buildChatCompletionParams(msgs []*chat.ChatCompletionMessage, opts *domain.ChatOptions) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		switch strings.ToLower(msg.Role) {
		case chat.ChatMessageRoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case chat.ChatMessageRoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    shared.ChatModel(opts.Model),
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = openai.Float(opts.TopP)
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.PresencePenalty != 0 {
		params.PresencePenalty = openai.Float(opts.PresencePenalty)
	}
	if opts.FrequencyPenalty != 0 {
		params.FrequencyPenalty = openai.Float(opts.FrequencyPenalty)
	}
	return params
}
