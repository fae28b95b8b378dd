package ai

import (
	"context"

	"github.com/havenhealth/haven/internal/chat"
	"github.com/havenhealth/haven/internal/domain"
)

// Vendor is a chat-completion provider.
type Vendor interface {
	GetName() string
	IsConfigured() bool
	Configure() error
	ListModels(ctx context.Context) ([]string, error)
	Send(ctx context.Context, msgs []*chat.ChatCompletionMessage, opts *domain.ChatOptions) (string, error)
	// SendStream writes content deltas to channel and closes it when done.
	SendStream(ctx context.Context, msgs []*chat.ChatCompletionMessage, opts *domain.ChatOptions, channel chan string) error
}
