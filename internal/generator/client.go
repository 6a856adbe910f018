package generator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/bankbot/aicore/internal/rag"
)

// Client adapts an eino chat model to the rag.Generator contract. Callers
// supply messages in the single normalized rag.Message shape; no runtime
// shape sniffing happens here.
type Client struct {
	// chatModel is the underlying eino model.
	chatModel model.ToolCallingChatModel

	// modelName identifies the configured model in API responses and logs.
	modelName string
}

// New constructs a Client for the configured backend.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	chatModel, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	name := cfg.Model
	if cfg.Backend == BackendAzure {
		name = cfg.AzureDeployment
	}
	return &Client{chatModel: chatModel, modelName: name}, nil
}

// NewFromEnv constructs a Client from environment variables.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, ConfigFromEnv())
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.modelName }

// Complete sends the messages to the hosted model and returns the generated
// text. Upstream failures (network, quota) are returned as errors; the
// answering chain decides how to degrade.
func (c *Client) Complete(ctx context.Context, messages []rag.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("generator: no messages to send")
	}

	einoMessages := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case rag.RoleSystem:
			einoMessages = append(einoMessages, schema.SystemMessage(m.Content))
		case rag.RoleAssistant:
			einoMessages = append(einoMessages, schema.AssistantMessage(m.Content, nil))
		case rag.RoleUser:
			einoMessages = append(einoMessages, schema.UserMessage(m.Content))
		default:
			return "", fmt.Errorf("generator: unknown message role %q", m.Role)
		}
	}

	resp, err := c.chatModel.Generate(ctx, einoMessages)
	if err != nil {
		return "", fmt.Errorf("generator: generate failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("generator: model returned nil response")
	}

	return resp.Content, nil
}
