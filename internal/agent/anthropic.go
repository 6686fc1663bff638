package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultMaxTokens = 1024
	DefaultSystem    = "You are a personal assistant. Use the memory context, when given, to personalise your answer."
)

// ErrEmptyReply is returned when the model answers without any text.
var ErrEmptyReply = errors.New("agent returned no text")

// AnthropicOptions configures AnthropicAgent.
type AnthropicOptions struct {
	APIKey    string
	Model     string
	MaxTokens int64
	System    string
	// ClientOptions are passed to the SDK client after the API key.
	ClientOptions []option.RequestOption
}

// AnthropicAgent replies through the Anthropic Messages API.
type AnthropicAgent struct {
	client *anthropic.Client
	opts   AnthropicOptions
}

// NewAnthropicAgent creates an agent. Empty options take their defaults.
func NewAnthropicAgent(opts AnthropicOptions) *AnthropicAgent {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.System == "" {
		opts.System = DefaultSystem
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	client := anthropic.NewClient(clientOpts...)
	return &AnthropicAgent{client: &client, opts: opts}
}

func (a *AnthropicAgent) Reply(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.opts.Model),
		MaxTokens: a.opts.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(Prompt(req))),
		},
		System: []anthropic.TextBlockParam{
			{Text: a.opts.System},
		},
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", goerr.Wrap(err, "anthropic message request failed",
			goerr.V("owner", req.Owner), goerr.V("model", a.opts.Model))
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", goerr.Wrap(ErrEmptyReply, "empty reply", goerr.V("stop_reason", string(resp.StopReason)))
	}
	return text.String(), nil
}
