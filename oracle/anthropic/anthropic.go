// Package anthropic backs the oracle's summary side with the Anthropic
// Messages API. Anthropic has no embeddings endpoint, so a deployment
// using this provider keeps the memory index on ollama or openai.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hearthlabs/hearth/oracle"
)

const DefaultSummaryModel = "claude-haiku-4-5"

const maxSummaryTokens = 1024

// Client talks to the Anthropic Messages API for summaries only.
type Client struct {
	client *sdk.Client
	model  string
}

// New creates a Client with the given API key.
func New(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if model == "" {
		model = DefaultSummaryModel
	}

	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &Client{client: &client, model: model}, nil
}

// Embed always fails: there is no Anthropic embeddings API.
func (c *Client) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, oracle.NewEmbedError(oracle.ProviderAnthropic,
		fmt.Errorf("anthropic has no embeddings API; use ollama or openai for the memory index"))
}

func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: maxSummaryTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", oracle.NewSummarizeError(oracle.ProviderAnthropic, err)
	}

	var sb strings.Builder
	for _, blockUnion := range message.Content {
		if block, ok := blockUnion.AsAny().(sdk.TextBlock); ok {
			sb.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", oracle.NewSummarizeError(oracle.ProviderAnthropic, fmt.Errorf("empty response from model"))
	}
	return out, nil
}
