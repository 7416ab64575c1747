// Package openai backs the oracle with the OpenAI API, or any compatible
// endpoint via a custom base URL.
package openai

import (
	"context"
	"fmt"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/hearthlabs/hearth/oracle"
)

const (
	DefaultEmbedModel   = "text-embedding-3-small"
	DefaultSummaryModel = "gpt-4o-mini"
)

// Client talks to the OpenAI API for both embeddings and summaries.
type Client struct {
	client       *gopenai.Client
	embedModel   string
	summaryModel string
}

// New creates a Client. baseURL and organization are optional overrides.
func New(apiKey, baseURL, organization, embedModel, summaryModel string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if embedModel == "" {
		embedModel = DefaultEmbedModel
	}
	if summaryModel == "" {
		summaryModel = DefaultSummaryModel
	}

	config := gopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if organization != "" {
		config.OrgID = organization
	}

	return &Client{
		client:       gopenai.NewClientWithConfig(config),
		embedModel:   embedModel,
		summaryModel: summaryModel,
	}, nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, gopenai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: gopenai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, oracle.NewEmbedError(oracle.ProviderOpenAI, err)
	}
	if len(resp.Data) == 0 {
		return nil, oracle.NewEmbedError(oracle.ProviderOpenAI, fmt.Errorf("no embeddings in response"))
	}
	return resp.Data[0].Embedding, nil
}

func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, gopenai.ChatCompletionRequest{
		Model: c.summaryModel,
		Messages: []gopenai.ChatCompletionMessage{
			{
				Role:    gopenai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", oracle.NewSummarizeError(oracle.ProviderOpenAI, err)
	}
	if len(resp.Choices) == 0 {
		return "", oracle.NewSummarizeError(oracle.ProviderOpenAI, fmt.Errorf("no choices in response"))
	}
	return resp.Choices[0].Message.Content, nil
}
