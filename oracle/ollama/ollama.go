// Package ollama backs the oracle with a local Ollama instance.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/hearthlabs/hearth/oracle"
)

const (
	DefaultEmbedModel   = "nomic-embed-text"
	DefaultSummaryModel = "llama3.2:3b"
)

// Client talks to one Ollama host for both embeddings and summaries.
type Client struct {
	client       *api.Client
	embedModel   string
	summaryModel string
}

// New creates a Client. An empty host falls back to OLLAMA_HOST and then
// the local default, matching the ollama CLI's own resolution.
func New(host, embedModel, summaryModel string, timeout time.Duration) (*Client, error) {
	if embedModel == "" {
		embedModel = DefaultEmbedModel
	}
	if summaryModel == "" {
		summaryModel = DefaultSummaryModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var cli *api.Client
	if host == "" {
		var err error
		cli, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
	} else {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		base, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("parse ollama host %q: %w", host, err)
		}
		cli = api.NewClient(base, &http.Client{Timeout: timeout})
	}

	return &Client{
		client:       cli,
		embedModel:   embedModel,
		summaryModel: summaryModel,
	}, nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embed(ctx, &api.EmbedRequest{
		Model: c.embedModel,
		Input: text,
	})
	if err != nil {
		return nil, oracle.NewEmbedError(oracle.ProviderOllama, err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, oracle.NewEmbedError(oracle.ProviderOllama, fmt.Errorf("no embeddings in response"))
	}
	return resp.Embeddings[0], nil
}

func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	var sb strings.Builder
	stream := false
	req := &api.GenerateRequest{
		Model:  c.summaryModel,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature": 0.3,
		},
	}

	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", oracle.NewSummarizeError(oracle.ProviderOllama, err)
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", oracle.NewSummarizeError(oracle.ProviderOllama, fmt.Errorf("empty response from model"))
	}
	return out, nil
}
