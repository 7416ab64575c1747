package oracle

import "context"

// Provider names accepted in configuration.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Oracle is the full model surface the daemon uses: embeddings for the
// memory index, text generation for the profiler. Concrete clients live in
// the provider subpackages; wiring picks one so import cycles stay out of
// this package.
type Oracle interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Summarize(ctx context.Context, prompt string) (string, error)
}
