// Package generator produces answers from a language model through langchaingo.
package generator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	DefaultOllamaModel = "gpt-oss:latest"
	DefaultTemperature = 0.1
)

type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKeyEnv   string
	Temperature float64
	MaxTokens   int
}

// LLM adapts an llms.Model to a single-prompt Generate call.
type LLM struct {
	model       llms.Model
	name        string
	temperature float64
	maxTokens   int
}

func Wrap(model llms.Model, name string, temperature float64, maxTokens int) *LLM {
	return &LLM{model: model, name: name, temperature: temperature, maxTokens: maxTokens}
}

// New builds the generator named by cfg.Provider.
func New(cfg Config) (*LLM, error) {
	var (
		model llms.Model
		err   error
	)
	switch cfg.Provider {
	case ProviderOllama, "":
		if cfg.Model == "" {
			cfg.Model = DefaultOllamaModel
		}
		model, err = newOllama(cfg)
	case ProviderOpenAI:
		model, err = newOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unsupported generator provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s generator: %w", cfg.Provider, err)
	}
	return Wrap(model, cfg.Model, cfg.Temperature, cfg.MaxTokens), nil
}

func newOllama(cfg Config) (llms.Model, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	return ollama.New(opts...)
}

func newOpenAI(cfg Config) (llms.Model, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	env := cfg.APIKeyEnv
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	key := strings.TrimSpace(os.Getenv(env))
	if key == "" {
		return nil, fmt.Errorf("environment variable %s is not set", env)
	}
	opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithToken(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

func (g *LLM) Name() string { return g.name }

// Generate returns the model's completion verbatim.
func (g *LLM) Generate(ctx context.Context, prompt string) (string, error) {
	opts := []llms.CallOption{llms.WithTemperature(g.temperature)}
	if g.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.maxTokens))
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, opts...)
	if err != nil {
		return "", err
	}
	return out, nil
}
