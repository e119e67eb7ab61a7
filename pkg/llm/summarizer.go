package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/quranlearn/contentpipe/internal/models"
)

// Target languages for the generated summaries.
const (
	LanguageEnglish    = "English"
	LanguageIndonesian = "Indonesian"
)

// SummarizerConfig represents the configuration for the summary engine.
type SummarizerConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Referer     string // attribution header sent to the completion gateway
	Title       string // attribution header sent to the completion gateway
}

// Summarizer generates short explanatory summaries for single verses via an
// OpenAI-compatible chat completion endpoint.
type Summarizer struct {
	config SummarizerConfig
	llm    llms.Model
}

// NewWithConfig creates a new Summarizer with the given configuration.
func NewWithConfig(config SummarizerConfig) (*Summarizer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		config.Model = "deepseek/deepseek-r1-0528:free"
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	} else if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://openrouter.ai/api/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	client := &http.Client{
		Timeout: config.Timeout,
		Transport: &attributionTransport{
			referer: config.Referer,
			title:   config.Title,
			base:    http.DefaultTransport,
		},
	}

	model, err := openai.New(
		openai.WithToken(config.APIKey),
		openai.WithModel(config.Model),
		openai.WithBaseURL(config.BaseURL),
		openai.WithHTTPClient(client),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize completion client: %w", err)
	}

	return &Summarizer{
		config: config,
		llm:    model,
	}, nil
}

// Summarize generates a "what this ayah talks about" summary for one verse
// in the given target language.
func (s *Summarizer) Summarize(ctx context.Context, verse models.Verse, language string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt(language)),
		llms.TextParts(llms.ChatMessageTypeHuman, versePrompt(verse, language)),
	}

	response, err := s.llm.GenerateContent(ctx, content,
		llms.WithTemperature(s.config.Temperature),
		llms.WithMaxTokens(s.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("completion error for %s: %w", verse.Label(), err)
	}

	if response == nil || len(response.Choices) == 0 {
		return "", fmt.Errorf("no completion returned for %s", verse.Label())
	}

	summary := strings.TrimSpace(response.Choices[0].Content)
	if summary == "" {
		return "", fmt.Errorf("empty summary returned for %s", verse.Label())
	}
	return summary, nil
}

// attributionTransport adds the gateway's optional app-attribution headers
// to every request.
type attributionTransport struct {
	referer string
	title   string
	base    http.RoundTripper
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(req)
}
