package config

import (
	"fmt"
	"net/url"
	"os"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration shared by both pipeline phases. The
// remote store credentials are required before any work starts.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Store.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "store.url",
			Message: "SUPABASE_URL is required",
		})
	} else if _, err := url.Parse(c.Store.URL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "store.url",
			Message: "invalid store URL",
		})
	}

	if c.Store.ServiceRole == "" {
		errors = append(errors, ValidationError{
			Field:   "store.service_role",
			Message: "SUPABASE_SERVICE_ROLE is required",
		})
	}

	if c.Store.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "store.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Store.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "store.timeout_seconds",
			Message: "timeout_seconds must be positive",
		})
	}

	return errors
}

// ValidateSource checks that the local snapshot exists. Only the seeder and
// the generator's prompt builder read it.
func (c *Config) ValidateSource() []ValidationError {
	var errors []ValidationError

	if c.Source.Path == "" {
		errors = append(errors, ValidationError{
			Field:   "source.path",
			Message: "snapshot path is required",
		})
	} else if _, err := os.Stat(c.Source.Path); err != nil {
		errors = append(errors, ValidationError{
			Field:   "source.path",
			Message: fmt.Sprintf("snapshot not found at %s", c.Source.Path),
		})
	}

	return errors
}

// ValidateCompletion checks the settings the summary generator needs on top
// of the shared ones.
func (c *Config) ValidateCompletion() []ValidationError {
	var errors []ValidationError

	if c.Completion.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "completion.api_key",
			Message: "OPENROUTER_API_KEY is required",
		})
	}

	if _, err := url.Parse(c.Completion.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "completion.base_url",
			Message: "invalid completion base URL",
		})
	}

	if c.Completion.MaxTokens < 1 || c.Completion.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "completion.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "completion.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Pipeline.MinDelaySeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.min_delay_seconds",
			Message: "min_delay_seconds must be positive",
		})
	}

	if c.Pipeline.MaxRetries < 1 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.max_retries",
			Message: "max_retries must be positive",
		})
	}

	if c.Pipeline.BackoffMultiplier < 2 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.backoff_multiplier",
			Message: "backoff_multiplier must be at least 2",
		})
	}

	if c.Pipeline.CheckpointPath == "" {
		errors = append(errors, ValidationError{
			Field:   "pipeline.checkpoint_path",
			Message: "checkpoint_path is required",
		})
	}

	return errors
}
