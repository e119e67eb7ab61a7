package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Completion struct {
		BaseURL        string  `yaml:"base_url"`
		APIKey         string  `yaml:"-"` // env only, never from file
		Model          string  `yaml:"model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		Referer        string  `yaml:"referer"`
		Title          string  `yaml:"title"`
	} `yaml:"completion"`

	Store struct {
		URL            string `yaml:"url"`
		ServiceRole    string `yaml:"-"` // env only, never from file
		Table          string `yaml:"table"`
		BatchSize      int    `yaml:"batch_size"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"store"`

	Source struct {
		Path string `yaml:"path"`
	} `yaml:"source"`

	Pipeline struct {
		MinDelaySeconds   int    `yaml:"min_delay_seconds"`
		MaxRetries        int    `yaml:"max_retries"`
		BackoffMultiplier int    `yaml:"backoff_multiplier"`
		CheckpointPath    string `yaml:"checkpoint_path"`
	} `yaml:"pipeline"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/contentpipe/config.yaml"),
			"/etc/contentpipe/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Completion.BaseURL == "" {
		config.Completion.BaseURL = "https://openrouter.ai/api/v1"
	}
	if config.Completion.Model == "" {
		config.Completion.Model = "deepseek/deepseek-r1-0528:free"
	}
	if config.Completion.MaxTokens == 0 {
		config.Completion.MaxTokens = 1000
	}
	if config.Completion.Temperature == 0 {
		config.Completion.Temperature = 0.7
	}
	if config.Completion.TimeoutSeconds == 0 {
		config.Completion.TimeoutSeconds = 60
	}
	if config.Completion.Referer == "" {
		config.Completion.Referer = "https://quran-learn.app"
	}
	if config.Completion.Title == "" {
		config.Completion.Title = "Quran Learn App"
	}

	if config.Store.Table == "" {
		config.Store.Table = "ayat"
	}
	if config.Store.BatchSize == 0 {
		config.Store.BatchSize = 100
	}
	if config.Store.TimeoutSeconds == 0 {
		config.Store.TimeoutSeconds = 30
	}

	if config.Source.Path == "" {
		config.Source.Path = "quran_content.db"
	}

	if config.Pipeline.MinDelaySeconds == 0 {
		config.Pipeline.MinDelaySeconds = 2
	}
	if config.Pipeline.MaxRetries == 0 {
		config.Pipeline.MaxRetries = 3
	}
	if config.Pipeline.BackoffMultiplier == 0 {
		config.Pipeline.BackoffMultiplier = 2
	}
	if config.Pipeline.CheckpointPath == "" {
		config.Pipeline.CheckpointPath = "generation_progress.json"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		config.Completion.APIKey = key
	}
	if url := os.Getenv("SUPABASE_URL"); url != "" {
		config.Store.URL = url
	}
	if role := os.Getenv("SUPABASE_SERVICE_ROLE"); role != "" {
		config.Store.ServiceRole = role
	}
	if path := os.Getenv("QURAN_DB_PATH"); path != "" {
		config.Source.Path = path
	}
}
