package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/quranlearn/contentpipe/internal/models"
	"github.com/quranlearn/contentpipe/pkg/checkpoint"
	cfgPkg "github.com/quranlearn/contentpipe/pkg/config"
	"github.com/quranlearn/contentpipe/pkg/generator"
	"github.com/quranlearn/contentpipe/pkg/llm"
	"github.com/quranlearn/contentpipe/pkg/source"
	"github.com/quranlearn/contentpipe/pkg/store"
)

func main() {
	config := parseFlags()

	if err := run(config); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() *cfgPkg.Config {
	var configPath, dbPath, model, checkpointPath string
	var minDelay int

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&dbPath, "db", "", "Path to the content snapshot")
	flag.StringVar(&model, "model", "", "Completion model to use")
	flag.StringVar(&checkpointPath, "checkpoint", "", "Path to the progress file")
	flag.IntVar(&minDelay, "min-delay", 0, "Minimum seconds between completion calls")
	flag.Parse()

	// .env is optional; real environments set variables directly
	godotenv.Load()

	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	// Command line flags override the config file
	if dbPath != "" {
		config.Source.Path = dbPath
	}
	if model != "" {
		config.Completion.Model = model
	}
	if checkpointPath != "" {
		config.Pipeline.CheckpointPath = checkpointPath
	}
	if minDelay > 0 {
		config.Pipeline.MinDelaySeconds = minDelay
	}

	return config
}

func run(config *cfgPkg.Config) error {
	var invalid bool
	for _, errs := range [][]cfgPkg.ValidationError{
		config.Validate(),
		config.ValidateSource(),
		config.ValidateCompletion(),
	} {
		for _, e := range errs {
			color.Red("config: %v", e)
			invalid = true
		}
	}
	if invalid {
		return fmt.Errorf("invalid configuration")
	}

	reader, err := source.Open(config.Source.Path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %v", err)
	}
	defer reader.Close()

	verseStore, err := store.NewWithConfig(store.VerseStoreConfig{
		BaseURL:     config.Store.URL,
		ServiceRole: config.Store.ServiceRole,
		Table:       config.Store.Table,
		Timeout:     time.Duration(config.Store.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize verse store: %v", err)
	}

	engine, err := llm.NewWithConfig(llm.SummarizerConfig{
		BaseURL:     config.Completion.BaseURL,
		APIKey:      config.Completion.APIKey,
		Model:       config.Completion.Model,
		Temperature: config.Completion.Temperature,
		MaxTokens:   config.Completion.MaxTokens,
		Timeout:     time.Duration(config.Completion.TimeoutSeconds) * time.Second,
		Referer:     config.Completion.Referer,
		Title:       config.Completion.Title,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize summary engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	color.Cyan("Generating summaries with %s, pacing one call per %ds",
		config.Completion.Model, config.Pipeline.MinDelaySeconds)

	verseLabel := color.New(color.FgGreen).SprintfFunc()

	g := generator.NewWithConfig(generator.GeneratorConfig{
		MinDelay:          time.Duration(config.Pipeline.MinDelaySeconds) * time.Second,
		MaxRetries:        config.Pipeline.MaxRetries,
		BackoffMultiplier: config.Pipeline.BackoffMultiplier,
		OnVerse: func(done, total int, verse models.Verse) {
			fmt.Printf("[%d/%d] %s (id %d)\n",
				done, total, verseLabel("%s", verse.Label()), verse.ID)
		},
		OnRetry: func(verse models.Verse, attempt int, wait time.Duration, err error) {
			color.Yellow("  attempt %d failed for %s, retrying in %s: %v",
				attempt, verse.Label(), wait, err)
		},
		OnOutcome: func(verse models.Verse, err error) {
			if err != nil {
				color.Red("  ✗ %s: %v", verse.Label(), err)
			}
		},
	}, reader, verseStore, engine, checkpoint.New(config.Pipeline.CheckpointPath))

	result, err := g.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			color.Yellow("\nInterrupted. Progress is saved in %s, re-run to resume.",
				config.Pipeline.CheckpointPath)
			return nil
		}
		return err
	}

	if result.Total == 0 {
		color.Green("✓ All verses already have summaries, nothing to do")
		return nil
	}
	if !result.ExactWorkSet {
		color.Yellow("Pending-verse query failed, fell back to the checkpoint position; " +
			"verses completed out of order may be redone on a later run")
	}

	fmt.Println()
	color.Green("✓ Generated summaries for %d of %d verses", result.Generated, result.Total)
	if result.Failed > 0 {
		color.Red("✗ %d verses failed after %d attempts each:",
			result.Failed, config.Pipeline.MaxRetries)
		for _, f := range result.Failures {
			color.Red("  %s (id %d): %s", f.SurahAyah, f.AyahID, f.Error)
		}
		color.Blue("Failures are recorded in %s, re-run to try them again",
			config.Pipeline.CheckpointPath)
	}

	return nil
}
