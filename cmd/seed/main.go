package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	cfgPkg "github.com/quranlearn/contentpipe/pkg/config"
	"github.com/quranlearn/contentpipe/pkg/seeder"
	"github.com/quranlearn/contentpipe/pkg/source"
	"github.com/quranlearn/contentpipe/pkg/store"
)

func main() {
	config, dryRun := parseFlags()

	if err := run(config, dryRun); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() (*cfgPkg.Config, bool) {
	var configPath, dbPath, table string
	var batchSize int
	var dryRun bool

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&dbPath, "db", "", "Path to the content snapshot")
	flag.StringVar(&table, "table", "", "Destination table name")
	flag.IntVar(&batchSize, "batch-size", 0, "Rows per upsert request")
	flag.BoolVar(&dryRun, "dry-run", false, "Read the snapshot and print a sample without uploading")
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
	if table != "" {
		config.Store.Table = table
	}
	if batchSize > 0 {
		config.Store.BatchSize = batchSize
	}

	return config, dryRun
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("verses"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(config *cfgPkg.Config, dryRun bool) error {
	if errs := config.ValidateSource(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return fmt.Errorf("invalid configuration")
	}
	if !dryRun {
		if errs := config.Validate(); len(errs) > 0 {
			for _, e := range errs {
				color.Red("config: %v", e)
			}
			return fmt.Errorf("invalid configuration")
		}
	}

	reader, err := source.Open(config.Source.Path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %v", err)
	}
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	total, err := reader.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count snapshot rows: %v", err)
	}
	color.Cyan("Snapshot %s holds %d verses", config.Source.Path, total)

	// Show one record so a bad join or empty translation column is obvious
	// before anything is uploaded.
	verses, err := reader.ReadVerses(ctx)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %v", err)
	}
	if len(verses) > 0 {
		sample, _ := json.MarshalIndent(verses[0], "", "  ")
		fmt.Printf("Sample record:\n%s\n", sample)
	}

	if dryRun {
		color.Green("✓ Dry run complete, nothing uploaded")
		return nil
	}

	verseStore, err := store.NewWithConfig(store.VerseStoreConfig{
		BaseURL:     config.Store.URL,
		ServiceRole: config.Store.ServiceRole,
		Table:       config.Store.Table,
		Timeout:     time.Duration(config.Store.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize verse store: %v", err)
	}

	seedingBar := getProgressBar(total, " Seeding verses")

	s := seeder.NewWithConfig(seeder.SeederConfig{
		BatchSize: config.Store.BatchSize,
		OnBatch: func(done, batches int) {
			uploaded := done * config.Store.BatchSize
			if uploaded > total {
				uploaded = total
			}
			seedingBar.Set(uploaded)
			seedingBar.Describe(color.BlueString(
				" Seeding verses (batch %d/%d)", done, batches))
		},
	}, reader, verseStore)

	result, err := s.Run(ctx)
	seedingBar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		color.Yellow("warning: %s", w)
	}
	if result.ConflictBatches > 0 {
		color.Blue("%d of %d batches hit existing rows and were retried row by row",
			result.ConflictBatches, result.Batches)
	}
	if result.CountVerified {
		color.Green("✓ Seeded %d verses in %d batches, destination now holds %d rows",
			result.SourceCount, result.Batches, result.DestinationCount)
	} else {
		color.Green("✓ Seeded %d verses in %d batches", result.SourceCount, result.Batches)
	}

	return nil
}
