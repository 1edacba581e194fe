package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/feedsum/feedsum/pkg/config"
	"github.com/feedsum/feedsum/pkg/content"
	"github.com/feedsum/feedsum/pkg/domain"
	"github.com/feedsum/feedsum/pkg/feed"
	"github.com/feedsum/feedsum/pkg/repository"
	"github.com/feedsum/feedsum/pkg/scheduler"
	"github.com/feedsum/feedsum/pkg/summary"
	"github.com/feedsum/feedsum/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`
	Listen string `short:"l" long:"listen" env:"LISTEN" description:"listen address, overrides config"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		log.Printf("[ERROR] can't load config: %v", err)
		os.Exit(1)
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}

	setupLog(opts.Debug, cfg.LLM.APIKey)

	log.Printf("[INFO] starting feedsum version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, cfg, opts.Debug); err != nil {
		log.Printf("[ERROR] feedsum failed: %v", err)
		cancel()
		os.Exit(1)
	}
	cancel()

	log.Print("[INFO] shutdown complete")
}

// run wires all components and blocks until the context is canceled
func run(ctx context.Context, cfg *config.Config, debug bool) error {
	store, err := repository.NewStore(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] store close error: %v", err)
		}
	}()

	prompt, err := summary.LoadTemplate(cfg.LLM.Prompt)
	if err != nil {
		return fmt.Errorf("load prompt template: %w", err)
	}

	var extractor scheduler.Extractor
	if cfg.Extraction.Enabled {
		extractor = content.NewHTTPExtractor(cfg.Extraction.Timeout, cfg.Extraction.UserAgent, cfg.Extraction.MinTextLength)
	}

	sched := scheduler.NewScheduler(scheduler.Params{
		Store:       store,
		Parser:      feed.NewParser(cfg.Schedule.FetchTimeout, "Feedsum/1.0"),
		Extractor:   extractor,
		Prompt:      prompt,
		Summarizer:  summary.NewClient(cfg.LLM),
		Generator:   feed.NewGenerator(cfg.Feed.Link),
		LoadSources: func() ([]domain.Source, error) { return config.LoadSources(cfg.Sources) },

		FeedTitle:      cfg.Feed.Title,
		FeedLink:       cfg.Feed.Link,
		OutputPath:     cfg.Feed.Output,
		MaxItems:       cfg.Feed.MaxItems,
		Lookback:       cfg.Feed.Lookback,
		Undated:        cfg.Feed.Undated,
		UpdateInterval: cfg.Schedule.UpdateInterval,
		MaxWorkers:     cfg.Schedule.MaxWorkers,
		FetchTimeout:   cfg.Schedule.FetchTimeout,
	})

	// serve a valid document even before the first successful refresh
	if err := sched.EnsureOutput(ctx); err != nil {
		return fmt.Errorf("seed output document: %w", err)
	}

	sched.Start(ctx)
	defer sched.Stop()

	srv := server.New(cfg, sched, cfg.Feed.Output, revision, debug)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(io.Discard)}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	for _, sec := range secs {
		if sec != "" {
			logOpts = append(logOpts, lgr.Secret(sec))
		}
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
