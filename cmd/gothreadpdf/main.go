package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gothreadpdf/internal/app"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		threadURL   string
		pages       int
		outputPath  string
		outputDir   string
		configPath  string
		profilePath string
		emojiPath   string
		userAgent   string
		timeout     time.Duration
		attempts    int
		rateLimit   float64
		cacheDir    string
		verbose     bool
	)

	flag.StringVar(&threadURL, "url", os.Getenv("THREAD_URL"), "Forum thread URL to export")
	flag.IntVar(&pages, "pages", 0, "Total page count; 0 discovers it from the pagination control")
	flag.StringVar(&outputPath, "out", "", "Write the PDF to this exact path")
	flag.StringVar(&outputDir, "out.dir", os.Getenv("OUT_DIR"), "Store the PDF and manifest in this directory")
	flag.StringVar(&configPath, "config", os.Getenv("GOTHREADPDF_CONFIG"), "Optional YAML/JSON config file")
	flag.StringVar(&profilePath, "profile", "", "Selector profile YAML overlaying the built-in forum selectors")
	flag.StringVar(&emojiPath, "emoji.file", "", "YAML emoji description table overriding the embedded one")
	flag.StringVar(&userAgent, "ua", "", "Custom User-Agent for page requests")
	flag.DurationVar(&timeout, "timeout", 20*time.Second, "Per-request timeout")
	flag.IntVar(&attempts, "attempts", 3, "Attempts per page including the first")
	flag.Float64Var(&rateLimit, "rate", 0, "Page requests per second; 0 disables pacing")
	flag.StringVar(&cacheDir, "cache.dir", os.Getenv("CACHE_DIR"), "Page cache directory; empty disables caching")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg := app.Config{
		ThreadURL:   threadURL,
		Pages:       pages,
		OutputPath:  outputPath,
		OutputDir:   outputDir,
		ProfilePath: profilePath,
		EmojiPath:   emojiPath,
		UserAgent:   userAgent,
		Timeout:     timeout,
		MaxAttempts: attempts,
		RateLimit:   rateLimit,
		CacheDir:    cacheDir,
		Verbose:     verbose,
	}

	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config file")
		}
		app.ApplyFileConfig(&cfg, fc)
		if cfg.Verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	}
	if cfg.OutputPath == "" && cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := a.ExportThread(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("export failed")
	}

	if cfg.OutputPath != "" {
		if err := os.WriteFile(cfg.OutputPath, res.PDF, 0o644); err != nil {
			log.Fatal().Err(err).Str("path", cfg.OutputPath).Msg("failed to write PDF")
		}
		fmt.Println(cfg.OutputPath)
		return
	}
	if res.StoredPath != "" {
		fmt.Println(res.StoredPath)
	}
}
