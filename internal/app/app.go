// Package app wires fetching, extraction and PDF layout into one export
// pipeline and owns the process-scoped state around it: the selector
// profile, the emoji table and the single-export-at-a-time guard.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/gothreadpdf/internal/emoji"
	"github.com/hyperifyio/gothreadpdf/internal/fetch"
	"github.com/hyperifyio/gothreadpdf/internal/layout"
	"github.com/hyperifyio/gothreadpdf/internal/model"
	"github.com/hyperifyio/gothreadpdf/internal/scrape"
	"github.com/hyperifyio/gothreadpdf/internal/store"
)

const defaultUserAgent = "gothreadpdf/1.0 (+https://github.com/hyperifyio/gothreadpdf)"

// ErrExportInFlight is returned when ExportThread is called while a previous
// export is still running. The second call is a no-op; nothing is queued.
var ErrExportInFlight = errors.New("app: an export is already in flight")

// App coordinates one export pipeline. Construct with New; an App may serve
// many sequential exports but never two at once.
type App struct {
	cfg     Config
	fetcher *scrape.Fetcher
	engine  *layout.Engine
	emoji   *emoji.Table
	sink    store.Sink

	running atomic.Bool
}

// ExportResult is the outcome of one successful export.
type ExportResult struct {
	PDF      []byte
	Document *model.ThreadDocument
	// StoredPath is where the sink put the PDF; empty when storage failed
	// or no sink is configured.
	StoredPath string
}

// New validates cfg, loads the selector profile and starts the background
// emoji table load.
func New(cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}

	profile := scrape.DefaultProfile()
	if cfg.ProfilePath != "" {
		var err error
		profile, err = scrape.LoadProfile(cfg.ProfilePath)
		if err != nil {
			return nil, fmt.Errorf("selector profile: %w", err)
		}
	}

	client := &fetch.Client{
		UserAgent:         cfg.UserAgent,
		MaxAttempts:       cfg.MaxAttempts,
		PerRequestTimeout: cfg.Timeout,
	}
	if cfg.CacheDir != "" {
		client.Cache = &fetch.PageCache{Dir: cfg.CacheDir}
	}
	if cfg.RateLimit > 0 {
		client.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	table := emoji.NewTable()
	table.StartLoading(cfg.EmojiPath)

	a := &App{
		cfg:     cfg,
		fetcher: &scrape.Fetcher{Client: client, Profile: profile},
		engine:  layout.New(layout.Options{Emoji: table}),
		emoji:   table,
	}
	if cfg.OutputDir != "" {
		a.sink = &store.DirSink{Dir: cfg.OutputDir}
	}
	return a, nil
}

// SetSink replaces the persistence sink. Useful for tests and embedders.
func (a *App) SetSink(s store.Sink) { a.sink = s }

// ExportThread runs the whole pipeline: fetch every page in order, build the
// document model, render the PDF and hand it to the sink. Exactly one export
// runs at a time; a concurrent call fails fast with ErrExportInFlight.
//
// The export either fully succeeds and returns the PDF bytes, or fails with
// no partial output. Individual page failures reduce content completeness
// but do not fail the export; a sink failure is logged and does not fail the
// export either, since the PDF is already in hand.
func (a *App) ExportThread(ctx context.Context) (*ExportResult, error) {
	if !a.running.CompareAndSwap(false, true) {
		return nil, ErrExportInFlight
	}
	defer a.running.Store(false)

	canonical, err := scrape.Canonicalize(a.cfg.ThreadURL)
	if err != nil {
		return nil, fmt.Errorf("thread URL: %w", err)
	}

	firstURL, err := scrape.PageURL(canonical, 1, a.fetcher.Profile.PageParam)
	if err != nil {
		return nil, fmt.Errorf("thread URL: %w", err)
	}
	firstDoc, err := a.fetcher.FetchDocument(ctx, firstURL)
	if err != nil {
		return nil, fmt.Errorf("first page: %w", err)
	}

	title := scrape.ExtractThreadTitle(firstDoc, a.fetcher.Profile)
	pages := a.cfg.Pages
	if pages <= 0 {
		pages = scrape.DiscoverPageCount(firstDoc, a.fetcher.Profile)
	}
	log.Info().Str("url", canonical).Str("title", title).Int("pages", pages).Msg("starting export")

	// Page 1 is fetched again inside the loop; the conditional-request
	// cache makes that second round trip cheap.
	results, err := a.fetcher.FetchAllPages(ctx, canonical, pages)
	if err != nil {
		return nil, err
	}

	doc := scrape.BuildDocument(title, canonical, results, time.Now())
	if len(doc.Posts) == 0 {
		return nil, errors.New("app: no posts could be extracted from any page")
	}

	pdf, err := a.engine.Render(ctx, doc)
	if err != nil {
		return nil, err
	}
	log.Info().Int("posts", len(doc.Posts)).Int("bytes", len(pdf)).Msg("pdf rendered")

	res := &ExportResult{PDF: pdf, Document: doc}
	if a.sink != nil {
		path, err := a.sink.Store(ctx, pdf, store.ExportMeta{
			Title:     doc.Title,
			SourceURL: doc.SourceURL,
			Posts:     len(doc.Posts),
			Pages:     doc.PageCount(),
			SavedAt:   doc.ScrapedAt,
		})
		if err != nil {
			// The caller already has the PDF; storage is best effort.
			log.Error().Err(err).Msg("export storage failed")
		} else {
			res.StoredPath = path
		}
	}
	return res, nil
}
