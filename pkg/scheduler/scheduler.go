package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/feedsum/feedsum/pkg/domain"
	"github.com/feedsum/feedsum/pkg/repository"
)

// ErrRefreshRunning is returned when a refresh is requested while another
// one is still in flight. Such ticks are dropped, never queued.
var ErrRefreshRunning = errors.New("refresh already running")

// Store interface for refresh state persistence
type Store interface {
	GetDigestItems(ctx context.Context) ([]domain.SummaryItem, error)
	FilterUnseen(ctx context.Context, entries []domain.Entry) ([]domain.Entry, error)
	CommitRefresh(ctx context.Context, items []domain.SummaryItem, seen []repository.SeenRecord) error
	PruneSeen(ctx context.Context, cutoff time.Time) (int64, error)
}

// Parser interface for feed fetching and parsing
type Parser interface {
	Parse(ctx context.Context, src domain.Source) ([]domain.Entry, error)
}

// Extractor interface for full-article content extraction
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// PromptRenderer interface for prompt template rendering
type PromptRenderer interface {
	Render(entry domain.Entry) (string, error)
}

// Summarizer interface for the LLM backend
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Generator interface for rendering the digest document
type Generator interface {
	RenderRSS(digest *domain.Digest) (string, error)
}

// Scheduler drives the periodic refresh: fetch sources, filter to the
// lookback window, summarize new entries, merge into the digest, publish
// atomically. At most one refresh runs at a time.
type Scheduler struct {
	store       Store
	parser      Parser
	extractor   Extractor // nil when extraction is disabled
	prompt      PromptRenderer
	summarizer  Summarizer
	generator   Generator
	loadSources func() ([]domain.Source, error)

	feedTitle      string
	feedLink       string
	outputPath     string
	maxItems       int
	lookback       time.Duration
	undated        string
	updateInterval time.Duration
	maxWorkers     int
	fetchTimeout   time.Duration

	running sync.Mutex // held for the duration of one refresh
	wg      sync.WaitGroup
	cancel  context.CancelFunc

	mu          sync.Mutex
	lastRefresh time.Time
}

// Params holds scheduler dependencies and configuration
type Params struct {
	Store       Store
	Parser      Parser
	Extractor   Extractor
	Prompt      PromptRenderer
	Summarizer  Summarizer
	Generator   Generator
	LoadSources func() ([]domain.Source, error)

	FeedTitle      string
	FeedLink       string
	OutputPath     string
	MaxItems       int
	Lookback       time.Duration
	Undated        string
	UpdateInterval time.Duration
	MaxWorkers     int
	FetchTimeout   time.Duration
}

// NewScheduler creates a new scheduler instance
func NewScheduler(p Params) *Scheduler {
	if p.UpdateInterval == 0 {
		p.UpdateInterval = 30 * time.Minute
	}
	if p.MaxWorkers == 0 {
		p.MaxWorkers = 5
	}
	if p.FetchTimeout == 0 {
		p.FetchTimeout = 15 * time.Second
	}
	if p.MaxItems == 0 {
		p.MaxItems = 50
	}

	return &Scheduler{
		store:          p.Store,
		parser:         p.Parser,
		extractor:      p.Extractor,
		prompt:         p.Prompt,
		summarizer:     p.Summarizer,
		generator:      p.Generator,
		loadSources:    p.LoadSources,
		feedTitle:      p.FeedTitle,
		feedLink:       p.FeedLink,
		outputPath:     p.OutputPath,
		maxItems:       p.MaxItems,
		lookback:       p.Lookback,
		undated:        p.Undated,
		updateInterval: p.UpdateInterval,
		maxWorkers:     p.MaxWorkers,
		fetchTimeout:   p.FetchTimeout,
	}
}

// Start begins the refresh loop: one refresh immediately, then one per tick.
// Ticks arriving while a refresh is running are dropped.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.updateInterval)
		defer ticker.Stop()

		s.tick(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()

	lgr.Printf("[INFO] scheduler started with update interval %v, %d fetch workers", s.updateInterval, s.maxWorkers)
}

// Stop gracefully stops the scheduler, waiting for an in-flight refresh
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

// RefreshNow triggers an immediate refresh, dropped if one is running
func (s *Scheduler) RefreshNow(ctx context.Context) error {
	return s.Refresh(ctx)
}

// LastRefresh returns the completion time of the last successful refresh,
// zero before the first one
func (s *Scheduler) LastRefresh() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefresh
}

// tick runs one scheduled refresh, logging instead of propagating errors so
// the loop always survives to the next tick
func (s *Scheduler) tick(ctx context.Context) {
	switch err := s.Refresh(ctx); {
	case err == nil:
	case errors.Is(err, ErrRefreshRunning):
		lgr.Printf("[INFO] tick dropped, %v", err)
	case errors.Is(err, context.Canceled):
		lgr.Printf("[DEBUG] refresh canceled")
	default:
		lgr.Printf("[ERROR] refresh failed: %v", err)
	}
}
