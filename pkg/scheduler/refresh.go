package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/feedsum/feedsum/pkg/domain"
	"github.com/feedsum/feedsum/pkg/feed"
	"github.com/feedsum/feedsum/pkg/repository"
)

// seen records are pruned once this much older than the lookback window,
// with a floor so short windows don't flush the store on every refresh
const pruneFloor = 7 * 24 * time.Hour

// Refresh runs one full refresh cycle. Per-source fetch failures and
// per-entry summarization failures are isolated: logged, skipped, and in the
// summarization case left unseen so the entry is retried next cycle. Only
// persistence failures abort the cycle, and they leave the previous digest
// and seen store exactly as they were.
func (s *Scheduler) Refresh(ctx context.Context) error {
	if !s.running.TryLock() {
		return ErrRefreshRunning
	}
	defer s.running.Unlock()

	started := time.Now()

	sources, err := s.loadSources()
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}
	if len(sources) == 0 {
		lgr.Printf("[WARN] no usable feed sources configured, digest left unchanged")
	}

	prev, err := s.store.GetDigestItems(ctx)
	if err != nil {
		return fmt.Errorf("read previous digest: %w", err)
	}

	entries := s.fetchAll(ctx, sources)
	entries = feed.Window(entries, started, s.lookback, s.undated)

	fresh, err := s.store.FilterUnseen(ctx, entries)
	if err != nil {
		return fmt.Errorf("dedup filter: %w", err)
	}
	lgr.Printf("[INFO] %d entries within window, %d new", len(entries), len(fresh))

	items, seen := s.summarizeAll(ctx, fresh)

	merged := feed.Merge(prev, items, s.maxItems)

	digest := &domain.Digest{
		Title:       s.feedTitle,
		Link:        s.feedLink,
		GeneratedAt: time.Now(),
		Items:       merged,
	}
	rendered, err := s.generator.RenderRSS(digest)
	if err != nil {
		return fmt.Errorf("render digest: %w", err)
	}

	// commit: flush state first, then atomically replace the served file.
	// a crash between the two is healed on the next cycle, which re-renders
	// the file from the committed state.
	if err := s.store.CommitRefresh(ctx, merged, seen); err != nil {
		return fmt.Errorf("commit refresh state: %w", err)
	}
	if err := feed.WriteAtomic(s.outputPath, []byte(rendered)); err != nil {
		return fmt.Errorf("publish digest: %w", err)
	}

	s.prune(ctx, started)

	s.mu.Lock()
	s.lastRefresh = time.Now()
	s.mu.Unlock()

	lgr.Printf("[INFO] refresh completed in %v: %d summarized, %d published", time.Since(started).Round(time.Millisecond), len(items), len(merged))
	return nil
}

// fetchAll fetches all sources concurrently, bounded by maxWorkers. A source
// failing to fetch or parse contributes nothing and never aborts the cycle.
func (s *Scheduler) fetchAll(ctx context.Context, sources []domain.Source) []domain.Entry {
	results := make([][]domain.Entry, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)

	for i, src := range sources {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, s.fetchTimeout)
			defer cancel()

			entries, err := s.parser.Parse(fetchCtx, src)
			if err != nil {
				lgr.Printf("[WARN] failed to fetch feed %s: %v", src.Label(), err)
				return nil
			}
			results[i] = entries
			lgr.Printf("[DEBUG] fetched %d entries from %s", len(entries), src.Label())
			return nil
		})
	}
	_ = g.Wait() // workers never return errors, failures are logged per source

	var entries []domain.Entry
	for _, r := range results {
		entries = append(entries, r...)
	}
	return entries
}

// summarizeAll summarizes new entries one at a time, newest first, to stay
// within backend rate limits. A failed entry is skipped and deliberately not
// marked seen, so omission from the seen store retries it next cycle.
func (s *Scheduler) summarizeAll(ctx context.Context, entries []domain.Entry) ([]domain.SummaryItem, []repository.SeenRecord) {
	sorted := make([]domain.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Published.After(sorted[j].Published) })

	items := make([]domain.SummaryItem, 0, len(sorted))
	seen := make([]repository.SeenRecord, 0, len(sorted))

	for _, entry := range sorted {
		if ctx.Err() != nil {
			break
		}

		text, err := s.summarizeEntry(ctx, entry)
		if err != nil {
			lgr.Printf("[WARN] skipping entry %q from %s: %v", entry.Title, entry.SourceName, err)
			continue
		}

		now := time.Now()
		items = append(items, domain.SummaryItem{
			GUID:        entry.GUID,
			SourceURL:   entry.SourceURL,
			SourceName:  entry.SourceName,
			Title:       entry.Title,
			Link:        entry.Link,
			Summary:     text,
			GeneratedAt: now,
		})
		seen = append(seen, repository.SeenRecord{GUID: entry.GUID, SourceURL: entry.SourceURL, FirstSeenAt: now})
	}

	return items, seen
}

// summarizeEntry renders the prompt for one entry and calls the backend.
// With extraction enabled, the full article text replaces the feed body;
// extraction failure falls back to the feed body.
func (s *Scheduler) summarizeEntry(ctx context.Context, entry domain.Entry) (string, error) {
	if s.extractor != nil && entry.Link != "" {
		if text, err := s.extractor.Extract(ctx, entry.Link); err != nil {
			lgr.Printf("[DEBUG] extraction failed for %s, using feed body: %v", entry.Link, err)
		} else {
			entry.Body = text
		}
	}

	prompt, err := s.prompt.Render(entry)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	text, err := s.summarizer.Summarize(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return text, nil
}

// EnsureOutput publishes the current digest so a valid document is served
// even before the first successful refresh
func (s *Scheduler) EnsureOutput(ctx context.Context) error {
	items, err := s.store.GetDigestItems(ctx)
	if err != nil {
		return fmt.Errorf("read digest: %w", err)
	}

	digest := &domain.Digest{
		Title:       s.feedTitle,
		Link:        s.feedLink,
		GeneratedAt: time.Now(),
		Items:       items,
	}
	rendered, err := s.generator.RenderRSS(digest)
	if err != nil {
		return fmt.Errorf("render digest: %w", err)
	}
	if err := feed.WriteAtomic(s.outputPath, []byte(rendered)); err != nil {
		return fmt.Errorf("publish digest: %w", err)
	}
	return nil
}

// prune bounds seen-store growth. Records still referenced by the digest are
// kept regardless of age; failures only warn, next cycle retries.
func (s *Scheduler) prune(ctx context.Context, now time.Time) {
	age := 4 * s.lookback
	if age < pruneFloor {
		age = pruneFloor
	}

	n, err := s.store.PruneSeen(ctx, now.Add(-age))
	if err != nil {
		lgr.Printf("[WARN] failed to prune seen store: %v", err)
		return
	}
	if n > 0 {
		lgr.Printf("[DEBUG] pruned %d seen records older than %v", n, age)
	}
}
