package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"

	"github.com/feedsum/feedsum/pkg/domain"
)

// SeenRecord marks one entry as processed, persisted across runs
type SeenRecord struct {
	GUID        string    `db:"guid"`
	SourceURL   string    `db:"source_url"`
	FirstSeenAt time.Time `db:"first_seen_at"`
}

// Seen reports whether the entry id has been processed in a prior cycle
func (s *Store) Seen(ctx context.Context, guid string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(1) FROM seen_entries WHERE guid = ?", guid)
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return count > 0, nil
}

// FilterUnseen returns the entries whose ids are not yet in the seen store,
// input order kept
func (s *Store) FilterUnseen(ctx context.Context, entries []domain.Entry) ([]domain.Entry, error) {
	unseen := make([]domain.Entry, 0, len(entries))
	for _, e := range entries {
		seen, err := s.Seen(ctx, e.GUID)
		if err != nil {
			return nil, err
		}
		if !seen {
			unseen = append(unseen, e)
		}
	}
	return unseen, nil
}

// MarkSeen records an entry id as processed. Marking an already-seen id is a
// no-op, not an error. Lock errors are retried with backoff.
func (s *Store) MarkSeen(ctx context.Context, guid, sourceURL string, ts time.Time) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := "INSERT OR IGNORE INTO seen_entries (guid, source_url, first_seen_at) VALUES (?, ?, ?)"
		_, err := s.db.ExecContext(ctx, query, guid, sourceURL, ts)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("mark seen: %w", err)}
		}
		return nil
	})
}

// PruneSeen deletes seen records older than cutoff, except those still
// referenced by the current digest. Bounds store growth without ever
// re-opening the door for a published entry.
func (s *Store) PruneSeen(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM seen_entries
		WHERE first_seen_at < ?
		AND guid NOT IN (SELECT guid FROM digest_items)
	`
	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune seen rows affected: %w", err)
	}
	return n, nil
}
