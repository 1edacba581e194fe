package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"

	"github.com/feedsum/feedsum/pkg/domain"
)

// digestItemSQL represents a digest item for SQL operations
type digestItemSQL struct {
	GUID        string    `db:"guid"`
	SourceURL   string    `db:"source_url"`
	SourceName  string    `db:"source_name"`
	Title       string    `db:"title"`
	Link        string    `db:"link"`
	Summary     string    `db:"summary"`
	GeneratedAt time.Time `db:"generated_at"`
	Position    int       `db:"position"`
}

// GetDigestItems returns the current digest items in publication order, as
// decided at merge time
func (s *Store) GetDigestItems(ctx context.Context) ([]domain.SummaryItem, error) {
	var sqlItems []digestItemSQL
	err := s.db.SelectContext(ctx, &sqlItems, "SELECT * FROM digest_items ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("get digest items: %w", err)
	}

	items := make([]domain.SummaryItem, len(sqlItems))
	for i, it := range sqlItems {
		items[i] = domain.SummaryItem{
			GUID:        it.GUID,
			SourceURL:   it.SourceURL,
			SourceName:  it.SourceName,
			Title:       it.Title,
			Link:        it.Link,
			Summary:     it.Summary,
			GeneratedAt: it.GeneratedAt,
		}
	}
	return items, nil
}

// CommitRefresh atomically flushes the result of one refresh: the merged
// digest replaces the previous one and the freshly summarized entry ids are
// marked seen, all in a single transaction. Either everything lands or the
// previous state stays untouched. Lock errors retry the whole transaction.
func (s *Store) CommitRefresh(ctx context.Context, items []domain.SummaryItem, seen []SeenRecord) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("begin commit tx: %w", err)}
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM digest_items"); err != nil {
			if isLockError(err) {
				return err
			}
			return &criticalError{err: fmt.Errorf("clear digest items: %w", err)}
		}

		insertItem := `
			INSERT INTO digest_items (guid, source_url, source_name, title, link, summary, generated_at, position)
			VALUES (:guid, :source_url, :source_name, :title, :link, :summary, :generated_at, :position)
		`
		for i, item := range items {
			sqlItem := digestItemSQL{
				GUID:        item.GUID,
				SourceURL:   item.SourceURL,
				SourceName:  item.SourceName,
				Title:       item.Title,
				Link:        item.Link,
				Summary:     item.Summary,
				GeneratedAt: item.GeneratedAt,
				Position:    i,
			}
			if _, err := tx.NamedExecContext(ctx, insertItem, sqlItem); err != nil {
				if isLockError(err) {
					return err
				}
				return &criticalError{err: fmt.Errorf("insert digest item %s: %w", item.GUID, err)}
			}
		}

		insertSeen := "INSERT OR IGNORE INTO seen_entries (guid, source_url, first_seen_at) VALUES (:guid, :source_url, :first_seen_at)"
		for _, rec := range seen {
			if _, err := tx.NamedExecContext(ctx, insertSeen, rec); err != nil {
				if isLockError(err) {
					return err
				}
				return &criticalError{err: fmt.Errorf("mark seen %s: %w", rec.GUID, err)}
			}
		}

		if err := tx.Commit(); err != nil {
			if isLockError(err) {
				return err
			}
			return &criticalError{err: fmt.Errorf("commit refresh: %w", err)}
		}
		return nil
	})
}
