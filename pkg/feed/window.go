package feed

import (
	"time"

	"github.com/feedsum/feedsum/pkg/config"
	"github.com/feedsum/feedsum/pkg/domain"
)

// Window filters entries to the lookback window ending at now. An entry is
// kept iff now-published <= lookback, so a zero lookback excludes everything
// published before now. Undated entries follow the explicit policy: treated
// as published now (included) or dropped. Pure function, input order kept.
func Window(entries []domain.Entry, now time.Time, lookback time.Duration, undated string) []domain.Entry {
	kept := make([]domain.Entry, 0, len(entries))
	for _, e := range entries {
		if !e.HasPublished {
			if undated == config.UndatedInclude {
				kept = append(kept, e)
			}
			continue
		}
		if now.Sub(e.Published) <= lookback {
			kept = append(kept, e)
		}
	}
	return kept
}
