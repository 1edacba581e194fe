package feed

import "github.com/feedsum/feedsum/pkg/domain"

// Merge combines freshly generated summaries with items retained from the
// previous digest. Fresh items (already newest first) go ahead of retained
// ones, duplicates by GUID are dropped defensively, and the result is
// truncated to maxItems. Total: always returns a valid item list, empty
// inputs included.
func Merge(prev, fresh []domain.SummaryItem, maxItems int) []domain.SummaryItem {
	if maxItems < 0 {
		maxItems = 0
	}

	merged := make([]domain.SummaryItem, 0, len(prev)+len(fresh))
	seen := make(map[string]struct{}, len(prev)+len(fresh))

	for _, item := range fresh {
		if _, ok := seen[item.GUID]; ok {
			continue
		}
		seen[item.GUID] = struct{}{}
		merged = append(merged, item)
	}
	for _, item := range prev {
		if _, ok := seen[item.GUID]; ok {
			continue
		}
		seen[item.GUID] = struct{}{}
		merged = append(merged, item)
	}

	if len(merged) > maxItems {
		merged = merged[:maxItems]
	}
	return merged
}
