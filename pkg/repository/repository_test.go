package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedsum/feedsum/pkg/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), Config{DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestNewStore(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Ping(context.Background()))
}

func TestStore_SeenAndMarkSeen(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seen, err := store.Seen(ctx, "guid-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.MarkSeen(ctx, "guid-1", "https://src.example.com/feed", now))

	seen, err = store.Seen(ctx, "guid-1")
	require.NoError(t, err)
	assert.True(t, seen)

	// marking again is a no-op, not an error
	require.NoError(t, store.MarkSeen(ctx, "guid-1", "https://src.example.com/feed", now.Add(time.Hour)))
	seen, err = store.Seen(ctx, "guid-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestStore_FilterUnseen(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MarkSeen(ctx, "seen-1", "u", time.Now()))
	require.NoError(t, store.MarkSeen(ctx, "seen-2", "u", time.Now()))

	entries := []domain.Entry{
		{GUID: "new-1"},
		{GUID: "seen-1"},
		{GUID: "new-2"},
		{GUID: "seen-2"},
	}

	unseen, err := store.FilterUnseen(ctx, entries)
	require.NoError(t, err)
	require.Len(t, unseen, 2)
	assert.Equal(t, "new-1", unseen[0].GUID, "input order kept")
	assert.Equal(t, "new-2", unseen[1].GUID)
}

func TestStore_CommitRefresh(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	items := []domain.SummaryItem{
		{GUID: "g1", SourceURL: "u1", SourceName: "Source One", Title: "T1", Link: "l1", Summary: "S1", GeneratedAt: now},
		{GUID: "g2", SourceURL: "u2", Title: "T2", Link: "l2", Summary: "S2", GeneratedAt: now.Add(-time.Hour)},
	}
	seenRecs := []SeenRecord{
		{GUID: "g1", SourceURL: "u1", FirstSeenAt: now},
		{GUID: "g2", SourceURL: "u2", FirstSeenAt: now},
	}

	require.NoError(t, store.CommitRefresh(ctx, items, seenRecs))

	got, err := store.GetDigestItems(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "g1", got[0].GUID, "publication order preserved")
	assert.Equal(t, "Source One", got[0].SourceName)
	assert.Equal(t, "S1", got[0].Summary)
	assert.Equal(t, "g2", got[1].GUID)

	for _, guid := range []string{"g1", "g2"} {
		seen, err := store.Seen(ctx, guid)
		require.NoError(t, err)
		assert.True(t, seen, "commit marks %s seen", guid)
	}

	// second commit replaces the digest wholesale
	next := []domain.SummaryItem{
		{GUID: "g3", Title: "T3", Summary: "S3", GeneratedAt: now.Add(time.Hour)},
	}
	require.NoError(t, store.CommitRefresh(ctx, next, []SeenRecord{{GUID: "g3", FirstSeenAt: now}}))

	got, err = store.GetDigestItems(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "g3", got[0].GUID)

	// entries dropped from the digest stay in the seen store
	seen, err := store.Seen(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestStore_CommitRefresh_OrderPreserved(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// timestamps deliberately disagree with the input order, which must win
	items := []domain.SummaryItem{
		{GUID: "first", GeneratedAt: now.Add(-2 * time.Hour)},
		{GUID: "second", GeneratedAt: now},
		{GUID: "third", GeneratedAt: now.Add(-time.Hour)},
	}
	require.NoError(t, store.CommitRefresh(ctx, items, nil))

	got, err := store.GetDigestItems(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, guid := range []string{"first", "second", "third"} {
		assert.Equal(t, guid, got[i].GUID)
	}
}

func TestStore_CommitRefresh_EmptyDigest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CommitRefresh(ctx, []domain.SummaryItem{{GUID: "g1", GeneratedAt: time.Now()}}, nil))
	require.NoError(t, store.CommitRefresh(ctx, nil, nil))

	got, err := store.GetDigestItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_PruneSeen(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.MarkSeen(ctx, "old-gone", "u", now.Add(-30*24*time.Hour)))
	require.NoError(t, store.MarkSeen(ctx, "old-kept", "u", now.Add(-30*24*time.Hour)))
	require.NoError(t, store.MarkSeen(ctx, "recent", "u", now.Add(-time.Hour)))

	// old-kept is still published in the digest, so it must survive
	require.NoError(t, store.CommitRefresh(ctx, []domain.SummaryItem{
		{GUID: "old-kept", Title: "kept", GeneratedAt: now},
	}, nil))

	pruned, err := store.PruneSeen(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	for guid, want := range map[string]bool{"old-gone": false, "old-kept": true, "recent": true} {
		seen, err := store.Seen(ctx, guid)
		require.NoError(t, err)
		assert.Equal(t, want, seen, "guid %s", guid)
	}
}

func TestStore_GetDigestItems_Empty(t *testing.T) {
	store := setupTestStore(t)

	items, err := store.GetDigestItems(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
}
