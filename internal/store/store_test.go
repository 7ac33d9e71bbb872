package store

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/trustmaster/telerss/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.sqlite")

	s, err := New(context.Background(), dbPath, slog.Default())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})

	return s
}

func TestStoreGetAbsentUser(t *testing.T) {
	s := newTestStore(t)

	user, err := s.Get(context.Background(), 404)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil for an absent user, got %+v", user)
	}
}

func TestStorePutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lastFetched := time.Date(2024, time.March, 7, 12, 0, 0, 123_000_000, time.UTC)

	want := &models.User{ID: 1, Subscriptions: []models.Subscription{
		{ChatID: 10, URL: "https://a.example.com/feed", LastFetched: lastFetched, ETag: `"v1"`},
		{ChatID: 20, URL: "https://b.example.com/feed"},
	}}

	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != 1 {
		t.Fatalf("unexpected user: %+v", got)
	}
	if len(got.Subscriptions) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(got.Subscriptions))
	}

	first := got.Subscriptions[0]
	if first.ChatID != 10 || first.URL != "https://a.example.com/feed" || first.ETag != `"v1"` {
		t.Fatalf("unexpected first subscription: %+v", first)
	}
	if !first.LastFetched.Equal(lastFetched) {
		t.Fatalf("expected watermark %v, got %v", lastFetched, first.LastFetched)
	}

	second := got.Subscriptions[1]
	if !second.LastFetched.IsZero() {
		t.Fatalf("expected a zero watermark for a never-fetched subscription, got %v",
			second.LastFetched)
	}
}

func TestStorePutReplacesSubscriptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &models.User{ID: 1, Subscriptions: []models.Subscription{
		{ChatID: 10, URL: "https://a.example.com/feed"},
		{ChatID: 10, URL: "https://b.example.com/feed"},
	}}
	if err := s.Put(ctx, user); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user.Subscriptions = user.Subscriptions[:1]
	if err := s.Put(ctx, user); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Subscriptions) != 1 || got.Subscriptions[0].URL != "https://a.example.com/feed" {
		t.Fatalf("expected the replaced subscription list, got %+v", got.Subscriptions)
	}
}

func TestStoreAddSubscriptionEnforcesUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddSubscription(ctx, 1, 10, "https://a.example.com/feed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := s.AddSubscription(ctx, 1, 20, "https://a.example.com/feed")
	if !errors.Is(err, ErrAlreadySubscribed) {
		t.Fatalf("expected ErrAlreadySubscribed, got %v", err)
	}

	if err = s.AddSubscription(ctx, 2, 20, "https://a.example.com/feed"); err != nil {
		t.Fatalf("other users may subscribe to the same feed: %v", err)
	}
}

func TestStoreRemoveSubscription(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddSubscription(ctx, 1, 10, "https://a.example.com/feed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.RemoveSubscription(ctx, 1, "https://a.example.com/feed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := s.RemoveSubscription(ctx, 1, "https://a.example.com/feed")
	if !errors.Is(err, ErrNotSubscribed) {
		t.Fatalf("expected ErrNotSubscribed, got %v", err)
	}
}

func TestStoreRemoveChatSubscriptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &models.User{ID: 1, Subscriptions: []models.Subscription{
		{ChatID: 10, URL: "https://a.example.com/feed"},
		{ChatID: 10, URL: "https://b.example.com/feed"},
		{ChatID: 20, URL: "https://c.example.com/feed"},
	}}
	if err := s.Put(ctx, user); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.RemoveChatSubscriptions(ctx, 1, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Subscriptions) != 1 || got.Subscriptions[0].ChatID != 20 {
		t.Fatalf("expected only chat 20 subscriptions to remain, got %+v", got.Subscriptions)
	}
}

func TestStoreListIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{3, 1, 2} {
		if err := s.Put(ctx, &models.User{ID: id}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	ids, nextCursor, err := s.ListIDs(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("expected ids in ascending order, got %v", ids)
	}
	if nextCursor != "" {
		t.Fatalf("expected an empty cursor at the end of the listing, got %q", nextCursor)
	}

	ids, nextCursor, err = s.ListIDs(ctx, "2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != 3 || nextCursor != "" {
		t.Fatalf("expected only ids after the cursor, got %v (cursor %q)", ids, nextCursor)
	}

	if _, _, err = s.ListIDs(ctx, "not-a-cursor"); err == nil {
		t.Fatalf("expected an error for a malformed cursor")
	}
}
