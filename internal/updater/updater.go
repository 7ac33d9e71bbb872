package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/trustmaster/telerss/internal/models"
)

// Updater refreshes a single subscription: fetch, diff, watermark advance.
type Updater struct {
	fetcher       *Fetcher
	postsOnNewSub int
	log           *slog.Logger
}

func NewUpdater(fetcher *Fetcher, postsOnNewSub int, log *slog.Logger) *Updater {
	return &Updater{
		fetcher:       fetcher,
		postsOnNewSub: postsOnNewSub,
		log:           log,
	}
}

// Update fetches the subscription's feed through the run cache, diffs the
// items against the watermark and returns the update carrying the advanced
// subscription. The watermark moves to the feed's fetch time and the
// validator is taken from the same fetch, so the caller observes the new
// state regardless of whether any posts were delivered. A not-modified
// response yields zero posts and leaves the subscription untouched.
func (u *Updater) Update(
	ctx context.Context,
	cache *Cache,
	sub models.Subscription,
) (models.Update, error) {
	cached, err := u.fetcher.Fetch(ctx, cache, sub)
	if errors.Is(err, errNotModified) {
		return models.Update{Subscription: sub}, nil
	}
	if err != nil {
		return models.Update{}, fmt.Errorf("fetch subscription: %w", err)
	}

	posts := NewPosts(cached, sub, u.postsOnNewSub)

	u.log.DebugContext(ctx, "Subscription is updated",
		"feedURL", sub.URL,
		"chatID", sub.ChatID,
		"newPostCount", len(posts))

	sub.LastFetched = cached.FetchedAt
	sub.ETag = cached.ETag

	return models.Update{
		Subscription: sub,
		FeedTitle:    cached.Title,
		Posts:        posts,
	}, nil
}
