package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/trustmaster/telerss/internal/feed"
	"github.com/trustmaster/telerss/internal/models"
)

const defaultFeedTimeout = 20 * time.Second

// errNotModified reports that the feed source confirmed the previously
// fetched content is still current. It is a short-circuit signal, not a
// failure: the updater translates it into zero new posts without touching
// the subscription.
var errNotModified = errors.New("feed is not modified")

// Parser converts a raw feed document into a channel with its items.
type Parser interface {
	Parse(ctx context.Context, document string) (*feed.Channel, error)
}

// Fetcher performs conditional feed retrievals. Fetch results are shared
// through the run cache so that each distinct URL is retrieved and parsed
// at most once per run.
type Fetcher struct {
	client *http.Client
	parser Parser
	log    *slog.Logger
}

func NewFetcher(parser Parser, timeout time.Duration, log *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFeedTimeout
	}

	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		parser: parser,
		log:    log,
	}
}

// Fetch returns the feed for the subscription's URL, consulting the run
// cache first. Concurrent fetches of one URL collapse into a single
// retrieval whose result (or error) is shared by all of them. A 304
// response surfaces as errNotModified and is never cached; transport and
// parse failures are not cached either, so they cannot poison the run for
// other subscriptions sharing the URL.
func (f *Fetcher) Fetch(
	ctx context.Context,
	cache *Cache,
	sub models.Subscription,
) (*CachedFeed, error) {
	if cached, ok := cache.Lookup(sub.URL); ok {
		return cached, nil
	}

	v, err, _ := cache.flight.Do(sub.URL, func() (any, error) {
		if cached, ok := cache.Lookup(sub.URL); ok {
			return cached, nil
		}

		cached, retrieveErr := f.retrieve(ctx, sub)
		if retrieveErr != nil {
			return nil, retrieveErr
		}

		cache.Store(sub.URL, cached)

		return cached, nil
	})
	if err != nil {
		return nil, err
	}

	cached, ok := v.(*CachedFeed)
	if !ok {
		return nil, fmt.Errorf("unexpected fetch result type %T", v)
	}

	return cached, nil
}

func (f *Fetcher) retrieve(
	ctx context.Context,
	sub models.Subscription,
) (*CachedFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sub.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// Prefer the validator from the previous fetch; fall back to the
	// watermark. A never-fetched subscription sends no conditional header.
	if sub.ETag != "" {
		req.Header.Set("If-None-Match", sub.ETag)
	} else if !sub.LastFetched.IsZero() {
		req.Header.Set("If-Modified-Since", sub.LastFetched.UTC().Format(http.TimeFormat))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.log.WarnContext(ctx, "Failed to close response body",
				"error", closeErr,
				"feedURL", sub.URL)
		}
	}()

	if resp.StatusCode == http.StatusNotModified {
		f.log.DebugContext(ctx, "Feed is not modified",
			"feedURL", sub.URL)

		return nil, errNotModified
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fetch feed %q: unexpected status %d", sub.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}

	channel, err := f.parser.Parse(ctx, string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %q: %w", sub.URL, err)
	}

	return &CachedFeed{
		Title:     channel.Title,
		Items:     channel.Items,
		ETag:      resp.Header.Get("ETag"),
		FetchedAt: time.Now(),
	}, nil
}
