package updater

import (
	"slices"
	"strings"
	"time"

	"github.com/trustmaster/telerss/internal/models"
)

// pubDateLayouts are tried in order when interpreting an item's publish
// date. Feeds in the wild mix RFC 822/1123 variants and RFC 3339.
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC822Z,
	time.RFC822,
}

// NewPosts returns the subscription's genuinely new posts: items published
// strictly after the watermark, newest first. The strict inequality means a
// post timestamped exactly at the watermark is excluded, which prevents
// duplicate delivery when a run's newest post shares its timestamp with the
// next fetch. Ties keep the document order. On the very first fetch the
// result is truncated to firstFetchLimit so a fresh subscription gets a
// bounded backlog instead of the feed's whole archive.
func NewPosts(
	cached *CachedFeed,
	sub models.Subscription,
	firstFetchLimit int,
) []models.Post {
	var posts []models.Post

	for _, item := range cached.Items {
		pubDate := parsePubDate(item.PubDate)
		if !pubDate.After(sub.LastFetched) {
			continue
		}

		posts = append(posts, models.Post{
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			PubDate:     pubDate,
		})
	}

	slices.SortStableFunc(posts, func(a, b models.Post) int {
		return b.PubDate.Compare(a.PubDate)
	})

	if sub.LastFetched.IsZero() {
		limit := max(firstFetchLimit, 0)
		if len(posts) > limit {
			posts = posts[:limit]
		}
	}

	return posts
}

// parsePubDate resolves an item's publish date text to a timestamp.
// Malformed or missing dates resolve to the zero time so one bad item
// cannot abort the whole diff; such an item never passes the watermark
// check and is dropped.
func parsePubDate(text string) time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}
	}

	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
	}

	return time.Time{}
}
