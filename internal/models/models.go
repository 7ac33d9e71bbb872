package models

import "time"

// Subscription ties a feed URL to the Telegram chat its posts are delivered
// to. LastFetched is the watermark: posts published at or before it are
// considered already delivered, and the zero value means the feed was never
// fetched. ETag holds the revalidation token returned by the fetch that
// produced the current watermark.
type Subscription struct {
	ChatID      int64
	URL         string
	LastFetched time.Time
	ETag        string
}

// User owns an ordered list of subscriptions. A user holds at most one
// subscription per feed URL across all chats.
type User struct {
	ID            int64
	Subscriptions []Subscription
}

// Post is a single published entry of a feed. Posts are never persisted;
// they only exist long enough to be rendered and sent.
type Post struct {
	Title       string
	Link        string
	Description string
	PubDate     time.Time
}

// Update carries the outcome of refreshing one subscription: the
// subscription with its advanced watermark and the posts that appeared
// since the previous fetch.
type Update struct {
	Subscription Subscription
	FeedTitle    string
	Posts        []Post
}
