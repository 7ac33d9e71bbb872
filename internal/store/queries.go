package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/trustmaster/telerss/internal/models"
)

const listPageSize = 100

var (
	ErrAlreadySubscribed = errors.New("already subscribed to this feed")
	ErrNotSubscribed     = errors.New("not subscribed to this feed")
)

// Get loads a user with all subscriptions in insertion order. An absent
// user returns (nil, nil).
func (s *Store) Get(ctx context.Context, userID int64) (*models.User, error) {
	var id int64

	err := s.db.QueryRowContext(ctx,
		"select id from users where id = ?",
		userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`select chat_id, url, last_fetched, etag
		from subscriptions
		where user_id = ?
		order by rowid`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			s.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"userID", userID,
				"operation", "Get")
		}
	}()

	user := &models.User{ID: id}

	for rows.Next() {
		var sub models.Subscription
		var lastFetched int64

		if err = rows.Scan(&sub.ChatID, &sub.URL, &lastFetched, &sub.ETag); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}

		if lastFetched > 0 {
			sub.LastFetched = time.UnixMilli(lastFetched).UTC()
		}

		user.Subscriptions = append(user.Subscriptions, sub)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}

	return user, nil
}

// Put writes the whole user record in one transaction: the user row plus a
// full replace of its subscription rows. Readers never observe a partially
// written subscription list.
func (s *Store) Put(ctx context.Context, user *models.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil &&
			!errors.Is(rollbackErr, sql.ErrTxDone) {
			s.log.ErrorContext(ctx, "Failed to rollback tx",
				"error", rollbackErr,
				"userID", user.ID)
		}
	}()

	if _, err = tx.ExecContext(ctx,
		"insert or ignore into users (id) values (?)",
		user.ID); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		"delete from subscriptions where user_id = ?",
		user.ID); err != nil {
		return fmt.Errorf("delete subscriptions: %w", err)
	}

	for _, sub := range user.Subscriptions {
		var lastFetched int64
		if !sub.LastFetched.IsZero() {
			lastFetched = sub.LastFetched.UnixMilli()
		}

		if _, err = tx.ExecContext(ctx,
			`insert into subscriptions (user_id, chat_id, url, last_fetched, etag)
			values (?, ?, ?, ?, ?)`,
			user.ID, sub.ChatID, sub.URL, lastFetched, sub.ETag); err != nil {
			return fmt.Errorf("insert subscription: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// ListIDs pages through user ids in ascending order. The returned cursor is
// empty once the listing is exhausted.
func (s *Store) ListIDs(
	ctx context.Context,
	cursor string,
) ([]int64, string, error) {
	var after int64

	if cursor != "" {
		parsed, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("parse cursor %q: %w", cursor, err)
		}
		after = parsed
	}

	rows, err := s.db.QueryContext(ctx,
		"select id from users where id > ? order by id limit ?",
		after, listPageSize)
	if err != nil {
		return nil, "", fmt.Errorf("query user ids: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			s.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"cursor", cursor,
				"operation", "ListIDs")
		}
	}()

	var ids []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, "", fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate user ids: %w", err)
	}

	nextCursor := ""
	if len(ids) == listPageSize {
		nextCursor = strconv.FormatInt(ids[len(ids)-1], 10)
	}

	return ids, nextCursor, nil
}

// AddSubscription registers a feed URL for the user's chat, creating the
// user if needed. Each user holds at most one subscription per feed URL
// across all chats.
func (s *Store) AddSubscription(
	ctx context.Context,
	userID int64,
	chatID int64,
	feedURL string,
) error {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return errors.New("feed URL is empty")
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		user = &models.User{ID: userID}
	}

	for _, sub := range user.Subscriptions {
		if sub.URL == feedURL {
			return ErrAlreadySubscribed
		}
	}

	user.Subscriptions = append(user.Subscriptions, models.Subscription{
		ChatID: chatID,
		URL:    feedURL,
	})

	return s.Put(ctx, user)
}

// RemoveSubscription drops the user's subscription to the feed URL.
func (s *Store) RemoveSubscription(
	ctx context.Context,
	userID int64,
	feedURL string,
) error {
	feedURL = strings.TrimSpace(feedURL)

	user, err := s.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return ErrNotSubscribed
	}

	kept := make([]models.Subscription, 0, len(user.Subscriptions))
	for _, sub := range user.Subscriptions {
		if sub.URL != feedURL {
			kept = append(kept, sub)
		}
	}

	if len(kept) == len(user.Subscriptions) {
		return ErrNotSubscribed
	}
	user.Subscriptions = kept

	return s.Put(ctx, user)
}

// RemoveChatSubscriptions drops every subscription the user has in the
// given chat.
func (s *Store) RemoveChatSubscriptions(
	ctx context.Context,
	userID int64,
	chatID int64,
) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil
	}

	kept := make([]models.Subscription, 0, len(user.Subscriptions))
	for _, sub := range user.Subscriptions {
		if sub.ChatID != chatID {
			kept = append(kept, sub)
		}
	}
	user.Subscriptions = kept

	return s.Put(ctx, user)
}
