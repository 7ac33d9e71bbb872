package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/trustmaster/telerss/internal/models"
	"github.com/trustmaster/telerss/internal/render"
)

// UserStore is the authoritative user persistence. The coordinator touches
// it once per user per run: one read before the fan-out and one write at
// merge-back.
type UserStore interface {
	// Get returns (nil, nil) when the user does not exist.
	Get(ctx context.Context, userID int64) (*models.User, error)
	Put(ctx context.Context, user *models.User) error
	// ListIDs pages through stored user ids. An empty next cursor ends the
	// listing.
	ListIDs(ctx context.Context, cursor string) (ids []int64, nextCursor string, err error)
}

// Sender delivers one rendered post to a chat.
type Sender interface {
	Deliver(ctx context.Context, chatID int64, text string) error
}

// Coordinator fans the subscription updater out over users and their
// subscriptions. Failures are settled, never propagated: one slow or broken
// feed cannot abort or cancel sibling updates, and only subscriptions whose
// fetch succeeded are merged back into the store.
type Coordinator struct {
	updater *Updater
	store   UserStore
	sender  Sender
	log     *slog.Logger
}

func NewCoordinator(
	updater *Updater,
	store UserStore,
	sender Sender,
	log *slog.Logger,
) *Coordinator {
	return &Coordinator{
		updater: updater,
		store:   store,
		sender:  sender,
		log:     log,
	}
}

// RunAll sweeps every stored user: it pages through the id listing and
// updates each page's users concurrently, sequentially from page to page.
// One feed cache spans the whole sweep, so users subscribed to the same
// feed share a single retrieval. A missing or failing user never aborts
// the sweep.
func (c *Coordinator) RunAll(ctx context.Context) error {
	cache := NewCache()

	var errs []error
	cursor := ""

	for {
		ids, nextCursor, err := c.store.ListIDs(ctx, cursor)
		if err != nil {
			errs = append(errs, fmt.Errorf("list user ids: %w", err))
			break
		}

		var wg sync.WaitGroup
		var mu sync.Mutex

		for _, id := range ids {
			id := id
			wg.Add(1)
			go func() {
				defer wg.Done()
				if userErr := c.updateStoredUser(ctx, cache, id); userErr != nil {
					c.log.ErrorContext(ctx, "Failed to update user subscriptions",
						"error", userErr,
						"userID", id)

					mu.Lock()
					errs = append(errs, fmt.Errorf("update user %d: %w", id, userErr))
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	return errors.Join(errs...)
}

// RunUser refreshes one user's subscriptions on demand, optionally filtered
// to a single chat when chatID is non-zero. The feed cache is scoped to
// this call.
func (c *Coordinator) RunUser(ctx context.Context, userID int64, chatID int64) error {
	user, err := c.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %d not found", userID)
	}

	return c.updateUser(ctx, NewCache(), user, chatID)
}

func (c *Coordinator) updateStoredUser(
	ctx context.Context,
	cache *Cache,
	userID int64,
) error {
	user, err := c.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %d not found", userID)
	}

	return c.updateUser(ctx, cache, user, 0)
}

// updateUser runs the pipeline for every (matching) subscription of one
// user concurrently, waits for all of them to settle, then merges the
// successful results back into the user record with a single store write.
// Subscriptions whose fetch failed keep their previous watermark and are
// retried on the next run.
func (c *Coordinator) updateUser(
	ctx context.Context,
	cache *Cache,
	user *models.User,
	chatID int64,
) error {
	subs := user.Subscriptions
	if chatID != 0 {
		subs = make([]models.Subscription, 0, len(user.Subscriptions))
		for _, sub := range user.Subscriptions {
			if sub.ChatID == chatID {
				subs = append(subs, sub)
			}
		}
	}
	if len(subs) == 0 {
		return nil
	}

	type outcome struct {
		update models.Update
		err    error
	}
	outcomes := make([]outcome, len(subs))

	var wg sync.WaitGroup
	for i, sub := range subs {
		i, sub := i, sub
		wg.Add(1)
		go func() {
			defer wg.Done()
			update, err := c.updater.Update(ctx, cache, sub)
			if err != nil {
				outcomes[i] = outcome{err: err}
				return
			}

			if len(update.Posts) > 0 {
				c.deliverPosts(ctx, update)
			}

			outcomes[i] = outcome{update: update}
		}()
	}
	wg.Wait()

	var errs []error
	updated := make([]models.Subscription, 0, len(subs))

	for i, o := range outcomes {
		if o.err != nil {
			c.log.ErrorContext(ctx, "Failed to update subscription",
				"error", o.err,
				"userID", user.ID,
				"feedURL", subs[i].URL)

			errs = append(errs, fmt.Errorf("update subscription %q: %w", subs[i].URL, o.err))
			continue
		}

		updated = append(updated, o.update.Subscription)
	}

	if len(updated) > 0 {
		mergeSubscriptions(user, updated)

		if err := c.store.Put(ctx, user); err != nil {
			errs = append(errs, fmt.Errorf("put user %d: %w", user.ID, err))
		}
	}

	return errors.Join(errs...)
}

// deliverPosts sends every new post of one update concurrently. A delivery
// failure is logged and dropped: the watermark has already advanced, so a
// transiently failing chat does not cause the feed to be refetched forever,
// at the cost of losing the failed post.
func (c *Coordinator) deliverPosts(ctx context.Context, update models.Update) {
	var wg sync.WaitGroup

	for _, post := range update.Posts {
		post := post
		wg.Add(1)
		go func() {
			defer wg.Done()
			text := render.Post(post, update.FeedTitle)

			if err := c.sender.Deliver(ctx, update.Subscription.ChatID, text); err != nil {
				c.log.ErrorContext(ctx, "Failed to deliver post",
					"error", err,
					"chatID", update.Subscription.ChatID,
					"feedURL", update.Subscription.URL,
					"postLink", post.Link)
			}
		}()
	}

	wg.Wait()
}

// mergeSubscriptions replaces the user's subscriptions that have an updated
// counterpart, matched by feed URL, and keeps the rest untouched. Applying
// the same updated set twice yields the same record.
func mergeSubscriptions(user *models.User, updated []models.Subscription) {
	byURL := make(map[string]models.Subscription, len(updated))
	for _, sub := range updated {
		byURL[sub.URL] = sub
	}

	for i, sub := range user.Subscriptions {
		if upd, ok := byURL[sub.URL]; ok {
			user.Subscriptions[i] = upd
		}
	}
}
