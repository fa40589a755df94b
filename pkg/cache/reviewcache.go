package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jordanlanch/taxpipe/pkg/domain"
	"github.com/jordanlanch/taxpipe/pkg/models"
)

const reviewListKey = "taxpipe:review-list"

// ReviewCache serves the human-review list without hitting the client store
// on every read. It is an explicit object with a Refresh/Get contract rather
// than process-level state: the cron wrapper refreshes it on an interval and
// the API reads it on demand.
type ReviewCache struct {
	cache   *Client
	clients domain.ClientStore
	ttl     time.Duration
}

// NewReviewCache creates a review cache
func NewReviewCache(cache *Client, clients domain.ClientStore, ttl time.Duration) *ReviewCache {
	return &ReviewCache{cache: cache, clients: clients, ttl: ttl}
}

// Refresh reloads the review list from the client store into the cache and
// returns what it loaded.
func (r *ReviewCache) Refresh(ctx context.Context) ([]*models.ClientRecord, error) {
	list, err := r.clients.ListByStatus(ctx, models.StatusInReview)
	if err != nil {
		return nil, fmt.Errorf("failed to load review list: %w", err)
	}

	payload, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal review list: %w", err)
	}
	if err := r.cache.Set(ctx, reviewListKey, payload, r.ttl); err != nil {
		return nil, fmt.Errorf("failed to cache review list: %w", err)
	}

	return list, nil
}

// Invalidate drops the cached list. The next Get rebuilds it from the store;
// callers use it when they change a client's review status out of band.
func (r *ReviewCache) Invalidate(ctx context.Context) error {
	return r.cache.Delete(ctx, reviewListKey)
}

// Get returns the cached review list, refreshing on a miss or expired entry.
func (r *ReviewCache) Get(ctx context.Context) ([]*models.ClientRecord, error) {
	raw, err := r.cache.Get(ctx, reviewListKey)
	if err == redis.Nil {
		return r.Refresh(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read review cache: %w", err)
	}

	var list []*models.ClientRecord
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal review list: %w", err)
	}
	return list, nil
}
