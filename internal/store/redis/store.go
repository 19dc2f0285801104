package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultSnapshotTTL bounds how long a cached subscription or selection survives (7 days).
	DefaultSnapshotTTL = 7 * 24 * time.Hour
	// DefaultHistoryTTL is the TTL of a node's probe history list (48 hours).
	DefaultHistoryTTL = 48 * time.Hour
	// DefaultHistoryLen caps the number of samples kept per node.
	DefaultHistoryLen = 100
)

// Store keeps non-authoritative snapshots of the accelerator state in Redis.
// Nothing read from it is trusted without re-parsing or re-probing.
type Store struct {
	client     *redis.Client
	ttl        time.Duration
	historyTTL time.Duration
	historyLen int64
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client:     client,
		ttl:        DefaultSnapshotTTL,
		historyTTL: DefaultHistoryTTL,
		historyLen: DefaultHistoryLen,
	}
}

// SaveSubscription stores the raw payload of the current subscription.
func (s *Store) SaveSubscription(ctx context.Context, snap domain.SubscriptionSnapshot) error {
	return s.setJSON(ctx, KeySubscription, snap, s.ttl)
}

// LoadSubscription returns the cached subscription, or nil when there is none.
func (s *Store) LoadSubscription(ctx context.Context) (*domain.SubscriptionSnapshot, error) {
	var snap domain.SubscriptionSnapshot
	ok, err := s.getJSON(ctx, KeySubscription, &snap)
	if err != nil || !ok {
		return nil, err
	}
	return &snap, nil
}

// SaveSelection stores the last active node.
func (s *Store) SaveSelection(ctx context.Context, rec domain.SelectionRecord) error {
	return s.setJSON(ctx, KeySelection, rec, s.ttl)
}

// LoadSelection returns the last active node record, or nil when there is none.
func (s *Store) LoadSelection(ctx context.Context) (*domain.SelectionRecord, error) {
	var rec domain.SelectionRecord
	ok, err := s.getJSON(ctx, KeySelection, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

// Clear removes the cached subscription and selection.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, KeySubscription, KeySelection).Err(); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	return nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}
